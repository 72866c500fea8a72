// Package conversation is the per-user dialogue: it collects photos, text and
// voice, asks the model for an analysis, lets the user correct it, and commits
// the confirmed result to the ledger. It also runs the goal and weight
// sub-flows.
//
// Every event of one handle runs under that handle's session lock, and the
// Mailbox feeds each handle from a single goroutine, so a handle's
// transitions happen one at a time in arrival order. Different handles never
// share state and run in parallel.
package conversation

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/chuikova-e/nutritioner-bot/internal/accumulator"
	"github.com/chuikova-e/nutritioner-bot/internal/analysis"
	"github.com/chuikova-e/nutritioner-bot/internal/apperror"
	"github.com/chuikova-e/nutritioner-bot/internal/model"
	"github.com/chuikova-e/nutritioner-bot/internal/repository"
)

type Gate interface {
	Allowed(userID int64, handle string) bool
}

type Analyzer interface {
	Analyze(ctx context.Context, images [][]byte, description string) (string, error)
	Transcribe(ctx context.Context, audio []byte) (string, error)
	Progress(ctx context.Context, in analysis.ProgressInput) (string, error)
}

// Archiver stores the photos of a committed meal. Optional.
type Archiver interface {
	Archive(ctx context.Context, rec *model.DailyRecord, photos [][]byte) error
}

type Deps struct {
	Gate        Gate
	Analyzer    Analyzer
	Ledger      repository.Ledger
	Accumulator *accumulator.Accumulator
	Sender      Sender
	Archiver    Archiver       // nil disables photo archiving
	Location    *time.Location // local time zone for dates; defaults to time.Local
	Now         func() time.Time
	Logger      *slog.Logger
}

type Machine struct {
	gate     Gate
	analyzer Analyzer
	ledger   repository.Ledger
	acc      *accumulator.Accumulator
	sender   Sender
	archiver Archiver
	loc      *time.Location
	clock    func() time.Time
	logger   *slog.Logger

	sessions    *sessionStore
	transitions transitionTable
}

func New(d Deps) *Machine {
	m := &Machine{
		gate:        d.Gate,
		analyzer:    d.Analyzer,
		ledger:      d.Ledger,
		acc:         d.Accumulator,
		sender:      d.Sender,
		archiver:    d.Archiver,
		loc:         d.Location,
		clock:       d.Now,
		logger:      d.Logger,
		sessions:    newSessionStore(),
		transitions: newTransitionTable(),
	}
	if m.acc == nil {
		m.acc = accumulator.New()
	}
	if m.loc == nil {
		m.loc = time.Local
	}
	if m.clock == nil {
		m.clock = time.Now
	}
	return m
}

// Handle processes one event to completion. It never returns an error:
// every failure ends in a reply to the user.
func (m *Machine) Handle(ctx context.Context, ev Event) {
	if !m.gate.Allowed(ev.UserID, ev.Handle) {
		if ev.Handle != "" {
			s := m.sessions.lock(ev.Handle)
			m.reset(s)
			s.mu.Unlock()
		}
		m.send(ctx, ev.ChatID, Reply{Text: textAccessDenied, RemoveKeyboard: true})
		return
	}

	s := m.sessions.lock(ev.Handle)
	defer s.mu.Unlock()

	m.rememberContact(ctx, ev)

	if ev.Kind == EventCommand {
		if m.handleInfoCommand(ctx, s, ev) {
			return
		}
	}

	trigger, ok := classify(ev)
	if !ok {
		if ev.Kind == EventCommand {
			m.send(ctx, ev.ChatID, Reply{Text: textUnknownCommand})
		}
		return
	}

	from := s.state
	next, err := m.transitions[from][trigger](m, ctx, s, ev)
	if err != nil {
		m.fail(ctx, s, ev, trigger, err)
		return
	}
	s.state = next

	m.logger.Debug("transition",
		slog.String("handle", ev.Handle),
		slog.String("trigger", trigger.String()),
		slog.String("from", from.String()),
		slog.String("to", next.String()),
	)
}

// State reports the handle's current state.
func (m *Machine) State(handle string) State {
	s := m.sessions.lock(handle)
	defer s.mu.Unlock()
	return s.state
}

// fail is the transition boundary: log, apologise, drop transient state.
func (m *Machine) fail(ctx context.Context, s *session, ev Event, trigger Trigger, err error) {
	m.logger.Error("transition failed",
		slog.String("handle", ev.Handle),
		slog.String("state", s.state.String()),
		slog.String("trigger", trigger.String()),
		slog.String("error", err.Error()),
	)

	text := textTryLater
	if errors.Is(err, apperror.ErrGateway) {
		text = textAnalysisFailed
	}
	m.reset(s)
	m.send(ctx, ev.ChatID, Reply{Text: text, RemoveKeyboard: true})
}

// reset discards all transient state of the session.
func (m *Machine) reset(s *session) {
	s.state = Idle
	s.result = nil
	m.acc.Clear(s.handle)
}

func (m *Machine) send(ctx context.Context, chatID int64, r Reply) {
	if err := m.sender.Send(ctx, chatID, r); err != nil {
		m.logger.Error("sending reply failed",
			slog.Int64("chat_id", chatID),
			slog.String("error", err.Error()),
		)
	}
}

func (m *Machine) rememberContact(ctx context.Context, ev Event) {
	err := m.ledger.RememberContact(ctx, &model.ChatContact{
		Handle:   ev.Handle,
		UserID:   ev.UserID,
		ChatID:   ev.ChatID,
		LastSeen: m.clock(),
	})
	if err != nil {
		m.logger.Warn("remembering chat contact failed",
			slog.String("handle", ev.Handle),
			slog.String("error", err.Error()),
		)
	}
}

// now is the current time in the user-facing time zone.
func (m *Machine) now() time.Time {
	return m.clock().In(m.loc)
}

func ledgerErr(op string, err error) error {
	return apperror.Ledger(op, err)
}
