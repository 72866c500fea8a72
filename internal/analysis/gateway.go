// Package analysis is the boundary to the language model: meal analysis
// from photos and text, voice transcription, and the two narrative reports
// (day versus goals, weekly weight progress).
package analysis

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/chuikova-e/nutritioner-bot/internal/apperror"
	"github.com/chuikova-e/nutritioner-bot/internal/model"
)

const (
	mealMaxTokens   = 500
	reportMaxTokens = 1000
)

var errEmptyResponse = errors.New("empty response")

// Backend is the raw model API. NewOpenAI returns the production one.
type Backend interface {
	// Complete sends one user message made of prompt followed by images.
	Complete(ctx context.Context, prompt string, images [][]byte, maxTokens int64) (string, error)
	Transcribe(ctx context.Context, audio []byte, filename string) (string, error)
}

// ProgressInput is everything the weekly progress report looks at.
type ProgressInput struct {
	CurrentWeight float64
	Records       []model.DailyRecord       // this week's meals, oldest first
	History       []model.WeightMeasurement // newest first, current weigh-in included
	TargetWeight  *float64
	Goals         string
}

// Gateway builds prompts, applies a per-call timeout and turns every failure
// into an apperror.ErrGateway.
type Gateway struct {
	backend Backend
	timeout time.Duration
	logger  *slog.Logger
}

func New(backend Backend, timeout time.Duration, logger *slog.Logger) *Gateway {
	return &Gateway{backend: backend, timeout: timeout, logger: logger}
}

// Analyze estimates calories and macros for a meal. images may be empty
// when the user only described the meal.
func (g *Gateway) Analyze(ctx context.Context, images [][]byte, description string) (string, error) {
	prompt := mealPrompt(len(images) > 0, description)
	g.logger.Debug("meal analysis prompt",
		slog.Int("photos", len(images)),
		slog.String("prompt", prompt),
	)
	return g.complete(ctx, "analyze", prompt, images, mealMaxTokens)
}

// Transcribe turns a voice note into text.
func (g *Gateway) Transcribe(ctx context.Context, audio []byte) (string, error) {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	text, err := g.backend.Transcribe(ctx, audio, "voice.ogg")
	if err != nil {
		g.logger.Error("transcription failed", slog.String("error", err.Error()))
		return "", apperror.Gateway("transcribe", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", apperror.Gateway("transcribe", errEmptyResponse)
	}
	return text, nil
}

// CompareToGoals reviews a day of meals against the user's goals.
// It returns "" with a nil error when there is nothing to compare.
func (g *Gateway) CompareToGoals(ctx context.Context, records []model.DailyRecord, goals string) (string, error) {
	if len(records) == 0 || strings.TrimSpace(goals) == "" {
		return "", nil
	}
	prompt := goalsPrompt(records, goals)
	g.logger.Debug("goals comparison prompt", slog.String("prompt", prompt))
	return g.complete(ctx, "compare to goals", prompt, nil, reportMaxTokens)
}

// Progress writes the weekly weight and nutrition review.
func (g *Gateway) Progress(ctx context.Context, in ProgressInput) (string, error) {
	prompt := progressPrompt(in)
	g.logger.Debug("weight progress prompt", slog.String("prompt", prompt))
	return g.complete(ctx, "progress", prompt, nil, reportMaxTokens)
}

func (g *Gateway) complete(ctx context.Context, op, prompt string, images [][]byte, maxTokens int64) (string, error) {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	text, err := g.backend.Complete(ctx, prompt, images, maxTokens)
	if err != nil {
		g.logger.Error("model call failed",
			slog.String("op", op),
			slog.String("error", err.Error()),
			slog.Duration("elapsed", time.Since(start)),
		)
		return "", apperror.Gateway(op, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", apperror.Gateway(op, errEmptyResponse)
	}

	g.logger.Info("model call completed",
		slog.String("op", op),
		slog.Duration("elapsed", time.Since(start)),
	)
	return text, nil
}

func (g *Gateway) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, g.timeout)
}
