package conversation

import (
	"context"
	"errors"
)

type EventKind int

const (
	EventCommand EventKind = iota
	EventText
	EventPhoto
	EventVoice
	EventButton
)

// Event is one inbound update, already stripped of transport details.
type Event struct {
	Kind   EventKind
	Handle string
	UserID int64
	ChatID int64

	Command string // without the leading slash, e.g. "setgoals"
	Args    string
	Text    string // message text, or the caption of a photo
	Button  string // callback id of an inline button

	GroupToken string // media group id of a photo, empty for single photos

	// Media downloads the photo or voice payload. It is called only after
	// the access gate has passed.
	Media func(ctx context.Context) ([]byte, error)
}

// Inline button ids.
const (
	ButtonCorrect       = "correct"
	ButtonAddContext    = "add_context"
	ButtonCancel        = "cancel"
	ButtonAddMore       = "add_more"
	ButtonStartAnalysis = "start_analysis"
)

// Reply keyboard labels. They come back as plain text messages.
const (
	LabelEnterWeight    = "⚖️ Ввести вес сейчас"
	LabelRemindTomorrow = "⏰ Напомнить завтра"
)

type Button struct {
	ID    string
	Label string
}

// Reply is one outbound message.
type Reply struct {
	Text           string
	HTML           bool
	Buttons        []Button // inline choice set, one row
	Keyboard       []string // one-time reply keyboard, one button per row
	RemoveKeyboard bool
}

// Sender delivers replies. The Telegram adapter implements it.
type Sender interface {
	Send(ctx context.Context, chatID int64, r Reply) error
}

var errNoMedia = errors.New("event has no media")

func (ev Event) media(ctx context.Context) ([]byte, error) {
	if ev.Media == nil {
		return nil, errNoMedia
	}
	return ev.Media(ctx)
}

// classify maps an event onto a table trigger. ok is false for events the
// table does not handle (informational commands, unknown buttons).
func classify(ev Event) (Trigger, bool) {
	switch ev.Kind {
	case EventPhoto:
		return TriggerPhoto, true
	case EventVoice:
		return TriggerVoice, true
	case EventText:
		switch ev.Text {
		case LabelEnterWeight:
			return TriggerWeight, true
		case LabelRemindTomorrow:
			return TriggerRemindTomorrow, true
		}
		return TriggerText, true
	case EventButton:
		switch ev.Button {
		case ButtonCorrect:
			return TriggerCorrect, true
		case ButtonAddContext:
			return TriggerAddContext, true
		case ButtonCancel:
			return TriggerCancel, true
		case ButtonAddMore:
			return TriggerAddMore, true
		case ButtonStartAnalysis:
			return TriggerStartAnalysis, true
		}
	case EventCommand:
		switch ev.Command {
		case "analyze":
			return TriggerStartAnalysis, true
		case "cancel":
			return TriggerCancel, true
		case "setgoals":
			return TriggerSetGoals, true
		case "weight":
			return TriggerWeight, true
		case "targetweight":
			return TriggerTargetWeight, true
		}
	}
	return 0, false
}
