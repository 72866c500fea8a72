package conversation

import "context"

// State is where a handle's conversation currently is.
type State int

const (
	Idle State = iota
	Collecting
	AwaitingFeedback
	AwaitingContext
	AwaitingGoals
	AwaitingWeight
	AwaitingTargetWeight
)

var allStates = []State{
	Idle, Collecting, AwaitingFeedback, AwaitingContext,
	AwaitingGoals, AwaitingWeight, AwaitingTargetWeight,
}

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Collecting:
		return "collecting"
	case AwaitingFeedback:
		return "awaiting_feedback"
	case AwaitingContext:
		return "awaiting_context"
	case AwaitingGoals:
		return "awaiting_goals"
	case AwaitingWeight:
		return "awaiting_weight"
	case AwaitingTargetWeight:
		return "awaiting_target_weight"
	default:
		return "unknown"
	}
}

// Trigger is an inbound event after classification. Informational commands
// (/start, /help, /goals, /calories) never reach the table.
type Trigger int

const (
	TriggerPhoto Trigger = iota
	TriggerText
	TriggerVoice
	TriggerAddMore
	TriggerStartAnalysis
	TriggerCorrect
	TriggerAddContext
	TriggerCancel
	TriggerSetGoals
	TriggerWeight
	TriggerTargetWeight
	TriggerRemindTomorrow
)

var allTriggers = []Trigger{
	TriggerPhoto, TriggerText, TriggerVoice, TriggerAddMore, TriggerStartAnalysis,
	TriggerCorrect, TriggerAddContext, TriggerCancel, TriggerSetGoals,
	TriggerWeight, TriggerTargetWeight, TriggerRemindTomorrow,
}

func (t Trigger) String() string {
	switch t {
	case TriggerPhoto:
		return "photo"
	case TriggerText:
		return "text"
	case TriggerVoice:
		return "voice"
	case TriggerAddMore:
		return ButtonAddMore
	case TriggerStartAnalysis:
		return ButtonStartAnalysis
	case TriggerCorrect:
		return ButtonCorrect
	case TriggerAddContext:
		return ButtonAddContext
	case TriggerCancel:
		return ButtonCancel
	case TriggerSetGoals:
		return "setgoals"
	case TriggerWeight:
		return "weight"
	case TriggerTargetWeight:
		return "targetweight"
	case TriggerRemindTomorrow:
		return "remind_tomorrow"
	default:
		return "unknown"
	}
}

// action performs a transition and returns the next state. A returned error
// aborts the transition: the user gets an apology and the session resets.
type action func(m *Machine, ctx context.Context, s *session, ev Event) (State, error)

type transitionTable map[State]map[Trigger]action

// newTransitionTable lists every (state, trigger) pair.
//
// The defaults apply in every state: new input starts or extends a
// collection, sub-flow commands always win, and result buttons without a
// result are answered as stale. Each awaiting state then overrides the
// triggers it consumes.
func newTransitionTable() transitionTable {
	t := make(transitionTable, len(allStates))
	for _, st := range allStates {
		t[st] = map[Trigger]action{
			TriggerPhoto:          (*Machine).collect,
			TriggerText:           (*Machine).collect,
			TriggerVoice:          (*Machine).collect,
			TriggerAddMore:        (*Machine).addMore,
			TriggerStartAnalysis:  (*Machine).startAnalysis,
			TriggerCorrect:        (*Machine).stale,
			TriggerAddContext:     (*Machine).stale,
			TriggerCancel:         (*Machine).cancel,
			TriggerSetGoals:       (*Machine).askGoals,
			TriggerWeight:         (*Machine).askWeight,
			TriggerTargetWeight:   (*Machine).askTargetWeight,
			TriggerRemindTomorrow: (*Machine).remindTomorrow,
		}
	}

	for _, st := range []State{AwaitingFeedback, AwaitingContext} {
		t[st][TriggerCorrect] = (*Machine).commit
		t[st][TriggerAddContext] = (*Machine).askContext
		t[st][TriggerAddMore] = (*Machine).extendResult
	}
	t[AwaitingContext][TriggerText] = (*Machine).refine
	t[AwaitingContext][TriggerVoice] = (*Machine).refine

	t[AwaitingGoals][TriggerText] = (*Machine).saveGoals
	t[AwaitingWeight][TriggerText] = (*Machine).saveWeight
	t[AwaitingTargetWeight][TriggerText] = (*Machine).saveTargetWeight

	return t
}
