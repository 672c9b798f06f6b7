// Package fsm defines the conversation session states and their legal transitions.
package fsm

import "fmt"

type State string

type Event string

const (
	StateGreeting    State = "greeting"
	StateListening   State = "listening"
	StateRecognizing State = "recognizing"
	StateGenerating  State = "generating"
	StateSpeaking    State = "speaking"
	StateRecovering  State = "recovering"
	StateExiting     State = "exiting"
)

const (
	EventGreeted           Event = "greeted"
	EventSpeechDetected    Event = "speech_detected"
	EventNoInput           Event = "no_input"
	EventRecognized        Event = "recognized"
	EventRecognitionFailed Event = "recognition_failed"
	EventGenerated         Event = "generated"
	EventGenerationFailed  Event = "generation_failed"
	EventSpoken            Event = "spoken"
	EventRecovered         Event = "recovered"
	EventExit              Event = "exit"
)

// Transition returns the state reached from current on event.
// Exiting is terminal; exit is accepted from every other state.
func Transition(current State, event Event) (State, error) {
	if current == StateExiting {
		return current, invalidTransition(current, event)
	}
	if event == EventExit {
		switch current {
		case StateGreeting, StateListening, StateRecognizing, StateGenerating, StateSpeaking, StateRecovering:
			return StateExiting, nil
		default:
			return current, fmt.Errorf("unknown state %q", current)
		}
	}

	switch current {
	case StateGreeting:
		switch event {
		case EventGreeted:
			return StateListening, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateListening, StateRecognizing:
		switch event {
		case EventSpeechDetected:
			if current == StateRecognizing {
				return current, invalidTransition(current, event)
			}
			return StateRecognizing, nil
		case EventNoInput:
			return StateListening, nil
		case EventRecognized:
			return StateGenerating, nil
		case EventRecognitionFailed:
			return StateRecovering, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateGenerating:
		switch event {
		case EventGenerated:
			return StateSpeaking, nil
		case EventGenerationFailed:
			return StateRecovering, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateSpeaking:
		switch event {
		case EventSpoken:
			return StateListening, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateRecovering:
		switch event {
		case EventRecovered:
			return StateListening, nil
		default:
			return current, invalidTransition(current, event)
		}
	default:
		return current, fmt.Errorf("unknown state %q", current)
	}
}

func invalidTransition(state State, event Event) error {
	return fmt.Errorf("invalid transition: %s --(%s)--> ?", state, event)
}
