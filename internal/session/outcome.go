package session

import (
	"context"
	"time"
)

// RecognitionKind tags a RecognitionOutcome.
type RecognitionKind int

const (
	RecognitionText RecognitionKind = iota + 1
	RecognitionNoSpeech
	RecognitionUnintelligible
	RecognitionServiceFailure
	RecognitionCancelled
)

func (k RecognitionKind) String() string {
	switch k {
	case RecognitionText:
		return "text"
	case RecognitionNoSpeech:
		return "no_speech"
	case RecognitionUnintelligible:
		return "unintelligible"
	case RecognitionServiceFailure:
		return "service_failure"
	case RecognitionCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// RecognitionOutcome is the result of one capture-and-transcribe attempt.
// Text is set for RecognitionText, Message for RecognitionServiceFailure.
type RecognitionOutcome struct {
	Kind    RecognitionKind
	Text    string
	Message string
}

// GenerationKind tags a GenerationOutcome.
type GenerationKind int

const (
	GenerationText GenerationKind = iota + 1
	GenerationTimeout
	GenerationUnreachable
	GenerationBadResponse
)

func (k GenerationKind) String() string {
	switch k {
	case GenerationText:
		return "text"
	case GenerationTimeout:
		return "timeout"
	case GenerationUnreachable:
		return "unreachable"
	case GenerationBadResponse:
		return "bad_response"
	default:
		return "unknown"
	}
}

// GenerationOutcome is the result of one generate call.
type GenerationOutcome struct {
	Kind    GenerationKind
	Text    string
	Message string
}

// Apology is the user-facing notice for a failed generation.
func (o GenerationOutcome) Apology() string {
	switch o.Kind {
	case GenerationTimeout:
		return "Oops! I'm taking too long to respond. Please try again."
	case GenerationUnreachable:
		return "Hi! I'm having trouble connecting. Is the AI service running?"
	case GenerationBadResponse:
		return "Sorry! Something went wrong. Please try again in a moment."
	default:
		return ""
	}
}

// PlaybackKind tags a PlaybackOutcome.
type PlaybackKind int

const (
	PlaybackCompleted PlaybackKind = iota + 1
	PlaybackTimedOut
	PlaybackEngineFailure
	PlaybackInterrupted
)

func (k PlaybackKind) String() string {
	switch k {
	case PlaybackCompleted:
		return "completed"
	case PlaybackTimedOut:
		return "timed_out"
	case PlaybackEngineFailure:
		return "engine_failure"
	case PlaybackInterrupted:
		return "interrupted"
	default:
		return "unknown"
	}
}

// PlaybackOutcome is the result of one speak call.
type PlaybackOutcome struct {
	Kind    PlaybackKind
	Message string
}

// CaptureRequest bounds one listen attempt.
// OnSpeech, when set, runs synchronously on the caller's goroutine at speech onset.
type CaptureRequest struct {
	Timeout     time.Duration
	PhraseLimit time.Duration
	OnSpeech    func()
}

// Recognizer captures one utterance and converts it to text.
type Recognizer interface {
	Calibrate(context.Context) error
	CaptureUtterance(context.Context, CaptureRequest) RecognitionOutcome
	Close() error
}

// Generator produces a response for a fully built prompt.
type Generator interface {
	Generate(context.Context, string) GenerationOutcome
}

// Speaker renders text as audio. A non-nil error means the output engine is unusable.
type Speaker interface {
	Speak(context.Context, string) (PlaybackOutcome, error)
	Close() error
}

// Turn is one listen/respond/speak cycle. It is never persisted.
type Turn struct {
	ID            string
	UserText      string
	AssistantText string
}
