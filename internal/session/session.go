// Package session runs the conversation turn loop, its error budget, and exit handling.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rbright/buddy/internal/fsm"
	"github.com/rbright/buddy/internal/shutdown"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	// ErrRecognizerUnavailable indicates no recognition adapter was wired.
	ErrRecognizerUnavailable = errors.New("speech recognizer not configured")
	// ErrGeneratorUnavailable indicates no response generator was wired.
	ErrGeneratorUnavailable = errors.New("response generator not configured")
)

// Lines are the fixed utterances the controller speaks on its own.
type Lines struct {
	Welcome  string
	Farewell string
	Closing  string
	Repeat   string
	Break    string
}

// DefaultLines returns the stock Buddy phrasing.
func DefaultLines() Lines {
	return Lines{
		Welcome:  "Hi! I'm Buddy, your friendly AI assistant. What can I help you with today?",
		Farewell: "Thanks for chatting! Have a great day!",
		Closing:  "Goodbye! Have a great day!",
		Repeat:   "Could you say that again please?",
		Break:    "I'm having a bit of trouble understanding. Let's take a quick break!",
	}
}

// Options tunes the controller; zero values take defaults.
type Options struct {
	ListenTimeout  time.Duration
	PhraseLimit    time.Duration
	ErrorThreshold int
	ExitPhrases    []string
	Persona        string
	Lines          Lines
	ClosingTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.ListenTimeout <= 0 {
		o.ListenTimeout = 3 * time.Second
	}
	if o.PhraseLimit <= 0 {
		o.PhraseLimit = 10 * time.Second
	}
	if o.ErrorThreshold <= 0 {
		o.ErrorThreshold = DefaultErrorThreshold
	}
	// An explicit empty list disables spoken exit.
	if o.ExitPhrases == nil {
		o.ExitPhrases = DefaultExitPhrases
	}
	if strings.TrimSpace(o.Persona) == "" {
		o.Persona = DefaultPersona
	}
	defaults := DefaultLines()
	if o.Lines.Welcome == "" {
		o.Lines.Welcome = defaults.Welcome
	}
	if o.Lines.Farewell == "" {
		o.Lines.Farewell = defaults.Farewell
	}
	if o.Lines.Closing == "" {
		o.Lines.Closing = defaults.Closing
	}
	if o.Lines.Repeat == "" {
		o.Lines.Repeat = defaults.Repeat
	}
	if o.Lines.Break == "" {
		o.Lines.Break = defaults.Break
	}
	if o.ClosingTimeout <= 0 {
		o.ClosingTimeout = 20 * time.Second
	}
	return o
}

// Result summarizes one Run.
type Result struct {
	SessionID   string
	State       fsm.State
	Turns       int
	Escalations int
	Farewell    bool
	Cancelled   bool
	Err         error
	StartedAt   time.Time
	FinishedAt  time.Time
}

// Indicator is the session-facing subset of console presentation.
type Indicator interface {
	ShowListening()
	ShowProcessing()
	ShowUserText(string)
	ShowNoSpeech()
	ShowUnintelligible()
	ShowNotice(string)
}

// noopIndicator preserves session flow when no indicator is wired.
type noopIndicator struct{}

func (noopIndicator) ShowListening()      {}
func (noopIndicator) ShowProcessing()     {}
func (noopIndicator) ShowUserText(string) {}
func (noopIndicator) ShowNoSpeech()       {}
func (noopIndicator) ShowUnintelligible() {}
func (noopIndicator) ShowNotice(string)   {}

type unavailableRecognizer struct{}

func (unavailableRecognizer) Calibrate(context.Context) error { return ErrRecognizerUnavailable }

func (unavailableRecognizer) CaptureUtterance(context.Context, CaptureRequest) RecognitionOutcome {
	return RecognitionOutcome{Kind: RecognitionServiceFailure, Message: ErrRecognizerUnavailable.Error()}
}

func (unavailableRecognizer) Close() error { return nil }

type unavailableGenerator struct{}

func (unavailableGenerator) Generate(context.Context, string) GenerationOutcome {
	return GenerationOutcome{Kind: GenerationUnreachable, Message: ErrGeneratorUnavailable.Error()}
}

// silentSpeaker delivers nothing; it keeps the loop usable without an output engine.
type silentSpeaker struct{}

func (silentSpeaker) Speak(context.Context, string) (PlaybackOutcome, error) {
	return PlaybackOutcome{Kind: PlaybackEngineFailure, Message: "no speaker configured"}, nil
}

func (silentSpeaker) Close() error { return nil }

// Controller is the session orchestrator. Run owns every field except state,
// which is also read by observers through State.
type Controller struct {
	logger     *slog.Logger
	signal     *shutdown.Signal
	recognizer Recognizer
	generator  Generator
	speaker    Speaker
	indicator  Indicator
	opts       Options
	sessionID  string

	mu    sync.RWMutex
	state fsm.State

	budget         ErrorBudget
	turn           Turn
	lastFailure    string
	turns          int
	escalations    int
	farewellSpoken bool
	cancelled      bool
	releaseOnce    sync.Once
}

// NewController constructs a session controller with safe default fallbacks.
func NewController(
	logger *slog.Logger,
	signal *shutdown.Signal,
	recognizer Recognizer,
	generator Generator,
	speaker Speaker,
	indicator Indicator,
	opts Options,
) *Controller {
	if signal == nil {
		signal = shutdown.NewSignal()
	}
	if recognizer == nil {
		recognizer = unavailableRecognizer{}
	}
	if generator == nil {
		generator = unavailableGenerator{}
	}
	if speaker == nil {
		speaker = silentSpeaker{}
	}
	if indicator == nil {
		indicator = noopIndicator{}
	}
	opts = opts.withDefaults()

	return &Controller{
		logger:     logger,
		signal:     signal,
		recognizer: recognizer,
		generator:  generator,
		speaker:    speaker,
		indicator:  indicator,
		opts:       opts,
		sessionID:  uuid.NewString(),
		state:      fsm.StateGreeting,
		budget:     NewErrorBudget(opts.ErrorThreshold),
	}
}

// State returns the current FSM state snapshot.
func (c *Controller) State() fsm.State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// SessionID identifies this controller in logs and spans.
func (c *Controller) SessionID() string {
	return c.sessionID
}

// ConsecutiveFailures reports the error budget counter.
// Only meaningful from the Run goroutine or after Run returns.
func (c *Controller) ConsecutiveFailures() int {
	return c.budget.ConsecutiveFailures()
}

// transition applies one FSM event to the controller state.
func (c *Controller) transition(event fsm.Event) error {
	c.mu.Lock()
	from := c.state
	next, err := fsm.Transition(from, event)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.state = next
	c.mu.Unlock()

	c.logInfo("state transition",
		"from", from,
		"to", next,
		"event", event,
		"turn_id", c.turn.ID,
	)
	return nil
}

// Run drives the session from greeting until exit and returns its summary.
func (c *Controller) Run(ctx context.Context) Result {
	result := Result{SessionID: c.sessionID, StartedAt: time.Now()}
	c.logInfo("session start", "error_threshold", c.budget.Threshold())

	if err := c.recognizer.Calibrate(ctx); err != nil {
		c.logWarn("ambient calibration failed; using default threshold", "error", err.Error())
	}

	for {
		if c.State() != fsm.StateExiting && c.exitRequested(ctx) {
			c.cancelled = true
			if err := c.transition(fsm.EventExit); err != nil {
				result.Err = err
			}
		}

		var err error
		switch state := c.State(); state {
		case fsm.StateGreeting:
			err = c.greet(ctx)
		case fsm.StateListening, fsm.StateRecognizing:
			err = c.listen(ctx)
		case fsm.StateGenerating:
			err = c.generate(ctx)
		case fsm.StateSpeaking:
			err = c.deliver(ctx)
		case fsm.StateRecovering:
			err = c.recover(ctx)
		case fsm.StateExiting:
			c.exit(ctx)
			result.State = c.State()
			result.Turns = c.turns
			result.Escalations = c.escalations
			result.Farewell = c.farewellSpoken
			result.Cancelled = c.cancelled
			result.FinishedAt = time.Now()
			return result
		default:
			err = fmt.Errorf("unexpected state %q", state)
		}

		if err != nil {
			c.logError("session aborted", "state", c.State(), "error", err.Error())
			result.Err = err
			if c.State() != fsm.StateExiting {
				c.forceExit()
			}
		}
	}
}

// forceExit moves to Exiting even when the table is in an unexpected state.
func (c *Controller) forceExit() {
	if err := c.transition(fsm.EventExit); err == nil {
		return
	}
	c.mu.Lock()
	c.state = fsm.StateExiting
	c.mu.Unlock()
}

// exitRequested mirrors a finished parent context into the latch and reads it.
func (c *Controller) exitRequested(ctx context.Context) bool {
	if ctx.Err() != nil {
		c.signal.RequestExit()
	}
	return c.signal.IsExitRequested()
}

func (c *Controller) greet(ctx context.Context) error {
	if err := c.say(ctx, c.opts.Lines.Welcome); err != nil {
		return err
	}
	return c.transition(fsm.EventGreeted)
}

func (c *Controller) listen(ctx context.Context) error {
	c.turn = Turn{ID: uuid.NewString()}
	c.indicator.ShowListening()

	stageCtx, cancel := c.signal.Context(ctx)
	defer cancel()
	stageCtx, span := tracer.Start(stageCtx, "capture utterance", trace.WithAttributes(
		attribute.String("session.id", c.sessionID),
		attribute.String("turn.id", c.turn.ID),
	))
	defer span.End()

	outcome := c.recognizer.CaptureUtterance(stageCtx, CaptureRequest{
		Timeout:     c.opts.ListenTimeout,
		PhraseLimit: c.opts.PhraseLimit,
		OnSpeech:    c.onSpeech,
	})
	span.SetAttributes(attribute.String("recognition.outcome", outcome.Kind.String()))
	c.logDebug("recognition outcome", "turn_id", c.turn.ID, "outcome", outcome.Kind.String())

	if c.exitRequested(ctx) {
		return nil
	}

	switch outcome.Kind {
	case RecognitionCancelled:
		c.cancelled = true
		return c.transition(fsm.EventExit)
	case RecognitionNoSpeech:
		c.indicator.ShowNoSpeech()
		return c.transition(fsm.EventNoInput)
	case RecognitionUnintelligible:
		c.indicator.ShowUnintelligible()
		return c.transition(fsm.EventNoInput)
	case RecognitionServiceFailure:
		err := fmt.Errorf("speech recognition service error: %s", outcome.Message)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.lastFailure = err.Error()
		return c.transition(fsm.EventRecognitionFailed)
	case RecognitionText:
	default:
		return fmt.Errorf("unknown recognition outcome %d", outcome.Kind)
	}

	text := strings.TrimSpace(outcome.Text)
	if text == "" {
		c.indicator.ShowUnintelligible()
		return c.transition(fsm.EventNoInput)
	}
	c.turn.UserText = text
	c.indicator.ShowUserText(text)

	if IsExitPhrase(text, c.opts.ExitPhrases) {
		c.logInfo("exit phrase recognized", "turn_id", c.turn.ID)
		if err := c.say(ctx, c.opts.Lines.Farewell); err != nil {
			return err
		}
		c.farewellSpoken = true
		return c.transition(fsm.EventExit)
	}
	return c.transition(fsm.EventRecognized)
}

// onSpeech runs inside CaptureUtterance on the Run goroutine.
func (c *Controller) onSpeech() {
	if err := c.transition(fsm.EventSpeechDetected); err != nil {
		c.logDebug("ignored speech onset", "error", err.Error())
		return
	}
	c.indicator.ShowProcessing()
}

func (c *Controller) generate(ctx context.Context) error {
	stageCtx, cancel := c.signal.Context(ctx)
	defer cancel()

	intent, prompt := BuildPrompt(c.opts.Persona, c.turn.UserText)
	stageCtx, span := tracer.Start(stageCtx, "generate response", trace.WithAttributes(
		attribute.String("session.id", c.sessionID),
		attribute.String("turn.id", c.turn.ID),
		attribute.String("prompt.intent", string(intent)),
	))
	defer span.End()

	outcome := c.generator.Generate(stageCtx, prompt)
	if outcome.Kind == GenerationText && strings.TrimSpace(outcome.Text) == "" {
		outcome = GenerationOutcome{Kind: GenerationBadResponse, Message: "empty response"}
	}
	span.SetAttributes(attribute.String("generation.outcome", outcome.Kind.String()))

	if c.exitRequested(ctx) {
		return nil
	}

	if outcome.Kind != GenerationText {
		err := fmt.Errorf("generation %s: %s", outcome.Kind, outcome.Message)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.lastFailure = err.Error()
		c.indicator.ShowNotice(outcome.Apology())
		return c.transition(fsm.EventGenerationFailed)
	}

	c.turn.AssistantText = strings.TrimSpace(outcome.Text)
	return c.transition(fsm.EventGenerated)
}

// deliver speaks the response. Any playback outcome counts as delivered.
func (c *Controller) deliver(ctx context.Context) error {
	if err := c.say(ctx, c.turn.AssistantText); err != nil {
		return fmt.Errorf("speak response: %w", err)
	}
	c.budget.Reset()
	c.turns++
	return c.transition(fsm.EventSpoken)
}

func (c *Controller) recover(ctx context.Context) error {
	escalate := c.budget.Fail()
	line := c.opts.Lines.Repeat
	if escalate {
		line = c.opts.Lines.Break
		c.escalations++
	}
	c.logWarn("recovering from stage failure",
		"turn_id", c.turn.ID,
		"failure", c.lastFailure,
		"consecutive_failures", c.budget.ConsecutiveFailures(),
		"escalated", escalate,
	)

	if err := c.say(ctx, line); err != nil {
		return err
	}
	return c.transition(fsm.EventRecovered)
}

// exit speaks the closing line best-effort, trips the latch, and releases engines.
func (c *Controller) exit(ctx context.Context) {
	if !c.farewellSpoken {
		closingCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.opts.ClosingTimeout)
		outcome, err := c.speaker.Speak(closingCtx, c.opts.Lines.Closing)
		cancel()
		if err != nil {
			c.logWarn("closing line failed", "error", err.Error())
		} else if outcome.Kind != PlaybackCompleted {
			c.logWarn("closing line degraded", "outcome", outcome.Kind.String(), "message", outcome.Message)
		}
	}
	c.signal.RequestExit()
	c.release()
	c.logInfo("session end", "turns", c.turns, "escalations", c.escalations, "cancelled", c.cancelled)
}

// release closes the output engine and capture resources exactly once.
func (c *Controller) release() {
	c.releaseOnce.Do(func() {
		if err := c.speaker.Close(); err != nil {
			c.logWarn("release speaker failed", "error", err.Error())
		}
		if err := c.recognizer.Close(); err != nil {
			c.logWarn("release recognizer failed", "error", err.Error())
		}
	})
}

// say speaks a line bound to the exit latch. Only a hard engine failure is returned.
func (c *Controller) say(ctx context.Context, text string) error {
	stageCtx, cancel := c.signal.Context(ctx)
	defer cancel()
	stageCtx, span := tracer.Start(stageCtx, "speak response", trace.WithAttributes(
		attribute.String("session.id", c.sessionID),
		attribute.String("turn.id", c.turn.ID),
		attribute.Int("speech.words", len(strings.Fields(text))),
	))
	defer span.End()

	outcome, err := c.speaker.Speak(stageCtx, text)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	span.SetAttributes(attribute.String("playback.outcome", outcome.Kind.String()))
	if outcome.Kind != PlaybackCompleted {
		c.logWarn("degraded delivery", "turn_id", c.turn.ID, "outcome", outcome.Kind.String(), "message", outcome.Message)
	}
	return nil
}

func (c *Controller) logDebug(msg string, args ...any) {
	if c.logger == nil {
		return
	}
	c.logger.Debug(msg, append([]any{"session_id", c.sessionID}, args...)...)
}

func (c *Controller) logInfo(msg string, args ...any) {
	if c.logger == nil {
		return
	}
	c.logger.Info(msg, append([]any{"session_id", c.sessionID}, args...)...)
}

func (c *Controller) logWarn(msg string, args ...any) {
	if c.logger == nil {
		return
	}
	c.logger.Warn(msg, append([]any{"session_id", c.sessionID}, args...)...)
}

func (c *Controller) logError(msg string, args ...any) {
	if c.logger == nil {
		return
	}
	c.logger.Error(msg, append([]any{"session_id", c.sessionID}, args...)...)
}
