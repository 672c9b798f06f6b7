// Package voice speaks assistant text: synthesize, play, and watch for completion.
package voice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/rbright/buddy/internal/playback"
	"github.com/rbright/buddy/internal/session"
)

// Synthesizer renders text to MP3 bytes.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, w io.Writer) error
}

// Playing is one clip in flight.
type Playing interface {
	Busy() bool
	Stop()
}

// Player starts clips on the output device.
type Player interface {
	Play(r io.ReadCloser) (Playing, error)
	Close() error
}

// Display is the console channel for assistant text.
type Display interface {
	ShowAssistant(string)
	ShowTextOnly(string)
}

type noopDisplay struct{}

func (noopDisplay) ShowAssistant(string) {}
func (noopDisplay) ShowTextOnly(string)  {}

// Options tunes the playback timeout heuristic and completion polling.
type Options struct {
	SecondsPerWord float64
	Buffer         time.Duration
	PollInterval   time.Duration
	TempDir        string
}

func (o Options) withDefaults() Options {
	if o.SecondsPerWord <= 0 {
		o.SecondsPerWord = 0.5
	}
	if o.Buffer <= 0 {
		o.Buffer = 5 * time.Second
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 100 * time.Millisecond
	}
	return o
}

// Engine implements session.Speaker.
type Engine struct {
	synth   Synthesizer
	player  Player
	display Display
	logger  *slog.Logger
	opts    Options
}

// NewEngine wires a speech engine; a nil display falls back to no console output.
func NewEngine(synth Synthesizer, player Player, display Display, logger *slog.Logger, opts Options) *Engine {
	if display == nil {
		display = noopDisplay{}
	}
	return &Engine{
		synth:   synth,
		player:  player,
		display: display,
		logger:  logger,
		opts:    opts.withDefaults(),
	}
}

// Timeout is the playback budget for text: words x seconds-per-word + buffer.
func (e *Engine) Timeout(text string) time.Duration {
	words := len(strings.Fields(text))
	return time.Duration(float64(words)*e.opts.SecondsPerWord*float64(time.Second)) + e.opts.Buffer
}

// Speak synthesizes and plays text. Only an unusable output engine is returned as error.
func (e *Engine) Speak(ctx context.Context, text string) (session.PlaybackOutcome, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return session.PlaybackOutcome{Kind: session.PlaybackCompleted}, nil
	}
	e.display.ShowAssistant(text)

	path, err := e.synthesize(ctx, text)
	if path != "" {
		defer e.removeArtifact(path)
	}
	if err != nil {
		if ctx.Err() != nil {
			return session.PlaybackOutcome{Kind: session.PlaybackInterrupted, Message: err.Error()}, nil
		}
		return e.fallback(text, fmt.Errorf("synthesize speech: %w", err)), nil
	}

	file, err := os.Open(path)
	if err != nil {
		return e.fallback(text, fmt.Errorf("open speech artifact: %w", err)), nil
	}
	playing, err := e.player.Play(file)
	if err != nil {
		if errors.Is(err, playback.ErrClosed) {
			return session.PlaybackOutcome{}, err
		}
		return e.fallback(text, err), nil
	}

	return e.watch(ctx, playing, e.Timeout(text)), nil
}

// synthesize writes the MP3 artifact and returns its path, even on failure.
func (e *Engine) synthesize(ctx context.Context, text string) (string, error) {
	file, err := os.CreateTemp(e.opts.TempDir, "buddy-speech-*.mp3")
	if err != nil {
		return "", fmt.Errorf("create speech artifact: %w", err)
	}
	path := file.Name()

	synthErr := e.synth.Synthesize(ctx, text, file)
	closeErr := file.Close()
	if synthErr != nil {
		return path, synthErr
	}
	if closeErr != nil {
		return path, fmt.Errorf("write speech artifact: %w", closeErr)
	}

	info, err := os.Stat(path)
	if err != nil {
		return path, fmt.Errorf("stat speech artifact: %w", err)
	}
	if info.Size() == 0 {
		return path, errors.New("speech artifact is empty")
	}
	return path, nil
}

// watch polls Busy until the clip ends, ctx is cancelled, or the timeout fires.
func (e *Engine) watch(ctx context.Context, playing Playing, timeout time.Duration) session.PlaybackOutcome {
	ticker := time.NewTicker(e.opts.PollInterval)
	defer ticker.Stop()
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		if !playing.Busy() {
			return session.PlaybackOutcome{Kind: session.PlaybackCompleted}
		}
		select {
		case <-ctx.Done():
			playing.Stop()
			return session.PlaybackOutcome{Kind: session.PlaybackInterrupted, Message: ctx.Err().Error()}
		case <-deadline.C:
			playing.Stop()
			e.logWarn("playback timed out", "timeout_ms", timeout.Milliseconds())
			return session.PlaybackOutcome{
				Kind:    session.PlaybackTimedOut,
				Message: fmt.Sprintf("playback exceeded %s", timeout),
			}
		case <-ticker.C:
		}
	}
}

func (e *Engine) fallback(text string, err error) session.PlaybackOutcome {
	e.logWarn("speech delivery failed; using text only", "error", err.Error())
	e.display.ShowTextOnly(text)
	return session.PlaybackOutcome{Kind: session.PlaybackEngineFailure, Message: err.Error()}
}

func (e *Engine) removeArtifact(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		e.logWarn("remove speech artifact failed", "path", path, "error", err.Error())
	}
}

// Close releases the output engine.
func (e *Engine) Close() error {
	if e.player == nil {
		return nil
	}
	return e.player.Close()
}

func (e *Engine) logWarn(msg string, args ...any) {
	if e.logger == nil {
		return
	}
	e.logger.Warn(msg, args...)
}
