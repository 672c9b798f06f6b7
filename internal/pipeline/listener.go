// Package pipeline turns the live microphone stream into recognized utterances.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rbright/buddy/internal/audio"
	"github.com/rbright/buddy/internal/session"
	"github.com/rbright/buddy/internal/shutdown"
	"github.com/rbright/buddy/internal/transcript"
)

// ErrCaptureStopped indicates the audio source closed underneath the listener.
var ErrCaptureStopped = errors.New("audio capture stopped")

// Transcriber converts one captured utterance into final ASR segments.
type Transcriber interface {
	Transcribe(ctx context.Context, pcm []byte) ([]string, error)
}

// Options tunes voice activity detection.
type Options struct {
	EnergyThreshold float64
	DynamicRatio    float64
	Pause           time.Duration
	Calibration     time.Duration
	PreRoll         time.Duration
	AudioDump       bool
}

func (o Options) withDefaults() Options {
	if o.EnergyThreshold <= 0 {
		o.EnergyThreshold = 4000
	}
	if o.DynamicRatio < 1 {
		o.DynamicRatio = 1.5
	}
	if o.Pause <= 0 {
		o.Pause = 800 * time.Millisecond
	}
	if o.Calibration <= 0 {
		o.Calibration = 2 * time.Second
	}
	if o.PreRoll <= 0 {
		o.PreRoll = 300 * time.Millisecond
	}
	return o
}

// Listener owns utterance capture over a session-wide audio source.
type Listener struct {
	source      audio.Source
	transcriber Transcriber
	signal      *shutdown.Signal
	logger      *slog.Logger
	opts        Options

	mu        sync.Mutex
	threshold float64
	closed    bool
}

// NewListener wires a listener; the source must already be running.
func NewListener(source audio.Source, transcriber Transcriber, signal *shutdown.Signal, logger *slog.Logger, opts Options) *Listener {
	opts = opts.withDefaults()
	if signal == nil {
		signal = shutdown.NewSignal()
	}
	return &Listener{
		source:      source,
		transcriber: transcriber,
		signal:      signal,
		logger:      logger,
		opts:        opts,
		threshold:   opts.EnergyThreshold,
	}
}

// Threshold returns the active speech energy threshold.
func (l *Listener) Threshold() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.threshold
}

// Calibrate samples ambient noise and raises the threshold above it.
func (l *Listener) Calibrate(ctx context.Context) error {
	l.drain()

	deadline := time.NewTimer(l.opts.Calibration + time.Second)
	defer deadline.Stop()

	var (
		total    float64
		chunks   int
		captured time.Duration
	)
	for captured < l.opts.Calibration {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.signal.Done():
			return context.Canceled
		case <-deadline.C:
			if chunks == 0 {
				return errors.New("no audio received during calibration")
			}
			captured = l.opts.Calibration
		case chunk, ok := <-l.source.Chunks():
			if !ok {
				return ErrCaptureStopped
			}
			total += audio.RMS(chunk)
			chunks++
			captured += audio.Duration(len(chunk))
		}
	}

	ambient := total / float64(chunks)
	threshold := max(l.opts.EnergyThreshold, ambient*l.opts.DynamicRatio)

	l.mu.Lock()
	l.threshold = threshold
	l.mu.Unlock()

	l.logInfo("ambient calibration complete", "ambient_rms", ambient, "threshold", threshold)
	return nil
}

// CaptureUtterance waits for speech, records until a pause or the phrase limit,
// and transcribes the result.
func (l *Listener) CaptureUtterance(ctx context.Context, req session.CaptureRequest) session.RecognitionOutcome {
	if l.signal.IsExitRequested() || ctx.Err() != nil {
		return session.RecognitionOutcome{Kind: session.RecognitionCancelled}
	}

	pcm, outcome, captured := l.record(ctx, req)
	if !captured {
		return outcome
	}

	l.writeDebugAudio(pcm)

	segments, err := l.transcriber.Transcribe(ctx, pcm)
	if l.signal.IsExitRequested() || ctx.Err() != nil {
		return session.RecognitionOutcome{Kind: session.RecognitionCancelled}
	}
	if err != nil {
		l.logWarn("transcription failed", "error", err.Error(), "audio", describeDevice(l.source.Device()))
		return session.RecognitionOutcome{Kind: session.RecognitionServiceFailure, Message: err.Error()}
	}

	text := transcript.Assemble(segments)
	if text == "" {
		return session.RecognitionOutcome{Kind: session.RecognitionUnintelligible}
	}
	return session.RecognitionOutcome{Kind: session.RecognitionText, Text: text}
}

// record runs the energy gate. captured is false when outcome is terminal.
func (l *Listener) record(ctx context.Context, req session.CaptureRequest) ([]byte, session.RecognitionOutcome, bool) {
	l.drain()

	threshold := l.Threshold()
	onsetTimeout := req.Timeout
	if onsetTimeout <= 0 {
		onsetTimeout = 3 * time.Second
	}
	phraseLimit := req.PhraseLimit
	if phraseLimit <= 0 {
		phraseLimit = 10 * time.Second
	}

	onset := time.NewTimer(onsetTimeout)
	defer onset.Stop()
	onsetC := onset.C

	// Pause and phrase limit count audio time; the stall timer bounds a source that stops delivering.
	var (
		stall  *time.Timer
		stallC <-chan time.Time
	)
	defer func() {
		if stall != nil {
			stall.Stop()
		}
	}()

	preRollChunks := max(int(l.opts.PreRoll/audio.ChunkDuration), 1)
	preRoll := make([][]byte, 0, preRollChunks)

	var (
		utterance []byte
		speaking  bool
		silence   time.Duration
	)

	for {
		select {
		case <-ctx.Done():
			return nil, session.RecognitionOutcome{Kind: session.RecognitionCancelled}, false
		case <-l.signal.Done():
			return nil, session.RecognitionOutcome{Kind: session.RecognitionCancelled}, false
		case <-onsetC:
			return nil, session.RecognitionOutcome{Kind: session.RecognitionNoSpeech}, false
		case <-stallC:
			if len(utterance) == 0 {
				return nil, l.captureStopped(), false
			}
			l.logWarn("audio stalled mid-utterance",
				"duration_ms", audio.Duration(len(utterance)).Milliseconds(),
				"audio", describeDevice(l.source.Device()),
			)
			return utterance, session.RecognitionOutcome{}, true
		case chunk, ok := <-l.source.Chunks():
			if !ok {
				return nil, l.captureStopped(), false
			}

			loud := audio.RMS(chunk) >= threshold
			if !speaking {
				if len(preRoll) == preRollChunks {
					preRoll = preRoll[1:]
				}
				preRoll = append(preRoll, chunk)
				if !loud {
					continue
				}
				speaking = true
				onset.Stop()
				onsetC = nil
				stall = time.NewTimer(phraseLimit + l.opts.Pause)
				stallC = stall.C
				for _, buffered := range preRoll {
					utterance = append(utterance, buffered...)
				}
				if req.OnSpeech != nil {
					req.OnSpeech()
				}
				continue
			}

			utterance = append(utterance, chunk...)
			if loud {
				silence = 0
			} else {
				silence += audio.Duration(len(chunk))
			}
			if silence >= l.opts.Pause || audio.Duration(len(utterance)) >= phraseLimit {
				l.logDebug("utterance captured",
					"duration_ms", audio.Duration(len(utterance)).Milliseconds(),
					"ended_by_pause", silence >= l.opts.Pause,
				)
				return utterance, session.RecognitionOutcome{}, true
			}
		}
	}
}

// captureStopped reports a dead audio source, with its cause when the backend knows it.
func (l *Listener) captureStopped() session.RecognitionOutcome {
	message := ErrCaptureStopped.Error()
	if reporter, ok := l.source.(interface{ Err() error }); ok {
		if err := reporter.Err(); err != nil {
			message = fmt.Sprintf("%s: %v", message, err)
		}
	}
	return session.RecognitionOutcome{Kind: session.RecognitionServiceFailure, Message: message}
}

// drain discards chunks buffered while nobody was listening.
func (l *Listener) drain() {
	for {
		select {
		case _, ok := <-l.source.Chunks():
			if !ok {
				return
			}
		default:
			return
		}
	}
}

// Close stops the audio source. Safe to call more than once.
func (l *Listener) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.mu.Unlock()

	if dropped := l.source.Dropped(); dropped > 0 {
		l.logDebug("capture backlog dropped chunks", "chunks", dropped)
	}
	if err := l.source.Stop(); err != nil {
		return fmt.Errorf("stop audio capture: %w", err)
	}
	return nil
}

func (l *Listener) logDebug(msg string, args ...any) {
	if l.logger == nil {
		return
	}
	l.logger.Debug(msg, args...)
}

func (l *Listener) logInfo(msg string, args ...any) {
	if l.logger == nil {
		return
	}
	l.logger.Info(msg, args...)
}

func (l *Listener) logWarn(msg string, args ...any) {
	if l.logger == nil {
		return
	}
	l.logger.Warn(msg, args...)
}
