// Package playback owns the process-wide audio output device.
package playback

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
)

// ErrClosed means the output engine was shut down and can no longer play.
var ErrClosed = errors.New("audio output engine closed")

// DefaultSampleRate is the device rate used when none is configured.
const DefaultSampleRate = 44100

// resampleQuality trades CPU for fidelity when clip and device rates differ.
const resampleQuality = 4

// Engine wraps the beep speaker singleton. Only one Engine may be open per process.
type Engine struct {
	mu         sync.Mutex
	sampleRate beep.SampleRate
	current    *Playback
	closed     bool
}

// Open initialises the output device at sampleRate.
func Open(sampleRate int) (*Engine, error) {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	sr := beep.SampleRate(sampleRate)
	if err := speaker.Init(sr, sr.N(time.Second/10)); err != nil {
		return nil, fmt.Errorf("initialize audio output: %w", err)
	}
	return &Engine{sampleRate: sr}, nil
}

// Play decodes an MP3 stream and starts it, replacing anything already playing.
// The engine owns r from here on and closes it when playback ends.
func (e *Engine) Play(r io.ReadCloser) (*Playback, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		_ = r.Close()
		return nil, ErrClosed
	}

	streamer, format, err := mp3.Decode(r)
	if err != nil {
		_ = r.Close()
		return nil, fmt.Errorf("decode mp3: %w", err)
	}

	if e.current != nil {
		e.current.Stop()
	}

	playback := newPlayback(streamer)
	var source beep.Streamer = streamer
	if format.SampleRate != e.sampleRate {
		source = beep.Resample(resampleQuality, format.SampleRate, e.sampleRate, streamer)
	}
	playback.ctrl.Streamer = source

	e.current = playback
	speaker.Play(beep.Seq(playback.ctrl, beep.Callback(playback.finish)))
	return playback, nil
}

// Close stops output and releases the device. Later Play calls return ErrClosed.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true
	if e.current != nil {
		e.current.Stop()
		e.current = nil
	}
	speaker.Clear()
	speaker.Close()
	return nil
}

// Playback is one clip in flight.
type Playback struct {
	ctrl   *beep.Ctrl
	source io.Closer
	done   chan struct{}
	once   sync.Once
}

func newPlayback(source io.Closer) *Playback {
	return &Playback{
		ctrl:   &beep.Ctrl{},
		source: source,
		done:   make(chan struct{}),
	}
}

// Busy reports whether the clip is still playing.
func (p *Playback) Busy() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

// Stop silences the clip. Safe to call after it has finished.
func (p *Playback) Stop() {
	if !p.Busy() {
		return
	}
	speaker.Lock()
	p.ctrl.Streamer = nil
	speaker.Unlock()
	p.finish()
}

// finish runs on the speaker goroutine at clip end, or from Stop.
func (p *Playback) finish() {
	p.once.Do(func() {
		if p.source != nil {
			_ = p.source.Close()
		}
		close(p.done)
	})
}
