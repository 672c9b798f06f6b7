package voice

import (
	"io"

	"github.com/rbright/buddy/internal/playback"
)

// EnginePlayer adapts the beep output engine to Player.
type EnginePlayer struct {
	Engine *playback.Engine
}

// Play starts r on the output device.
func (p EnginePlayer) Play(r io.ReadCloser) (Playing, error) {
	clip, err := p.Engine.Play(r)
	if err != nil {
		return nil, err
	}
	return clip, nil
}

// Close shuts the output device.
func (p EnginePlayer) Close() error {
	return p.Engine.Close()
}
