package audio

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gordonklaus/portaudio"
	"github.com/stretchr/testify/require"
)

type scriptedStream struct {
	mu      sync.Mutex
	reads   []error
	stopped int
	closed  int
}

func (s *scriptedStream) Read() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.reads) == 0 {
		return errors.New("device unplugged")
	}
	err := s.reads[0]
	s.reads = s.reads[1:]
	return err
}

func (s *scriptedStream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped++
	return nil
}

func (s *scriptedStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

func TestPortAudioCaptureReadErrorClosesChunks(t *testing.T) {
	stream := &scriptedStream{reads: []error{nil, portaudio.InputOverflowed}}
	terminated := 0
	capture := newPortAudioCapture(Device{ID: "USB Mic"}, stream, []int16{1, -1}, func() error {
		terminated++
		return nil
	})

	go capture.readLoop()

	var received int
	timeout := time.After(2 * time.Second)
	for open := true; open; {
		select {
		case _, ok := <-capture.Chunks():
			if ok {
				received++
			}
			open = ok
		case <-timeout:
			t.Fatal("chunks channel was not closed after read failure")
		}
	}

	// The overflowed read still delivers its buffer.
	require.Equal(t, 2, received)
	require.ErrorContains(t, capture.Err(), "device unplugged")

	require.NoError(t, capture.Stop())
	stream.mu.Lock()
	defer stream.mu.Unlock()
	require.Equal(t, 1, stream.stopped)
	require.Equal(t, 1, stream.closed)
	require.Equal(t, 1, terminated)
}

func TestPortAudioCaptureStopClosesChunksOnce(t *testing.T) {
	stream := &scriptedStream{}
	capture := newPortAudioCapture(Device{ID: "USB Mic"}, stream, []int16{0}, nil)
	close(capture.done)

	require.NoError(t, capture.Stop())
	require.NoError(t, capture.Stop())

	_, ok := <-capture.Chunks()
	require.False(t, ok)
	require.NoError(t, capture.Err())
}
