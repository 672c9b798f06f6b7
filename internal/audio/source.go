// Package audio handles device discovery, selection, and PCM capture streams.
package audio

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"
)

// Capture format shared by every backend: 16kHz mono signed 16-bit little endian.
const (
	SampleRate     = 16000
	BytesPerSample = 2
	BytesPerSecond = SampleRate * BytesPerSample

	chunkSizeBytes = 640 // 20ms @ 16kHz mono s16
	chunkBacklog   = 256
)

// ChunkDuration is the audio span covered by one emitted chunk.
const ChunkDuration = time.Duration(chunkSizeBytes) * time.Second / BytesPerSecond

// Backend names a capture implementation.
type Backend string

const (
	BackendPulse     Backend = "pulse"
	BackendPortAudio Backend = "portaudio"
)

// ParseBackend validates a configured backend name.
func ParseBackend(raw string) (Backend, error) {
	switch Backend(strings.ToLower(strings.TrimSpace(raw))) {
	case "", BackendPulse:
		return BackendPulse, nil
	case BackendPortAudio:
		return BackendPortAudio, nil
	default:
		return "", fmt.Errorf("unsupported audio backend %q", raw)
	}
}

// Source is a live microphone stream. Chunks stays open until Stop.
type Source interface {
	Chunks() <-chan []byte
	Device() Device
	BytesCaptured() int64
	Dropped() int64
	Stop() error
}

// ListDevices returns the inputs a backend can capture from.
func ListDevices(ctx context.Context, backend Backend) ([]Device, error) {
	switch backend {
	case BackendPortAudio:
		return listPortAudioDevices(ctx)
	default:
		return listPulseDevices(ctx)
	}
}

// SelectDevice resolves audio.input/audio.fallback preferences against live devices.
func SelectDevice(ctx context.Context, backend Backend, input string, fallback string) (Selection, error) {
	devices, err := ListDevices(ctx, backend)
	if err != nil {
		return Selection{}, err
	}
	return selectDeviceFromList(devices, input, fallback)
}

// Open starts a session-wide capture stream on the selected device.
func Open(ctx context.Context, backend Backend, selected Device) (Source, error) {
	switch backend {
	case BackendPortAudio:
		capture, err := startPortAudioCapture(ctx, selected)
		if err != nil {
			return nil, err
		}
		return capture, nil
	default:
		capture, err := StartCapture(ctx, selected)
		if err != nil {
			return nil, err
		}
		return capture, nil
	}
}

// chunkQueue hands fixed-size chunks to the consumer without ever blocking the producer.
// When the consumer falls behind the oldest backlog is kept and new chunks are dropped.
type chunkQueue struct {
	ch      chan []byte
	bytes   atomic.Int64
	dropped atomic.Int64
}

func newChunkQueue() *chunkQueue {
	return &chunkQueue{ch: make(chan []byte, chunkBacklog)}
}

func (q *chunkQueue) push(chunk []byte) {
	q.bytes.Add(int64(len(chunk)))
	select {
	case q.ch <- chunk:
	default:
		q.dropped.Add(1)
	}
}
