package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
)

const portAudioFramesPerBuffer = chunkSizeBytes / BytesPerSample

// listPortAudioDevices maps PortAudio host devices with input channels to Device.
func listPortAudioDevices(_ context.Context) ([]Device, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize portaudio: %w", err)
	}
	defer portaudio.Terminate()

	infos, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list portaudio devices: %w", err)
	}
	defaultName := ""
	if def, err := portaudio.DefaultInputDevice(); err == nil && def != nil {
		defaultName = def.Name
	}
	return portAudioDevices(infos, defaultName), nil
}

func portAudioDevices(infos []*portaudio.DeviceInfo, defaultName string) []Device {
	devices := make([]Device, 0, len(infos))
	for _, info := range infos {
		if info == nil || info.MaxInputChannels < 1 {
			continue
		}
		description := info.Name
		if info.HostApi != nil {
			description = fmt.Sprintf("%s (%s)", info.Name, info.HostApi.Name)
		}
		devices = append(devices, Device{
			ID:          info.Name,
			Description: description,
			State:       "idle",
			Available:   true,
			Default:     info.Name == defaultName,
		})
	}
	return devices
}

// blockingStream is the subset of *portaudio.Stream the capture loop drives.
type blockingStream interface {
	Read() error
	Stop() error
	Close() error
}

// portAudioCapture reads blocking PortAudio frames on its own goroutine.
type portAudioCapture struct {
	device    Device
	stream    blockingStream
	buffer    []int16
	terminate func() error

	queue  *chunkQueue
	stopCh chan struct{}
	done   chan struct{}

	stopOnce sync.Once
	mu       sync.Mutex
	err      error
}

func newPortAudioCapture(selected Device, stream blockingStream, buffer []int16, terminate func() error) *portAudioCapture {
	return &portAudioCapture{
		device:    selected,
		stream:    stream,
		buffer:    buffer,
		terminate: terminate,
		queue:     newChunkQueue(),
		stopCh:    make(chan struct{}),
		done:      make(chan struct{}),
	}
}

func startPortAudioCapture(ctx context.Context, selected Device) (*portAudioCapture, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize portaudio: %w", err)
	}

	info, err := findPortAudioDevice(selected.ID)
	if err != nil {
		portaudio.Terminate()
		return nil, err
	}

	params := portaudio.LowLatencyParameters(info, nil)
	params.Input.Channels = 1
	params.SampleRate = SampleRate
	params.FramesPerBuffer = portAudioFramesPerBuffer

	buffer := make([]int16, portAudioFramesPerBuffer)
	stream, err := portaudio.OpenStream(params, buffer)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("open portaudio stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return nil, fmt.Errorf("start portaudio stream: %w", err)
	}
	capture := newPortAudioCapture(selected, stream, buffer, portaudio.Terminate)
	go capture.readLoop()
	go func() {
		<-ctx.Done()
		_ = capture.Stop()
	}()

	return capture, nil
}

func findPortAudioDevice(id string) (*portaudio.DeviceInfo, error) {
	infos, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list portaudio devices: %w", err)
	}
	for _, info := range infos {
		if info != nil && info.Name == id && info.MaxInputChannels > 0 {
			return info, nil
		}
	}
	return nil, fmt.Errorf("portaudio input %q not found", id)
}

func (c *portAudioCapture) readLoop() {
	defer close(c.done)
	for {
		select {
		case <-c.stopCh:
			return
		default:
		}

		if err := c.stream.Read(); err != nil && !errors.Is(err, portaudio.InputOverflowed) {
			c.mu.Lock()
			c.err = fmt.Errorf("read portaudio stream: %w", err)
			c.mu.Unlock()
			// Stop waits on done, so it cannot run on this goroutine.
			go func() { _ = c.Stop() }()
			return
		}
		c.queue.push(int16LE(c.buffer))
	}
}

func (c *portAudioCapture) Device() Device        { return c.device }
func (c *portAudioCapture) Chunks() <-chan []byte { return c.queue.ch }
func (c *portAudioCapture) BytesCaptured() int64  { return c.queue.bytes.Load() }
func (c *portAudioCapture) Dropped() int64        { return c.queue.dropped.Load() }

// Err returns the read failure that ended capture, if any.
func (c *portAudioCapture) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Stop waits for the read loop, then releases the stream and the PortAudio runtime.
func (c *portAudioCapture) Stop() error {
	var err error
	c.stopOnce.Do(func() {
		close(c.stopCh)
		<-c.done
		if stopErr := c.stream.Stop(); stopErr != nil {
			err = fmt.Errorf("stop portaudio stream: %w", stopErr)
		}
		_ = c.stream.Close()
		if c.terminate != nil {
			_ = c.terminate()
		}
		close(c.queue.ch)
	})
	return err
}

// int16LE encodes samples in the capture wire format.
func int16LE(samples []int16) []byte {
	out := make([]byte, len(samples)*BytesPerSample)
	for i, sample := range samples {
		binary.LittleEndian.PutUint16(out[i*BytesPerSample:], uint16(sample))
	}
	return out
}
