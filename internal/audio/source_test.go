package audio

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/gordonklaus/portaudio"
	"github.com/stretchr/testify/require"
)

func TestParseBackend(t *testing.T) {
	backend, err := ParseBackend("")
	require.NoError(t, err)
	require.Equal(t, BackendPulse, backend)

	backend, err = ParseBackend(" PortAudio ")
	require.NoError(t, err)
	require.Equal(t, BackendPortAudio, backend)

	_, err = ParseBackend("alsa")
	require.ErrorContains(t, err, "unsupported audio backend")
}

func TestChunkDuration(t *testing.T) {
	require.Equal(t, 20*time.Millisecond, ChunkDuration)
	require.Equal(t, time.Second, Duration(BytesPerSecond))
}

func TestRMS(t *testing.T) {
	require.Zero(t, RMS(nil))
	require.Zero(t, RMS(make([]byte, 64)))

	pcm := make([]byte, 8)
	for i := 0; i < 4; i++ {
		sample := int16(1000)
		if i%2 == 1 {
			sample = -1000
		}
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(sample))
	}
	require.InDelta(t, 1000, RMS(pcm), 0.001)
}

func TestInt16LE(t *testing.T) {
	out := int16LE([]int16{1, -1})
	require.Equal(t, []byte{0x01, 0x00, 0xff, 0xff}, out)
}

func TestPortAudioDevicesSkipsOutputOnly(t *testing.T) {
	host := &portaudio.HostApiInfo{Name: "ALSA"}
	infos := []*portaudio.DeviceInfo{
		{Name: "USB Mic", MaxInputChannels: 1, HostApi: host},
		{Name: "Speakers", MaxOutputChannels: 2, HostApi: host},
		nil,
	}

	devices := portAudioDevices(infos, "USB Mic")
	require.Len(t, devices, 1)
	require.Equal(t, "USB Mic", devices[0].ID)
	require.Equal(t, "USB Mic (ALSA)", devices[0].Description)
	require.True(t, devices[0].Default)
	require.True(t, devices[0].Available)
}
