package hotkey

import (
	"errors"
	"testing"

	"github.com/eiannone/keyboard"
	"github.com/stretchr/testify/require"
)

func TestPressedIgnoresOtherKeys(t *testing.T) {
	events := make(chan keyboard.KeyEvent, 4)
	events <- keyboard.KeyEvent{Rune: 'a'}
	events <- keyboard.KeyEvent{Key: keyboard.KeyEnter}
	l := newListener(events)

	require.False(t, l.Pressed())
}

func TestPressedDetectsEscapeAndLatches(t *testing.T) {
	events := make(chan keyboard.KeyEvent, 4)
	events <- keyboard.KeyEvent{Rune: 'x'}
	events <- keyboard.KeyEvent{Key: keyboard.KeyEsc}
	l := newListener(events)

	require.True(t, l.Pressed())
	require.True(t, l.Pressed())
}

func TestPressedDetectsCtrlC(t *testing.T) {
	events := make(chan keyboard.KeyEvent, 1)
	events <- keyboard.KeyEvent{Key: keyboard.KeyCtrlC}

	require.True(t, newListener(events).Pressed())
}

func TestPressedSkipsErroredEvents(t *testing.T) {
	events := make(chan keyboard.KeyEvent, 2)
	events <- keyboard.KeyEvent{Key: keyboard.KeyEsc, Err: errors.New("read failed")}
	l := newListener(events)

	require.False(t, l.Pressed())
}

func TestPressedOnClosedChannel(t *testing.T) {
	events := make(chan keyboard.KeyEvent)
	close(events)

	require.False(t, newListener(events).Pressed())
}
