// Package hotkey watches the terminal for the exit key.
package hotkey

import (
	"fmt"
	"sync"

	"github.com/eiannone/keyboard"
)

// Listener buffers terminal key events and reports exit key presses.
type Listener struct {
	events <-chan keyboard.KeyEvent

	mu      sync.Mutex
	pressed bool
	closed  bool
}

// Open puts the terminal in raw mode and starts buffering key events.
func Open() (*Listener, error) {
	if err := keyboard.Open(); err != nil {
		return nil, fmt.Errorf("open keyboard: %w", err)
	}
	events, err := keyboard.GetKeys(16)
	if err != nil {
		_ = keyboard.Close()
		return nil, fmt.Errorf("read keyboard events: %w", err)
	}
	return newListener(events), nil
}

func newListener(events <-chan keyboard.KeyEvent) *Listener {
	return &Listener{events: events}
}

// Pressed drains pending events without blocking and reports whether ESC or Ctrl+C was seen.
// Once true it stays true.
func (l *Listener) Pressed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.pressed || l.closed {
		return l.pressed
	}
	for {
		select {
		case ev, ok := <-l.events:
			if !ok {
				return l.pressed
			}
			if ev.Err != nil {
				continue
			}
			if isExitKey(ev) {
				l.pressed = true
				return true
			}
		default:
			return l.pressed
		}
	}
}

// Close restores the terminal.
func (l *Listener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	return keyboard.Close()
}

// Ctrl+C arrives as a key in raw mode instead of SIGINT.
func isExitKey(ev keyboard.KeyEvent) bool {
	return ev.Key == keyboard.KeyEsc || ev.Key == keyboard.KeyCtrlC
}
