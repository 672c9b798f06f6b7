// Package indicator renders session status and conversation lines on the console.
package indicator

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
)

// DefaultWidth wraps long responses for an 80-column terminal.
const DefaultWidth = 80

// Console writes styled lines to one writer. Safe for concurrent use.
type Console struct {
	mu       sync.Mutex
	out      io.Writer
	width    int
	messages messages

	status    lipgloss.Style
	user      lipgloss.Style
	assistant lipgloss.Style
	notice    lipgloss.Style
	warning   lipgloss.Style
}

// NewConsole builds a console indicator; width <= 0 uses DefaultWidth.
func NewConsole(out io.Writer, width int) *Console {
	if width <= 0 {
		width = DefaultWidth
	}
	renderer := lipgloss.NewRenderer(out)
	return &Console{
		out:       out,
		width:     width,
		messages:  indicatorMessagesFromEnv(),
		status:    renderer.NewStyle().Foreground(lipgloss.Color("#89b4fa")),
		user:      renderer.NewStyle().Foreground(lipgloss.Color("#a6e3a1")).Bold(true),
		assistant: renderer.NewStyle().Foreground(lipgloss.Color("#cba6f7")),
		notice:    renderer.NewStyle().Foreground(lipgloss.Color("#f9e2af")).Italic(true),
		warning:   renderer.NewStyle().Foreground(lipgloss.Color("#f38ba8")),
	}
}

// ShowListening announces a new capture attempt.
func (c *Console) ShowListening() {
	c.println(c.status, c.messages.listening)
}

// ShowProcessing announces speech onset.
func (c *Console) ShowProcessing() {
	c.println(c.status, c.messages.processing)
}

// ShowUserText echoes the recognized utterance.
func (c *Console) ShowUserText(text string) {
	c.println(c.user, c.messages.youSaid+text)
}

// ShowNoSpeech reports a capture attempt that heard nothing.
func (c *Console) ShowNoSpeech() {
	c.println(c.notice, c.messages.noSpeech)
}

// ShowUnintelligible reports speech the recognizer could not transcribe.
func (c *Console) ShowUnintelligible() {
	c.println(c.notice, c.messages.unintelligible)
}

// ShowNotice prints a transient status such as an apology.
func (c *Console) ShowNotice(text string) {
	c.println(c.notice, text)
}

// ShowAssistant prints the text about to be spoken.
func (c *Console) ShowAssistant(text string) {
	c.println(c.assistant, c.messages.assistant+text)
}

// ShowTextOnly prints text that could not be voiced.
func (c *Console) ShowTextOnly(text string) {
	c.println(c.assistant, c.messages.textOnly+text)
}

// ShowWarning prints a non-fatal startup problem.
func (c *Console) ShowWarning(text string) {
	c.println(c.warning, c.messages.warning+text)
}

func (c *Console) println(style lipgloss.Style, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	wrapped := wordwrap.String(text, c.width)

	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintln(c.out, style.Render(wrapped))
}
