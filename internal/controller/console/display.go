package console

import (
	"errors"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/aryan0dhankhar/doorgate/internal/controller"
)

// TerminalDisplay draws each frame as a bordered box on a terminal
type TerminalDisplay struct {
	out   io.Writer
	width int
	box   lipgloss.Style
	head  lipgloss.Style
	foot  lipgloss.Style
}

// NewTerminalDisplay renders frames of the given inner width to out
func NewTerminalDisplay(out io.Writer, width int) *TerminalDisplay {
	if width <= 0 {
		width = 24
	}
	return &TerminalDisplay{
		out:   out,
		width: width,
		box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1).
			Width(width),
		head: lipgloss.NewStyle().Bold(true),
		foot: lipgloss.NewStyle().Faint(true),
	}
}

// Init clears the terminal
func (d *TerminalDisplay) Init() error {
	if d.out == nil {
		return errors.New("no terminal attached")
	}
	_, err := io.WriteString(d.out, "\x1b[2J\x1b[H")
	return err
}

// Show redraws the box with the frame contents
func (d *TerminalDisplay) Show(s controller.Screen) error {
	body := strings.Join(s.Lines, "\n")
	content := lipgloss.JoinVertical(lipgloss.Left,
		d.head.Render(s.Header),
		"",
		body,
		"",
		d.foot.Render(s.Footer),
	)
	_, err := io.WriteString(d.out, "\x1b[H"+d.box.Render(content)+"\n")
	return err
}
