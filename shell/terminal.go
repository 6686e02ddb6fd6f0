package shell

import (
	"os"
	"strings"

	"github.com/peterh/liner"
	"golang.org/x/term"
)

// IsTerminal reports whether f is connected to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// Terminal is a line editor with history on top of liner. It satisfies
// bf.Prompter.
type Terminal struct {
	state   *liner.State
	history string
}

// OpenTerminal starts line editing on stdin. If history is not empty, it is
// loaded from and saved back to that file.
func OpenTerminal(history string) *Terminal {
	state := liner.NewLiner()
	state.SetCtrlCAborts(true)
	t := &Terminal{state: state, history: history}
	if history != "" {
		if f, err := os.Open(history); err == nil {
			_, _ = state.ReadHistory(f)
			_ = f.Close()
		}
	}
	return t
}

func (t *Terminal) Prompt(prompt string) (string, error) {
	line, err := t.state.Prompt(prompt)
	if err == nil && strings.TrimSpace(line) != "" {
		t.state.AppendHistory(line)
	}
	return line, err
}

// Close saves the history and restores the terminal.
func (t *Terminal) Close() error {
	if t.history != "" {
		if f, err := os.Create(t.history); err == nil {
			_, _ = t.state.WriteHistory(f)
			_ = f.Close()
		}
	}
	return t.state.Close()
}
