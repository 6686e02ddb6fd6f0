package bf

import (
	"errors"
	"fmt"
	"io"

	"github.com/containerd/errdefs"
)

// ErrTapeExhausted is returned when the tape cannot grow any further.
var ErrTapeExhausted = fmt.Errorf("failed to allocate memory for tape: %w", errdefs.ErrResourceExhausted)

// BracketError reports an unmatched loop bracket. It unwraps to
// errdefs.ErrInvalidArgument.
type BracketError struct {
	Pos    int
	Symbol Command
}

func (e *BracketError) Error() string {
	return fmt.Sprintf("unmatched '%s' at position %d", e.Symbol, e.Pos)
}

func (e *BracketError) Unwrap() error {
	return errdefs.ErrInvalidArgument
}

// CommandError reports a byte in a program that is not one of the eight
// commands. Lex never produces one, hand-built programs can.
type CommandError struct {
	Pos     int
	Command Command
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("invalid command %q at position %d", byte(e.Command), e.Pos)
}

func (e *CommandError) Unwrap() error {
	return errdefs.ErrInvalidArgument
}

// IsMalformed reports whether err was caused by an unbalanced program or
// one holding invalid commands.
func IsMalformed(err error) bool {
	var be *BracketError
	var ce *CommandError
	return errors.As(err, &be) || errors.As(err, &ce)
}

// ExitStatus maps the result of a run to a process exit status. Running out
// of input is a normal way for a program to stop.
func ExitStatus(err error) int {
	if err == nil || errors.Is(err, io.EOF) {
		return 0
	}
	return 1
}
