package bf

import (
	"context"
	"errors"
	"io"
)

// Run lexes source and executes it with a fresh tape. Input running out is
// treated as a normal end of the program. The console is closed, emitting
// the final framing newline, before Run returns.
func Run(ctx context.Context, source []byte, input io.Reader, output io.Writer, maxCells int) error {
	console := NewConsole(input, output)
	err := RunConsole(ctx, source, console, maxCells)
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// RunConsole is Run on an existing console. Errors, including io.EOF, are
// returned as they are so the caller can report them through the console.
func RunConsole(ctx context.Context, source []byte, console *Console, maxCells int) error {
	interpreter, err := NewInterpreter(LexBytes(source), console, NewTape(maxCells))
	if err != nil {
		return err
	}
	runErr := interpreter.RunContext(ctx)
	if err := console.Close(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}
