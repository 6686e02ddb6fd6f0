// Package shell implements the interactive brainfuck prompt. Every line is
// run as a complete program against a tape that survives between lines.
package shell

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/containerd/log"
	"github.com/peterh/liner"

	"github.com/MarcinKonowalczyk/bfc/bf"
)

const DefaultPrompt = "$"

const Help = `Commands:
  +    - increment the current cell
  -    - decrement the current cell
  <    - move the pointer left
  >    - move the pointer right
  [    - start a loop while current cell != 0
  ]    - end a loop
  .    - output the current cell
  ,    - input a value into the current cell
  exit - exit the shell
  help - display this help message
`

type Shell struct {
	console     *bf.Console
	interpreter *bf.Interpreter
	prompt      string
}

// New returns a shell reading commands through console. A nil tape starts
// a fresh unbounded one.
func New(console *bf.Console, tape *bf.Tape, prompt string) *Shell {
	if prompt == "" {
		prompt = DefaultPrompt
	}
	// an empty program is always valid
	interpreter, _ := bf.NewInterpreter(bf.Program{}, console, tape)
	return &Shell{
		console:     console,
		interpreter: interpreter,
		prompt:      prompt,
	}
}

func (s *Shell) Interpreter() *bf.Interpreter {
	return s.interpreter
}

func stopped(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted)
}

// Run reads and executes lines until exit, end of input or a fatal error.
// Malformed lines are reported and skipped.
func (s *Shell) Run(ctx context.Context) error {
	for {
		line, err := s.console.ReadCommand(s.prompt)
		if err != nil {
			if stopped(err) {
				return nil
			}
			return err
		}

		switch strings.TrimSpace(line) {
		case "":
			continue
		case "exit":
			return nil
		case "help":
			if err := s.console.Message(Help); err != nil {
				return err
			}
			continue
		}

		if err := s.Eval(ctx, line); err != nil {
			if stopped(err) {
				return nil
			}
			if !bf.IsMalformed(err) {
				return err
			}
			log.G(ctx).WithError(err).Debug("skipping malformed line")
			if err := s.console.Message("Error: " + err.Error() + "\n"); err != nil {
				return err
			}
		}
	}
}

// Eval runs one line as a program. The program counter starts at zero,
// the tape and head position carry over from earlier lines.
func (s *Shell) Eval(ctx context.Context, line string) error {
	if err := s.interpreter.Load(bf.Lex(line)); err != nil {
		return err
	}
	return s.interpreter.RunContext(ctx)
}
