package bf

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/containerd/log"
)

// how many instructions run between two checks of the context
const pollInterval = 1 << 12

type Interpreter struct {
	Program    Program
	jumps      JumpTable
	programPtr int
	tape       *Tape
	console    *Console
}

// NewInterpreter validates program and prepares it to run against tape. A
// nil tape starts a fresh unbounded one.
func NewInterpreter(program Program, console *Console, tape *Tape) (*Interpreter, error) {
	if tape == nil {
		tape = NewTape(0)
	}
	if console == nil {
		console = NewConsole(nil, nil)
	}
	i := &Interpreter{
		tape:    tape,
		console: console,
	}
	if err := i.Load(program); err != nil {
		return nil, err
	}
	return i, nil
}

// Load swaps in a new program and rewinds the program counter. The tape and
// the head position are kept.
func (i *Interpreter) Load(program Program) error {
	jumps, err := Jumps(program)
	if err != nil {
		return err
	}
	i.Program = program
	i.jumps = jumps
	i.programPtr = 0
	return nil
}

// Reset rewinds the program and clears the tape.
func (i *Interpreter) Reset() {
	i.programPtr = 0
	i.tape.Reset()
}

func (i *Interpreter) Tape() *Tape {
	return i.tape
}

func (i *Interpreter) Console() *Console {
	return i.console
}

// At reads the cell at offset from the first cell
func (i *Interpreter) At(offset int) uint8 {
	return i.tape.At(offset)
}

// RunContext executes the program until the program counter runs off the
// end, input is exhausted (io.EOF) or an error occurs.
func (i *Interpreter) RunContext(ctx context.Context) error {
	steps := 0
	for i.programPtr < len(i.Program) {
		steps++
		if steps%pollInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		switch i.Program[i.programPtr] {
		case Increment:
			i.tape.Increment()
		case Decrement:
			i.tape.Decrement()
		case Right:
			if err := i.tape.MoveRight(); err != nil {
				return err
			}
		case Left:
			if err := i.tape.MoveLeft(); err != nil {
				return err
			}
		case Output:
			if err := i.console.WriteByte(i.tape.Read()); err != nil {
				return fmt.Errorf("writing output: %w", err)
			}
		case Input:
			b, err := i.console.ReadByte()
			if err != nil {
				if errors.Is(err, io.EOF) {
					log.G(ctx).Debugf("end of input at instruction %d", i.programPtr)
					return err
				}
				return fmt.Errorf("reading input: %w", err)
			}
			i.tape.Write(b)
		case LoopStart:
			if i.tape.Read() == 0 {
				i.programPtr = i.jumps[i.programPtr]
			}
		case LoopEnd:
			if i.tape.Read() != 0 {
				i.programPtr = i.jumps[i.programPtr]
			}
		default:
			return &CommandError{Pos: i.programPtr, Command: i.Program[i.programPtr]}
		}
		i.programPtr++
	}
	return nil
}

func (i *Interpreter) Run() error {
	return i.RunContext(context.Background())
}
