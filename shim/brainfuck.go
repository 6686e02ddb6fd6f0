package shim

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/containerd/errdefs"
	"github.com/containerd/log"

	"github.com/MarcinKonowalczyk/bfc/bf"
)

// InterpreterArg switches the shim binary into running a single program.
// The task service starts containers this way.
const InterpreterArg = "brainfuck"

// IsInterpreterArg reports whether args ask for interpreter mode and returns
// args without the switch.
func IsInterpreterArg(args []string) (bool, []string) {
	for i, arg := range args {
		if arg == InterpreterArg {
			rest := make([]string, 0, len(args)-1)
			rest = append(rest, args[:i]...)
			return true, append(rest, args[i+1:]...)
		}
	}
	return false, args
}

// RunInterpreter runs the program named by -file on stdin and stdout.
func RunInterpreter(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	flags := flag.NewFlagSet(InterpreterArg, flag.ContinueOnError)
	file := flags.String("file", "", "brainfuck source file")
	maxCells := flags.Int("max-cells", 0, "tape limit, 0 for unbounded")
	if err := flags.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", errdefs.ErrInvalidArgument, err)
	}
	if *file == "" {
		return errdefs.ErrInvalidArgument.WithMessage("-file is required")
	}

	source, err := os.ReadFile(*file)
	if err != nil {
		return fmt.Errorf("reading %s: %w", *file, err)
	}
	log.G(ctx).Debugf("running %s", *file)
	return bf.Run(ctx, source, stdin, stdout, *maxCells)
}

func interpreterArgs(b *Bundle) []string {
	args := []string{InterpreterArg, "-file", b.Script()}
	if b.MaxCells > 0 {
		args = append(args, "-max-cells", fmt.Sprint(b.MaxCells))
	}
	return args
}
