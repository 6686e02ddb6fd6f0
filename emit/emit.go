// Package emit translates brainfuck programs into freestanding native
// source code and drives the external toolchain that builds it.
//
// Every target reproduces the interpreter exactly: unsigned 8-bit
// wraparound cells on a tape that grows in both directions, while loops
// that test before every iteration, and the same framing of the input
// indicator and of the final newline.
package emit

import (
	"fmt"

	"github.com/MarcinKonowalczyk/bfc/bf"
	"github.com/containerd/errdefs"
)

type Target string

const (
	TargetC  Target = "c"
	TargetGo Target = "go"
)

type Options struct {
	Target Target
	// Collapse merges runs of identical commands into counted operations
	Collapse bool
}

func DefaultOptions() Options {
	return Options{Target: TargetC, Collapse: true}
}

type backend interface {
	// Ext is the file extension of the generated source
	Ext() string
	Emit(ops []bf.Op) ([]byte, error)
}

var backends = map[Target]backend{
	TargetC:  cBackend{},
	TargetGo: goBackend{},
}

func lookup(target Target) (backend, error) {
	if target == "" {
		target = TargetC
	}
	b, ok := backends[target]
	if !ok {
		return nil, fmt.Errorf("unknown target %q: %w", target, errdefs.ErrInvalidArgument)
	}
	return b, nil
}

// Targets lists the supported targets
func Targets() []Target {
	return []Target{TargetC, TargetGo}
}

// Translate renders program as source code for the selected target. The
// bracket structure is validated first.
func Translate(program bf.Program, opts Options) ([]byte, error) {
	b, err := lookup(opts.Target)
	if err != nil {
		return nil, err
	}
	if err := bf.Validate(program); err != nil {
		return nil, err
	}
	ops := bf.Singles(program)
	if opts.Collapse {
		ops = bf.Collapse(program)
	}
	return b.Emit(ops)
}

// wrap reduces a repeat count of + or - to a single byte delta
func wrap(n int) int {
	return n % 256
}
