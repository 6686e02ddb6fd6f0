package bf_test

import (
	"errors"
	"testing"

	"github.com/MarcinKonowalczyk/bfc/bf"
	"github.com/MarcinKonowalczyk/bfc/utils"
	"github.com/containerd/errdefs"
)

func TestMatch_RoundTrip(t *testing.T) {
	program := bf.Lex("+[->[+[]-]<[.]]>[]")
	for p, c := range program {
		if c != bf.LoopEnd {
			continue
		}
		open, err := bf.MatchBackward(program, p)
		utils.AssertNoError(t, err)
		utils.AssertEqual(t, program[open], bf.LoopStart)
		back, err := bf.MatchForward(program, open)
		utils.AssertNoError(t, err)
		utils.AssertEqual(t, back, p)
	}
}

func TestMatch_AgreesWithJumps(t *testing.T) {
	program := bf.Lex("[[][[]]]+[-]")
	table, err := bf.Jumps(program)
	utils.AssertNoError(t, err)
	for p, c := range program {
		if c == bf.LoopStart {
			end, err := bf.MatchForward(program, p)
			utils.AssertNoError(t, err)
			utils.AssertEqual(t, table[p], end)
			utils.AssertEqual(t, table[end], p)
		}
	}
}

func TestMatch_OutOfBounds(t *testing.T) {
	program := bf.Lex("[[]")
	_, err := bf.MatchForward(program, 0)
	utils.Assert(t, bf.IsMalformed(err), "expected malformed program")

	program = bf.Lex("[]]")
	_, err = bf.MatchBackward(program, 2)
	utils.Assert(t, bf.IsMalformed(err), "expected malformed program")

	_, err = bf.MatchForward(program, 1)
	utils.AssertError(t, err)
	_, err = bf.MatchForward(program, 10)
	utils.AssertError(t, err)
}

func TestJumps_Unmatched(t *testing.T) {
	tests := []struct {
		source string
		pos    int
		symbol bf.Command
	}{
		{"]", 0, bf.LoopEnd},
		{"+[-]]", 4, bf.LoopEnd},
		{"[", 0, bf.LoopStart},
		{"+[[-]", 1, bf.LoopStart},
	}
	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			_, err := bf.Jumps(bf.Lex(tt.source))
			var be *bf.BracketError
			if !errors.As(err, &be) {
				t.Fatalf("expected a BracketError, got %v", err)
			}
			utils.AssertEqual(t, be.Pos, tt.pos)
			utils.AssertEqual(t, be.Symbol, tt.symbol)
			utils.Assert(t, errdefs.IsInvalidArgument(err), "expected invalid argument")
		})
	}
}

func TestJumps_InvalidCommand(t *testing.T) {
	program := bf.Program{bf.Increment, bf.Ignore, bf.Command('x')}
	_, err := bf.Jumps(program)
	var ce *bf.CommandError
	if !errors.As(err, &ce) {
		t.Fatalf("expected a CommandError, got %v", err)
	}
	utils.AssertEqual(t, ce.Pos, 1)
	utils.AssertEqual(t, ce.Command, bf.Ignore)
	utils.Assert(t, errdefs.IsInvalidArgument(err), "expected invalid argument")
	utils.Assert(t, bf.IsMalformed(err), "expected malformed program")
}

func TestValidate(t *testing.T) {
	utils.AssertNoError(t, bf.Validate(bf.Lex("")))
	utils.AssertNoError(t, bf.Validate(bf.Lex("+[>[-]<]")))
	utils.AssertError(t, bf.Validate(bf.Lex("][")))
}
