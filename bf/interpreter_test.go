package bf_test

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/MarcinKonowalczyk/bfc/bf"
	"github.com/MarcinKonowalczyk/bfc/utils"
)

func newInterpreter(t *testing.T, source string, input string) (*bf.Interpreter, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	var in io.Reader
	if input != "" {
		in = strings.NewReader(input)
	}
	interpreter, err := bf.NewInterpreter(bf.Lex(source), bf.NewConsole(in, &out), nil)
	utils.AssertNoError(t, err)
	return interpreter, &out
}

func TestInterpreter_OutputEmptyInterpreter(t *testing.T) {
	interpreter, err := bf.NewInterpreter(bf.Program{bf.Output}, nil, nil)
	utils.AssertNoError(t, err)
	utils.AssertNoError(t, interpreter.Run())
}

func TestInterpreter_InputEmptyInterpreter(t *testing.T) {
	interpreter, err := bf.NewInterpreter(bf.Program{bf.Input}, nil, nil)
	utils.AssertNoError(t, err)
	utils.AssertErrorIs(t, interpreter.Run(), io.EOF)
}

func TestInterpreter_Increment(t *testing.T) {
	interpreter, _ := newInterpreter(t, "+", "")
	utils.AssertEqual(t, interpreter.At(0), 0)
	utils.AssertNoError(t, interpreter.Run())
	utils.AssertEqual(t, interpreter.At(0), 1)
}

func TestInterpreter_Decrement(t *testing.T) {
	interpreter, _ := newInterpreter(t, "-", "")
	utils.AssertNoError(t, interpreter.Run())
	utils.AssertEqual(t, interpreter.At(0), 255)
}

func TestInterpreter_MoveRight(t *testing.T) {
	interpreter, _ := newInterpreter(t, ">+", "")
	utils.AssertNoError(t, interpreter.Run())
	utils.AssertEqual(t, interpreter.At(0), 0)
	utils.AssertEqual(t, interpreter.At(1), 1)
}

func TestInterpreter_MoveLeft(t *testing.T) {
	interpreter, _ := newInterpreter(t, "<+", "")
	utils.AssertNoError(t, interpreter.Run())
	utils.AssertEqual(t, interpreter.At(0), 0)
	utils.AssertEqual(t, interpreter.At(-1), 1)
}

func TestInterpreter_Loop(t *testing.T) {
	interpreter, _ := newInterpreter(t, "+++[->+<]", "")
	utils.AssertNoError(t, interpreter.Run())
	utils.AssertEqual(t, interpreter.At(0), 0)
	utils.AssertEqual(t, interpreter.At(1), 3)
}

func TestInterpreter_Value64(t *testing.T) {
	interpreter, out := newInterpreter(t, "++++++++[>++++++++<-]>.", "")
	utils.AssertNoError(t, interpreter.Run())
	utils.AssertNoError(t, interpreter.Console().Flush())
	utils.AssertEqual(t, out.String(), "@")
}

func TestInterpreter_LoopEntryTest(t *testing.T) {
	// a loop reached with a zero cell never runs its body
	interpreter, _ := newInterpreter(t, "[>+<[-]]", "")
	utils.AssertNoError(t, interpreter.Run())
	utils.AssertEqual(t, interpreter.At(1), 0)

	interpreter, _ = newInterpreter(t, "+[>+<-]", "")
	utils.AssertNoError(t, interpreter.Run())
	utils.AssertEqual(t, interpreter.At(1), 1)
}

func TestInterpreter_NestedZeroLoop(t *testing.T) {
	// the inner loop is reached with a zero cell inside a running loop and
	// must not execute its body
	interpreter, _ := newInterpreter(t, "+[>[>+<]>>+<<<-]", "")
	utils.AssertNoError(t, interpreter.Run())
	utils.AssertEqual(t, interpreter.At(2), 0)
	utils.AssertEqual(t, interpreter.At(3), 1)
}

func TestInterpreter_Input(t *testing.T) {
	interpreter, out := newInterpreter(t, ",>,>,", "abc\n\nxyz\n")
	utils.AssertNoError(t, interpreter.Run())
	utils.AssertNoError(t, interpreter.Console().Flush())
	utils.AssertEqual(t, interpreter.At(0), 'a')
	utils.AssertEqual(t, interpreter.At(1), '\n')
	utils.AssertEqual(t, interpreter.At(2), 'x')
	utils.AssertEqual(t, out.String(), ":::")
}

func TestInterpreter_InputEOF(t *testing.T) {
	interpreter, _ := newInterpreter(t, ",>,+", "q")
	err := interpreter.Run()
	utils.AssertErrorIs(t, err, io.EOF)
	utils.AssertEqual(t, interpreter.At(0), 'q')
	utils.AssertEqual(t, interpreter.At(1), 0)
}

func TestInterpreter_Malformed(t *testing.T) {
	_, err := bf.NewInterpreter(bf.Lex("+[[-]"), nil, nil)
	utils.Assert(t, bf.IsMalformed(err), "expected malformed program")
}

func TestInterpreter_InvalidCommand(t *testing.T) {
	_, err := bf.NewInterpreter(bf.Program{bf.Ignore}, nil, nil)
	utils.Assert(t, bf.IsMalformed(err), "expected malformed program")

	interpreter, err := bf.NewInterpreter(bf.Lex("+"), nil, nil)
	utils.AssertNoError(t, err)
	utils.AssertError(t, interpreter.Load(bf.Program{bf.Increment, bf.Command('?')}))
	utils.AssertEqual(t, len(interpreter.Program), 1)
}

func TestInterpreter_LoadKeepsTape(t *testing.T) {
	interpreter, _ := newInterpreter(t, "+++>", "")
	utils.AssertNoError(t, interpreter.Run())
	utils.AssertNoError(t, interpreter.Load(bf.Lex("++<+")))
	utils.AssertNoError(t, interpreter.Run())
	utils.AssertEqual(t, interpreter.At(0), 4)
	utils.AssertEqual(t, interpreter.At(1), 2)

	// a bad program does not replace the loaded one
	utils.AssertError(t, interpreter.Load(bf.Lex("]")))
	utils.AssertEqual(t, interpreter.Program.String(), "++<+")
}

func TestInterpreter_Reset(t *testing.T) {
	interpreter, _ := newInterpreter(t, "+>+", "")
	utils.AssertNoError(t, interpreter.Run())
	interpreter.Reset()
	utils.AssertEqual(t, interpreter.At(0), 0)
	utils.AssertEqual(t, interpreter.Tape().Len(), 1)
}

func TestInterpreter_TapeLimit(t *testing.T) {
	interpreter, err := bf.NewInterpreter(bf.Lex("+[>+]"), nil, bf.NewTape(16))
	utils.AssertNoError(t, err)
	utils.AssertErrorIs(t, interpreter.Run(), bf.ErrTapeExhausted)
}

func TestInterpreter_Cancel(t *testing.T) {
	interpreter, _ := newInterpreter(t, "+[]", "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	utils.AssertErrorIs(t, interpreter.RunContext(ctx), context.Canceled)
}

func TestRun(t *testing.T) {
	var out bytes.Buffer
	source := []byte("hello ++++++++[>++++++++<-]>+. world")
	err := bf.Run(context.Background(), source, nil, &out, 0)
	utils.AssertNoError(t, err)
	// final framing newline
	utils.AssertEqual(t, out.String(), "A\n")
}

func TestRun_Empty(t *testing.T) {
	var out bytes.Buffer
	utils.AssertNoError(t, bf.Run(context.Background(), nil, nil, &out, 0))
	utils.AssertEqual(t, out.String(), "")
}

func TestRun_EndOfInputIsSuccess(t *testing.T) {
	var out bytes.Buffer
	err := bf.Run(context.Background(), []byte(",[.,]"), strings.NewReader("hi\n"), &out, 0)
	utils.AssertNoError(t, err)
	utils.AssertEqual(t, out.String(), ":h\n:\n")
}

func TestExitStatus(t *testing.T) {
	utils.AssertEqual(t, bf.ExitStatus(nil), 0)
	utils.AssertEqual(t, bf.ExitStatus(io.EOF), 0)
	utils.AssertEqual(t, bf.ExitStatus(bf.ErrTapeExhausted), 1)
	utils.AssertEqual(t, bf.ExitStatus(bf.Validate(bf.Lex("["))), 1)
}
