package emit_test

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MarcinKonowalczyk/bfc/bf"
	"github.com/MarcinKonowalczyk/bfc/emit"
	"github.com/MarcinKonowalczyk/bfc/utils"
	"github.com/containerd/errdefs"
)

var conformance = []struct {
	name   string
	source string
	input  string
}{
	{"empty", "", ""},
	{"value 64", "++++++++[>++++++++<-]>.", ""},
	{"hello", "++++++++[>++++[>++>+++>+++>+<<<<-]>+>+>->>+[<]<-]>>.>---.+++++++..+++.>>.<-.<.+++.------.--------.>>+.>++.", ""},
	{"nested zero loop", "+[>[>+<-]>>+<<<-]>>>++++++++++++++++++++++++++++++++++++++++++++++++.", ""},
	{"wraparound", "-.+.", ""},
	{"left of origin", "<<<+++++++++++++++++++++++++++++++++[>+++<-]>.", ""},
	{"echo", ",.,.,.", "ab\n\nxyz\n"},
	{"eof", ",[.,]", "hi\nthere\n"},
}

func interpret(t *testing.T, source, input string) string {
	t.Helper()
	var out bytes.Buffer
	err := bf.Run(context.Background(), []byte(source), strings.NewReader(input), &out, 0)
	utils.AssertNoError(t, err)
	return out.String()
}

func TestBuild_Conformance(t *testing.T) {
	if testing.Short() {
		t.Skip("builds native executables")
	}
	tools := map[emit.Target]string{emit.TargetC: "cc", emit.TargetGo: "go"}
	for _, target := range emit.Targets() {
		tool, err := exec.LookPath(tools[target])
		if err != nil {
			t.Logf("skipping %s target: %v", target, err)
			continue
		}
		for _, tt := range conformance {
			t.Run(string(target)+"/"+tt.name, func(t *testing.T) {
				exe := filepath.Join(t.TempDir(), "prog")
				opts := emit.DefaultBuildOptions()
				opts.Target = target
				opts.Output = exe
				opts.CC = tool
				opts.GoTool = tool
				utils.AssertNoError(t, emit.Build(context.Background(), bf.Lex(tt.source), opts))

				cmd := exec.Command(exe)
				cmd.Stdin = strings.NewReader(tt.input)
				got, err := cmd.Output()
				utils.AssertNoError(t, err)
				utils.AssertEqual(t, string(got), interpret(t, tt.source, tt.input))
			})
		}
	}
}

func TestBuild_KeepSource(t *testing.T) {
	if testing.Short() {
		t.Skip("builds native executables")
	}
	cc, err := exec.LookPath("cc")
	if err != nil {
		t.Skip("no c compiler")
	}
	dir := t.TempDir()
	opts := emit.DefaultBuildOptions()
	opts.CC = cc
	opts.Output = filepath.Join(dir, "hello")
	opts.KeepSource = true
	utils.AssertNoError(t, emit.Build(context.Background(), bf.Lex("+."), opts))
	source, err := os.ReadFile(filepath.Join(dir, "hello.c"))
	utils.AssertNoError(t, err)
	utils.AssertContains(t, string(source), "out(1);")
}

func TestBuild_KeepSourceCollision(t *testing.T) {
	dir := t.TempDir()
	opts := emit.DefaultBuildOptions()
	opts.Output = filepath.Join(dir, "prog.c")
	opts.KeepSource = true
	err := emit.Build(context.Background(), bf.Lex("+."), opts)
	utils.Assert(t, errdefs.IsInvalidArgument(err), "expected invalid argument")
	_, err = os.Stat(opts.Output)
	utils.Assert(t, os.IsNotExist(err), "nothing should be written")
}

func TestBuild_NoOutput(t *testing.T) {
	err := emit.Build(context.Background(), bf.Lex("+"), emit.DefaultBuildOptions())
	utils.Assert(t, errdefs.IsInvalidArgument(err), "expected invalid argument")
}

func TestBuild_MissingCompiler(t *testing.T) {
	opts := emit.DefaultBuildOptions()
	opts.Output = filepath.Join(t.TempDir(), "prog")
	opts.CC = filepath.Join(t.TempDir(), "no-such-cc")
	err := emit.Build(context.Background(), bf.Lex("+"), opts)
	utils.AssertErrorIs(t, err, emit.ErrBuildFailed)
	utils.Assert(t, errdefs.IsUnavailable(err), "expected unavailable")
}

func TestBuild_Malformed(t *testing.T) {
	opts := emit.DefaultBuildOptions()
	opts.Output = filepath.Join(t.TempDir(), "prog")
	err := emit.Build(context.Background(), bf.Lex("]"), opts)
	utils.Assert(t, bf.IsMalformed(err), "expected malformed program")
}
