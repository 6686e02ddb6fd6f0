package emit

import (
	"bytes"
	"fmt"

	"github.com/MarcinKonowalczyk/bfc/bf"
	"github.com/dave/jennifer/jen"
)

// goBackend renders a standalone package main. The tape is an arena of
// cells linked by index, the same layout the interpreter uses.
type goBackend struct{}

func (goBackend) Ext() string { return ".go" }

func current() *jen.Statement {
	return jen.Id("tape").Index(jen.Id("cur")).Dot("value")
}

func repeat(body ...jen.Code) *jen.Statement {
	return jen.For(
		jen.Id("i").Op(":=").Lit(0),
		jen.Id("i").Op("<").Id("n"),
		jen.Id("i").Op("++"),
	).Block(body...)
}

// move generates left or right. dir names the link followed, back the link
// the fresh cell gets pointing at the current one.
func move(f *jen.File, name, dir, back string) {
	f.Func().Id(name).Params(jen.Id("n").Int()).Block(
		repeat(
			jen.If(jen.Id("tape").Index(jen.Id("cur")).Dot(dir).Op("<").Lit(0)).Block(
				jen.Id("tape").Op("=").Append(jen.Id("tape"), jen.Id("cell").Values(jen.Dict{
					jen.Id(dir):  jen.Lit(-1),
					jen.Id(back): jen.Id("cur"),
				})),
				jen.Id("tape").Index(jen.Id("cur")).Dot(dir).Op("=").Len(jen.Id("tape")).Op("-").Lit(1),
			),
			jen.Id("cur").Op("=").Id("tape").Index(jen.Id("cur")).Dot(dir),
		),
	)
}

func goRuntime(f *jen.File) {
	f.Type().Id("cell").Struct(
		jen.Id("value").Byte(),
		jen.List(jen.Id("left"), jen.Id("right")).Int(),
	)

	f.Var().Defs(
		jen.Id("tape").Op("=").Index().Id("cell").Values(jen.Values(jen.Dict{
			jen.Id("left"):  jen.Lit(-1),
			jen.Id("right"): jen.Lit(-1),
		})),
		jen.Id("cur").Int(),
		jen.Id("lastOut").Byte().Op("=").LitRune('\n'),
		jen.Id("stdout").Op("=").Qual("bufio", "NewWriter").Call(jen.Qual("os", "Stdout")),
		jen.Id("stdin").Op("=").Qual("bufio", "NewReader").Call(jen.Qual("os", "Stdin")),
	)

	move(f, "left", "left", "right")
	move(f, "right", "right", "left")

	f.Func().Id("out").Params(jen.Id("n").Int()).Block(
		repeat(
			jen.Id("lastOut").Op("=").Add(current()),
			jen.Id("stdout").Dot("WriteByte").Call(jen.Id("lastOut")),
		),
	)

	f.Func().Id("in").Params(jen.Id("n").Int()).Block(
		repeat(
			jen.If(jen.Id("lastOut").Op("!=").LitRune('\n')).Block(
				jen.Id("stdout").Dot("WriteByte").Call(jen.LitRune('\n')),
			),
			jen.Id("stdout").Dot("WriteByte").Call(jen.LitRune(':')),
			jen.Id("stdout").Dot("Flush").Call(),
			jen.List(jen.Id("c"), jen.Err()).Op(":=").Id("stdin").Dot("ReadByte").Call(),
			jen.If(jen.Err().Op("!=").Nil()).Block(
				jen.Id("finish").Call(),
				jen.Qual("os", "Exit").Call(jen.Lit(0)),
			),
			current().Op("=").Id("c"),
			jen.For(jen.Id("c").Op("!=").LitRune('\n')).Block(
				jen.If(
					jen.List(jen.Id("c"), jen.Err()).Op("=").Id("stdin").Dot("ReadByte").Call(),
					jen.Err().Op("!=").Nil(),
				).Block(jen.Break()),
			),
		),
	)

	f.Func().Id("finish").Params().Block(
		jen.If(jen.Id("lastOut").Op("!=").LitRune('\n')).Block(
			jen.Id("stdout").Dot("WriteByte").Call(jen.LitRune('\n')),
		),
		jen.Id("stdout").Dot("Flush").Call(),
	)
}

func (goBackend) Emit(ops []bf.Op) ([]byte, error) {
	f := jen.NewFile("main")
	f.HeaderComment("Code generated by bfc. DO NOT EDIT.")
	goRuntime(f)

	// one block per open loop, the outermost is the body of main
	blocks := [][]jen.Code{nil}
	push := func(c jen.Code) {
		blocks[len(blocks)-1] = append(blocks[len(blocks)-1], c)
	}
	for _, op := range ops {
		switch op.Cmd {
		case bf.Increment:
			if n := wrap(op.Count); n != 0 {
				push(current().Op("+=").Lit(n))
			}
		case bf.Decrement:
			if n := wrap(op.Count); n != 0 {
				push(current().Op("-=").Lit(n))
			}
		case bf.Left:
			push(jen.Id("left").Call(jen.Lit(op.Count)))
		case bf.Right:
			push(jen.Id("right").Call(jen.Lit(op.Count)))
		case bf.Output:
			push(jen.Id("out").Call(jen.Lit(op.Count)))
		case bf.Input:
			push(jen.Id("in").Call(jen.Lit(op.Count)))
		case bf.LoopStart:
			blocks = append(blocks, nil)
		case bf.LoopEnd:
			if len(blocks) == 1 {
				return nil, fmt.Errorf("unmatched %q", op.Cmd)
			}
			body := blocks[len(blocks)-1]
			blocks = blocks[:len(blocks)-1]
			push(jen.For(current().Op("!=").Lit(0)).Block(body...))
		default:
			return nil, fmt.Errorf("unexpected command %q", op.Cmd)
		}
	}
	if len(blocks) != 1 {
		return nil, fmt.Errorf("unbalanced loops in %d ops", len(ops))
	}
	push(jen.Id("finish").Call())
	f.Func().Id("main").Params().Block(blocks[0]...)

	var buf bytes.Buffer
	if err := f.Render(&buf); err != nil {
		return nil, fmt.Errorf("rendering go source: %w", err)
	}
	return buf.Bytes(), nil
}
