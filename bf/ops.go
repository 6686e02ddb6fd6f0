package bf

// Op is a command repeated Count times in a row. Loop brackets always have a
// count of one.
type Op struct {
	Cmd   Command
	Count int
}

func collapsible(c Command) bool {
	return c != LoopStart && c != LoopEnd
}

// Collapse merges runs of identical commands into counted ops. Brackets are
// never merged since each one opens or closes its own loop.
func Collapse(program Program) []Op {
	ops := make([]Op, 0, len(program))
	for _, c := range program {
		if n := len(ops); n > 0 && ops[n-1].Cmd == c && collapsible(c) {
			ops[n-1].Count++
			continue
		}
		ops = append(ops, Op{Cmd: c, Count: 1})
	}
	return ops
}

// Singles wraps every command in its own op, without merging.
func Singles(program Program) []Op {
	ops := make([]Op, len(program))
	for i, c := range program {
		ops[i] = Op{Cmd: c, Count: 1}
	}
	return ops
}

// Expand turns ops back into a flat program.
func Expand(ops []Op) Program {
	program := Program{}
	for _, op := range ops {
		for j := 0; j < op.Count; j++ {
			program = append(program, op.Cmd)
		}
	}
	return program
}
