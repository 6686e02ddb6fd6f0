package bf

// MatchForward returns the index of the LoopEnd matching the LoopStart at pos.
func MatchForward(program Program, pos int) (int, error) {
	if pos < 0 || pos >= len(program) || program[pos] != LoopStart {
		return none, &BracketError{Pos: pos, Symbol: LoopStart}
	}
	depth := 1
	for j := pos + 1; j < len(program); j++ {
		switch program[j] {
		case LoopStart:
			depth++
		case LoopEnd:
			depth--
			if depth == 0 {
				return j, nil
			}
		}
	}
	return none, &BracketError{Pos: pos, Symbol: LoopStart}
}

// MatchBackward returns the index of the LoopStart matching the LoopEnd at pos.
func MatchBackward(program Program, pos int) (int, error) {
	if pos < 0 || pos >= len(program) || program[pos] != LoopEnd {
		return none, &BracketError{Pos: pos, Symbol: LoopEnd}
	}
	depth := 1
	for j := pos - 1; j >= 0; j-- {
		switch program[j] {
		case LoopEnd:
			depth++
		case LoopStart:
			depth--
			if depth == 0 {
				return j, nil
			}
		}
	}
	return none, &BracketError{Pos: pos, Symbol: LoopEnd}
}

// JumpTable maps every bracket to its counterpart. Entries for other
// commands are unused.
type JumpTable []int

// Jumps validates the bracket structure of program and returns its jump
// table. The first unmatched bracket is reported as a *BracketError, a byte
// that is not a command as a *CommandError.
func Jumps(program Program) (JumpTable, error) {
	table := make(JumpTable, len(program))
	var open []int
	for i, c := range program {
		switch c {
		case LoopStart:
			open = append(open, i)
		case LoopEnd:
			if len(open) == 0 {
				return nil, &BracketError{Pos: i, Symbol: LoopEnd}
			}
			start := open[len(open)-1]
			open = open[:len(open)-1]
			table[start] = i
			table[i] = start
		default:
			if !c.Valid() {
				return nil, &CommandError{Pos: i, Command: c}
			}
		}
	}
	if len(open) > 0 {
		// report the outermost unclosed bracket
		return nil, &BracketError{Pos: open[0], Symbol: LoopStart}
	}
	return table, nil
}

// Validate checks that every bracket in program is matched.
func Validate(program Program) error {
	_, err := Jumps(program)
	return err
}
