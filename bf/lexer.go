package bf

import "strings"

type Command byte

const (
	Increment Command = '+'
	Decrement Command = '-'
	Left      Command = '<'
	Right     Command = '>'
	Output    Command = '.'
	Input     Command = ','
	LoopStart Command = '['
	LoopEnd   Command = ']'
	Ignore    Command = ' '
)

// A Program is a filtered instruction stream. It only ever holds the eight
// recognized commands.
type Program []Command

func parse(c byte) Command {
	switch c {
	case '+':
		return Increment
	case '-':
		return Decrement
	case '>':
		return Right
	case '<':
		return Left
	case '.':
		return Output
	case ',':
		return Input
	case '[':
		return LoopStart
	case ']':
		return LoopEnd
	default:
		return Ignore
	}
}

func (c Command) String() string {
	if c.Valid() {
		return string(rune(c))
	}
	return " "
}

// Valid reports whether c is one of the eight recognized commands.
func (c Command) Valid() bool {
	return parse(byte(c)) != Ignore
}

// PreLex strips everything that is not a command
func PreLex(input string) string {
	var b strings.Builder
	for i := 0; i < len(input); i++ {
		if parse(input[i]) != Ignore {
			b.WriteByte(input[i])
		}
	}
	return b.String()
}

func Lex(input string) Program {
	return LexBytes([]byte(input))
}

func LexBytes(input []byte) Program {
	commands := Program{}
	for _, c := range input {
		cmd := parse(c)
		if cmd != Ignore {
			commands = append(commands, cmd)
		}
	}
	return commands
}

func (p Program) String() string {
	var b strings.Builder
	b.Grow(len(p))
	for _, c := range p {
		b.WriteByte(byte(c))
	}
	return b.String()
}
