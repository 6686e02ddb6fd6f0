package bf

import (
	"bufio"
	"io"
	"strings"
)

// InputIndicator is written before every read of the input instruction.
const InputIndicator = ":"

// Prompter shows a prompt and returns one line of input without its
// trailing newline. *liner.State satisfies it.
type Prompter interface {
	Prompt(prompt string) (string, error)
}

type lineReader struct {
	out *bufio.Writer
	r   *bufio.Reader
}

func (l *lineReader) Prompt(prompt string) (string, error) {
	if _, err := l.out.WriteString(prompt); err != nil {
		return "", err
	}
	if err := l.out.Flush(); err != nil {
		return "", err
	}
	line, err := l.r.ReadString('\n')
	if err == io.EOF && line != "" {
		// last line without a newline
		err = nil
	}
	return strings.TrimSuffix(line, "\n"), err
}

// Console owns the output sink, the input source and the last-output
// marker. Before anything interactive is printed, a newline is inserted if
// the last byte written by the program was not one.
type Console struct {
	out  *bufio.Writer
	in   Prompter
	last byte
}

// NewConsole reads lines from in and writes to out. A nil in behaves as an
// input that is already at end of file.
func NewConsole(in io.Reader, out io.Writer) *Console {
	c := newConsole(out)
	if in != nil {
		c.in = &lineReader{out: c.out, r: bufio.NewReader(in)}
	}
	return c
}

// NewPromptConsole reads lines through p, for instance a line editor.
func NewPromptConsole(p Prompter, out io.Writer) *Console {
	c := newConsole(out)
	c.in = p
	return c
}

func newConsole(out io.Writer) *Console {
	if out == nil {
		out = io.Discard
	}
	return &Console{
		out:  bufio.NewWriter(out),
		last: '\n',
	}
}

// Last returns the last byte the program wrote.
func (c *Console) Last() byte {
	return c.last
}

// WriteByte implements the output instruction.
func (c *Console) WriteByte(b byte) error {
	c.last = b
	return c.out.WriteByte(b)
}

// EnsureNewline writes a newline unless the last output already was one.
// It does not move the marker.
func (c *Console) EnsureNewline() error {
	if c.last == '\n' {
		return nil
	}
	return c.out.WriteByte('\n')
}

// ReadByte implements the input instruction: frame, show the indicator, and
// keep the first byte of the line that was typed. An empty line reads as a
// newline. io.EOF is returned once the input is exhausted.
func (c *Console) ReadByte() (byte, error) {
	if c.in == nil {
		return 0, io.EOF
	}
	line, err := c.prompt(InputIndicator)
	if err != nil {
		return 0, err
	}
	if line == "" {
		return '\n', nil
	}
	return line[0], nil
}

// ReadCommand shows a shell prompt and returns the typed line. The user's
// Enter leaves the cursor at the start of a line, so the marker is reset.
func (c *Console) ReadCommand(prompt string) (string, error) {
	if c.in == nil {
		return "", io.EOF
	}
	line, err := c.prompt(prompt)
	c.last = '\n'
	return line, err
}

func (c *Console) prompt(prompt string) (string, error) {
	if err := c.EnsureNewline(); err != nil {
		return "", err
	}
	if err := c.out.Flush(); err != nil {
		return "", err
	}
	return c.in.Prompt(prompt)
}

// Message writes an interactive message such as help or an error report.
func (c *Console) Message(text string) error {
	if err := c.EnsureNewline(); err != nil {
		return err
	}
	if text == "" {
		return nil
	}
	if _, err := c.out.WriteString(text); err != nil {
		return err
	}
	c.last = text[len(text)-1]
	return nil
}

func (c *Console) Flush() error {
	return c.out.Flush()
}

// Close writes the final framing newline and flushes the output.
func (c *Console) Close() error {
	if err := c.EnsureNewline(); err != nil {
		return err
	}
	c.last = '\n'
	return c.out.Flush()
}
