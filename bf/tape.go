package bf

const none = -1

type cell struct {
	value uint8
	left  int
	right int
	// offset from the first cell, used by At
	offset int
}

// Tape is an unbounded line of byte cells. Cells live in an arena and refer
// to their neighbours by index. New cells are only created the first time
// the head moves past the materialized edge.
type Tape struct {
	cells    []cell
	cur      int
	origin   int
	maxCells int
}

// NewTape returns a tape with a single zero cell. If maxCells is positive,
// growing past that many cells fails with ErrTapeExhausted.
func NewTape(maxCells int) *Tape {
	return &Tape{
		cells:    []cell{{left: none, right: none}},
		maxCells: maxCells,
	}
}

func (t *Tape) grow(left, right, offset int) (int, error) {
	if t.maxCells > 0 && len(t.cells) >= t.maxCells {
		return none, ErrTapeExhausted
	}
	t.cells = append(t.cells, cell{left: left, right: right, offset: offset})
	return len(t.cells) - 1, nil
}

func (t *Tape) MoveLeft() error {
	c := &t.cells[t.cur]
	if c.left == none {
		idx, err := t.grow(none, t.cur, c.offset-1)
		if err != nil {
			return err
		}
		// grow may have moved the arena
		t.cells[t.cur].left = idx
	}
	t.cur = t.cells[t.cur].left
	return nil
}

func (t *Tape) MoveRight() error {
	c := &t.cells[t.cur]
	if c.right == none {
		idx, err := t.grow(t.cur, none, c.offset+1)
		if err != nil {
			return err
		}
		t.cells[t.cur].right = idx
	}
	t.cur = t.cells[t.cur].right
	return nil
}

func (t *Tape) Increment() { t.cells[t.cur].value++ }
func (t *Tape) Decrement() { t.cells[t.cur].value-- }

// Add adds n to the current cell modulo 256. Negative n subtracts.
func (t *Tape) Add(n int) {
	t.cells[t.cur].value += uint8(n)
}

func (t *Tape) Read() uint8 { return t.cells[t.cur].value }
func (t *Tape) Write(v uint8) { t.cells[t.cur].value = v }
func (t *Tape) Len() int { return len(t.cells) }
func (t *Tape) Position() int { return t.cells[t.cur].offset }

// At returns the value of the cell at offset from the first cell without
// moving the head. Cells that were never visited read as zero.
func (t *Tape) At(offset int) uint8 {
	i := t.origin
	for i != none && t.cells[i].offset != offset {
		if offset < t.cells[i].offset {
			i = t.cells[i].left
		} else {
			i = t.cells[i].right
		}
	}
	if i == none {
		return 0
	}
	return t.cells[i].value
}

// Reset zeroes the tape and releases every cell but the first.
func (t *Tape) Reset() {
	t.cells = t.cells[:1]
	t.cells[0] = cell{left: none, right: none}
	t.cur = 0
	t.origin = 0
}
