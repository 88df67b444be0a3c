// Package text provides an in-memory collaborative text sequence that
// satisfies core.Text. It stands in for a replicated text type: offsets are in
// Unicode scalar values, edits are grouped into transactions and observers
// receive one delta per committed transaction.
package text

import (
	"fmt"

	"github.com/aretw0/stm/pkg/core"
)

// Sequence is a rune-addressed text buffer. It is not safe for concurrent use.
type Sequence struct {
	runes     []rune
	observers map[int]func(core.TextDelta)
	nextObs   int
	depth     int
	pending   []core.TextOp
}

var _ core.Text = (*Sequence)(nil)

// New returns a sequence holding initial.
func New(initial string) *Sequence {
	return &Sequence{
		runes:     []rune(initial),
		observers: make(map[int]func(core.TextDelta)),
	}
}

// Factory adapts New to core.TextFactory.
func Factory(initial string) core.Text {
	return New(initial)
}

// String returns the flattened text.
func (s *Sequence) String() string {
	return string(s.runes)
}

// Len returns the number of runes.
func (s *Sequence) Len() int {
	return len(s.runes)
}

// Insert adds str at rune offset pos.
func (s *Sequence) Insert(pos int, str string) error {
	if pos < 0 || pos > len(s.runes) {
		return fmt.Errorf("%w: insert at %d (len %d)", core.ErrOutOfRange, pos, len(s.runes))
	}
	if str == "" {
		return nil
	}
	ins := []rune(str)
	out := make([]rune, 0, len(s.runes)+len(ins))
	out = append(out, s.runes[:pos]...)
	out = append(out, ins...)
	out = append(out, s.runes[pos:]...)
	s.runes = out
	s.record(core.TextOp{Pos: pos, Insert: str})
	return nil
}

// Delete removes n runes starting at pos.
func (s *Sequence) Delete(pos, n int) error {
	if pos < 0 || n < 0 || pos+n > len(s.runes) {
		return fmt.Errorf("%w: delete %d at %d (len %d)", core.ErrOutOfRange, n, pos, len(s.runes))
	}
	if n == 0 {
		return nil
	}
	s.runes = append(s.runes[:pos:pos], s.runes[pos+n:]...)
	s.record(core.TextOp{Pos: pos, Delete: n})
	return nil
}

// Transact runs fn and delivers every edit it made as a single delta.
// Edits applied before an error are kept; the delta still fires.
func (s *Sequence) Transact(fn func() error) error {
	s.depth++
	err := fn()
	s.depth--
	if s.depth == 0 {
		s.flush()
	}
	return err
}

// Observe registers fn and returns a func that removes it.
func (s *Sequence) Observe(fn func(core.TextDelta)) func() {
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	return func() { delete(s.observers, id) }
}

func (s *Sequence) record(op core.TextOp) {
	s.pending = append(s.pending, op)
	if s.depth == 0 {
		s.flush()
	}
}

func (s *Sequence) flush() {
	if len(s.pending) == 0 {
		return
	}
	delta := core.TextDelta{Ops: s.pending}
	s.pending = nil
	for i := 0; i < s.nextObs; i++ {
		if fn, ok := s.observers[i]; ok {
			fn(delta)
		}
	}
}
