package text

import (
	"errors"
	"testing"

	"github.com/aretw0/stm/pkg/core"
)

func TestSequence_InsertDeleteRunes(t *testing.T) {
	s := New("héllo")
	if s.Len() != 5 {
		t.Fatalf("expected 5 runes, got %d", s.Len())
	}
	if err := s.Insert(5, " wörld"); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := s.Delete(1, 1); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := s.Insert(1, "e"); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if got := s.String(); got != "hello wörld" {
		t.Errorf("got %q", got)
	}
}

func TestSequence_Bounds(t *testing.T) {
	s := New("abc")
	if err := s.Insert(4, "x"); !errors.Is(err, core.ErrOutOfRange) {
		t.Errorf("expected ErrOutOfRange, got %v", err)
	}
	if err := s.Delete(2, 2); !errors.Is(err, core.ErrOutOfRange) {
		t.Errorf("expected ErrOutOfRange, got %v", err)
	}
	if err := s.Delete(-1, 1); !errors.Is(err, core.ErrOutOfRange) {
		t.Errorf("expected ErrOutOfRange, got %v", err)
	}
}

func TestSequence_TransactDeliversOneDelta(t *testing.T) {
	s := New("abc")
	var deltas []core.TextDelta
	cancel := s.Observe(func(d core.TextDelta) { deltas = append(deltas, d) })

	_ = s.Transact(func() error {
		if err := s.Delete(0, 3); err != nil {
			return err
		}
		return s.Insert(0, "xyz")
	})
	if len(deltas) != 1 {
		t.Fatalf("expected one delta, got %d", len(deltas))
	}
	if len(deltas[0].Ops) != 2 {
		t.Errorf("expected two ops, got %+v", deltas[0].Ops)
	}

	_ = s.Insert(0, "!")
	if len(deltas) != 2 {
		t.Fatalf("untransacted edits deliver immediately, got %d deltas", len(deltas))
	}

	cancel()
	_ = s.Insert(0, "?")
	if len(deltas) != 2 {
		t.Error("cancelled observer must not be called")
	}
	if s.String() != "?!xyz" {
		t.Errorf("got %q", s.String())
	}
}
