// Package docedit decides how whole-value writes reach a document's text
// handle. Small edits become minimal insert/delete operations at the diverging
// regions; rewrites beyond the threshold become one clear-and-reinsert.
package docedit

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/aretw0/stm/pkg/core"
)

// DefaultThreshold is the largest share of the longer string an edit may
// touch and still be applied as a diff.
const DefaultThreshold = 0.8

// Mode reports which strategy a write used.
type Mode int

const (
	ModeNoop Mode = iota
	ModeDiff
	ModeReplace
)

func (m Mode) String() string {
	switch m {
	case ModeDiff:
		return "diff"
	case ModeReplace:
		return "replace"
	default:
		return "noop"
	}
}

// Result summarizes an applied write.
type Result struct {
	Mode    Mode
	Ops     int
	Touched int
	Longer  int
}

// Editor applies the diff-vs-replace policy.
type Editor struct {
	dmp       *diffmatchpatch.DiffMatchPatch
	threshold float64
}

// New creates an editor. A threshold outside (0, 1] falls back to DefaultThreshold.
func New(threshold float64) *Editor {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = 0
	return &Editor{dmp: dmp, threshold: threshold}
}

// Threshold returns the configured ratio.
func (e *Editor) Threshold() float64 {
	return e.threshold
}

// Plan computes the diff between current and next and returns the touched
// rune count (the larger of deleted and inserted runes) and the longer length.
func (e *Editor) Plan(current, next string) ([]diffmatchpatch.Diff, int, int) {
	diffs := e.dmp.DiffMain(current, next, false)
	diffs = e.dmp.DiffCleanupSemantic(diffs)

	var inserted, deleted int
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			inserted += utf8.RuneCountInString(d.Text)
		case diffmatchpatch.DiffDelete:
			deleted += utf8.RuneCountInString(d.Text)
		}
	}
	longer := max(utf8.RuneCountInString(current), utf8.RuneCountInString(next))
	return diffs, max(inserted, deleted), longer
}

// SetText makes t read next, as one transaction.
func (e *Editor) SetText(t core.Text, next string) (Result, error) {
	current := t.String()
	if current == next {
		return Result{Mode: ModeNoop}, nil
	}

	diffs, touched, longer := e.Plan(current, next)
	res := Result{Touched: touched, Longer: longer}

	if float64(touched) > e.threshold*float64(longer) {
		res.Mode = ModeReplace
		err := t.Transact(func() error {
			if n := t.Len(); n > 0 {
				if err := t.Delete(0, n); err != nil {
					return err
				}
				res.Ops++
			}
			if next != "" {
				res.Ops++
				return t.Insert(0, next)
			}
			return nil
		})
		return res, err
	}

	res.Mode = ModeDiff
	err := t.Transact(func() error {
		pos := 0
		for _, d := range diffs {
			n := utf8.RuneCountInString(d.Text)
			switch d.Type {
			case diffmatchpatch.DiffEqual:
				pos += n
			case diffmatchpatch.DiffDelete:
				if err := t.Delete(pos, n); err != nil {
					return err
				}
				res.Ops++
			case diffmatchpatch.DiffInsert:
				if err := t.Insert(pos, d.Text); err != nil {
					return err
				}
				res.Ops++
				pos += n
			}
		}
		return nil
	})
	return res, err
}

// Insert adds s at rune offset pos.
func (e *Editor) Insert(t core.Text, pos int, s string) error {
	if pos < 0 || pos > t.Len() {
		return fmt.Errorf("%w: %d not in [0, %d]", core.ErrOutOfRange, pos, t.Len())
	}
	return t.Transact(func() error { return t.Insert(pos, s) })
}

// Delete removes n runes at rune offset pos.
func (e *Editor) Delete(t core.Text, pos, n int) error {
	if pos < 0 || n < 0 || pos+n > t.Len() {
		return fmt.Errorf("%w: delete %d at %d (len %d)", core.ErrOutOfRange, n, pos, t.Len())
	}
	return t.Transact(func() error { return t.Delete(pos, n) })
}

// Append adds s at the end of the text.
func (e *Editor) Append(t core.Text, s string) error {
	return t.Transact(func() error { return t.Insert(t.Len(), s) })
}

// Replace swaps the first occurrence of find for replacement.
func (e *Editor) Replace(t core.Text, find, replacement string) error {
	if find == "" {
		return fmt.Errorf("%w: empty search text", core.ErrInvalidValue)
	}
	current := t.String()
	idx := strings.Index(current, find)
	if idx < 0 {
		return fmt.Errorf("%w: %q", core.ErrTextNotFound, find)
	}
	pos := utf8.RuneCountInString(current[:idx])
	n := utf8.RuneCountInString(find)
	return t.Transact(func() error {
		if err := t.Delete(pos, n); err != nil {
			return err
		}
		return t.Insert(pos, replacement)
	})
}
