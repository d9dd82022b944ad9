package progress

import (
	"bufio"
	"fmt"
	"io"
	"slices"
	"strings"
)

// Record is the progress of one stage. Records are never removed from a
// Tracker; a finished stage is only unlinked from its parent's children and
// loses its own child listing, so its subtree stops rendering.
type Record struct {
	Parent    StageID
	Total     int
	Completed int
	Name      string
}

// Tracker assembles events into a stage tree. It is not safe for concurrent
// use: exactly one goroutine applies events and renders.
type Tracker struct {
	records  map[StageID]*Record
	children map[StageID][]StageID
}

// NewTracker returns an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{
		records:  make(map[StageID]*Record),
		children: make(map[StageID][]StageID),
	}
}

// Apply folds one event into the tree. It reports false when the event named
// an unknown stage and was ignored.
func (t *Tracker) Apply(target StageID, ev Event) bool {
	switch ev.Kind {
	case KindBegin:
		t.records[ev.ID] = &Record{
			Parent: target,
			Total:  ev.Total,
			Name:   ev.Name,
		}
		t.children[target] = append(t.children[target], ev.ID)
		return true
	case KindStep:
		rec, ok := t.records[target]
		if !ok {
			return false
		}
		rec.Completed++
		return true
	case KindEnd:
		rec, ok := t.records[target]
		if !ok {
			return false
		}
		if parent, ok := t.records[rec.Parent]; ok {
			parent.Completed++
		}
		delete(t.children, target)
		if siblings, ok := t.children[rec.Parent]; ok {
			t.children[rec.Parent] = slices.DeleteFunc(siblings, func(id StageID) bool {
				return id == target
			})
		}
		return true
	default:
		return false
	}
}

// Record returns a copy of the record for id.
func (t *Tracker) Record(id StageID) (Record, bool) {
	rec, ok := t.records[id]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// Children returns the open children of id in display order.
func (t *Tracker) Children(id StageID) []StageID {
	return append([]StageID(nil), t.children[id]...)
}

// Len reports how many stages have ever been begun.
func (t *Tracker) Len() int {
	return len(t.records)
}

// WriteTo writes the current tree, one line per visible stage, starting at
// FirstStage. Each line is indented two spaces per depth level and reads
// "name  completed/total".
func (t *Tracker) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: bufio.NewWriter(w)}
	t.writeStage(cw, FirstStage, 0)
	if cw.err == nil {
		cw.err = cw.w.Flush()
	}
	return cw.n, cw.err
}

// String returns the rendered tree.
func (t *Tracker) String() string {
	var b strings.Builder
	_, _ = t.WriteTo(&b)
	return b.String()
}

func (t *Tracker) writeStage(w *countingWriter, id StageID, depth int) {
	rec, ok := t.records[id]
	if !ok || w.err != nil {
		return
	}
	w.printf("%s%s  %d/%d\n", strings.Repeat("  ", depth), rec.Name, rec.Completed, rec.Total)
	for _, child := range t.children[id] {
		t.writeStage(w, child, depth+1)
	}
}

type countingWriter struct {
	w   *bufio.Writer
	n   int64
	err error
}

func (c *countingWriter) printf(format string, args ...any) {
	if c.err != nil {
		return
	}
	n, err := fmt.Fprintf(c.w, format, args...)
	c.n += int64(n)
	c.err = err
}
