package progress

import (
	"fmt"
	"strconv"
)

// StageID identifies a stage within one reporter tree.
type StageID uint64

// RootID is the virtual root. It is never a real stage; top-level stages
// name it as their parent.
const RootID StageID = 0

// FirstStage is the id allocated to the stage created by Start.
const FirstStage StageID = 1

// String implements fmt.Stringer.
func (id StageID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// Kind denotes which lifecycle transition an Event represents.
type Kind string

// Supported event kinds.
const (
	KindBegin Kind = "begin"
	KindStep  Kind = "progress"
	KindEnd   Kind = "end"
)

// Event is a single stage lifecycle event. Every event is delivered together
// with a target StageID whose meaning depends on Kind:
//   - KindBegin: target is the parent of the new stage ID.
//   - KindStep: target is the stage whose completed count advances.
//   - KindEnd: target is the stage that finished.
type Event struct {
	Kind Kind `json:"type"`
	// ID, Name and Total are only set for KindBegin.
	ID    StageID `json:"id,omitempty"`
	Name  string  `json:"name,omitempty"`
	Total int     `json:"steps,omitempty"`
}

// Begin builds a KindBegin event declaring stage id.
func Begin(id StageID, name string, total int) Event {
	return Event{Kind: KindBegin, ID: id, Name: name, Total: total}
}

// Step builds a KindStep event.
func Step() Event {
	return Event{Kind: KindStep}
}

// End builds a KindEnd event.
func End() Event {
	return Event{Kind: KindEnd}
}

// String renders the event for logs.
func (e Event) String() string {
	switch e.Kind {
	case KindBegin:
		return fmt.Sprintf("begin(%d %q steps=%d)", e.ID, e.Name, e.Total)
	case KindStep, KindEnd:
		return string(e.Kind)
	default:
		return fmt.Sprintf("unknown(%q)", string(e.Kind))
	}
}
