package progress

import (
	"sync"
	"sync/atomic"
)

// shared is the state every Reporter in one tree points at.
type shared struct {
	next    atomic.Uint64
	updater Updater
}

func (s *shared) makeID() StageID {
	return StageID(s.next.Add(1))
}

func (s *shared) emit(target StageID, ev Event) {
	s.updater.Update(target, ev)
}

// Reporter is the handle owning one stage. It creates child stages, records
// completed steps and ends the stage. A Reporter is safe for concurrent use;
// workers share a parent handle to open sibling stages under it.
//
// Go has no destructors, so the end of a stage must be explicit: pair every
// Start or Stage with a deferred End, or use Run which ends the stage on every
// exit path.
type Reporter struct {
	shared *shared
	id     StageID
	once   sync.Once
}

// Start creates a new reporter tree that sends its events to u and returns the
// handle for its first stage. A nil u behaves like Discard.
func Start(u Updater, total int, name string) *Reporter {
	if u == nil {
		u = Discard
	}
	s := &shared{updater: u}
	id := s.makeID()
	s.emit(RootID, Begin(id, name, total))
	return &Reporter{shared: s, id: id}
}

// ID returns the stage id this handle owns.
func (r *Reporter) ID() StageID {
	return r.id
}

// Stage opens a child stage with the given step count.
func (r *Reporter) Stage(total int, name string) *Reporter {
	id := r.shared.makeID()
	r.shared.emit(r.id, Begin(id, name, total))
	return &Reporter{shared: r.shared, id: id}
}

// Increment records one completed step on this stage.
func (r *Reporter) Increment() {
	r.shared.emit(r.id, Step())
}

// End marks the stage finished, which counts as one completed step of its
// parent. Only the first call has an effect.
func (r *Reporter) End() {
	r.once.Do(func() {
		r.shared.emit(r.id, End())
	})
}

// Run opens a child stage, passes it to fn and ends it when fn returns,
// including when fn panics.
func (r *Reporter) Run(total int, name string, fn func(*Reporter) error) error {
	return run(r.Stage(total, name), fn)
}

// Run starts a new reporter tree, passes the first stage to fn and ends it
// when fn returns, including when fn panics.
func Run(u Updater, total int, name string, fn func(*Reporter) error) error {
	return run(Start(u, total, name), fn)
}

func run(stage *Reporter, fn func(*Reporter) error) error {
	defer stage.End()
	return fn(stage)
}
