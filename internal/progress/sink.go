package progress

// Updater receives stage events. Implementations must be safe for concurrent
// use by many goroutines; Update may block briefly for backpressure but
// reports nothing back to the caller.
type Updater interface {
	Update(target StageID, ev Event)
}

// UpdaterFunc adapts a function to the Updater interface.
type UpdaterFunc func(target StageID, ev Event)

// Update implements Updater.
func (f UpdaterFunc) Update(target StageID, ev Event) {
	if f != nil {
		f(target, ev)
	}
}

type discard struct{}

func (discard) Update(StageID, Event) {}

// Discard swallows every event. Use it when progress reporting is disabled.
var Discard Updater = discard{}

// Tee returns an Updater that forwards each event to every non-nil updater in
// order. It returns Discard when none are given.
func Tee(updaters ...Updater) Updater {
	out := make(tee, 0, len(updaters))
	for _, u := range updaters {
		if u != nil {
			out = append(out, u)
		}
	}
	switch len(out) {
	case 0:
		return Discard
	case 1:
		return out[0]
	}
	return out
}

type tee []Updater

func (t tee) Update(target StageID, ev Event) {
	for _, u := range t {
		u.Update(target, ev)
	}
}

// Renderer draws a snapshot of a Tracker. It is only ever called from the
// goroutine that owns the tracker, so implementations need no locking for the
// tracker itself.
type Renderer interface {
	Render(t *Tracker) error
}
