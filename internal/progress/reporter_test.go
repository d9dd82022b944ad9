package progress

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestReporterEmitsLifecycle verifies the target of each event kind.
func TestReporterEmitsLifecycle(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	root := Start(rec, 1, "build")
	require.Equal(t, FirstStage, root.ID())

	compile := root.Stage(3, "compile")
	compile.Increment()
	compile.End()
	root.End()

	require.Equal(t, []message{
		{target: RootID, ev: Begin(1, "build", 1)},
		{target: 1, ev: Begin(2, "compile", 3)},
		{target: 2, ev: Step()},
		{target: 2, ev: End()},
		{target: 1, ev: End()},
	}, rec.Messages())
}

// TestReporterEndOnce ensures repeated End calls emit a single event.
func TestReporterEndOnce(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	root := Start(rec, 0, "build")
	root.End()
	root.End()
	require.Len(t, rec.Messages(), 2)
}

// TestReporterUniqueIDs opens stages from many goroutines and checks every id is distinct.
func TestReporterUniqueIDs(t *testing.T) {
	t.Parallel()

	const workers = 16
	const perWorker = 500

	root := Start(Discard, workers*perWorker, "root")
	ids := make(chan StageID, workers*perWorker)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				stage := root.Stage(1, "unit")
				ids <- stage.ID()
				stage.End()
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[StageID]struct{}{root.ID(): {}}
	for id := range ids {
		require.NotEqual(t, RootID, id)
		_, dup := seen[id]
		require.False(t, dup, "duplicate stage id %d", id)
		seen[id] = struct{}{}
	}
	require.Len(t, seen, workers*perWorker+1)
}

// TestReporterRunEndsOnError ensures Run ends the stage when fn fails.
func TestReporterRunEndsOnError(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	boom := errors.New("boom")
	err := Run(rec, 1, "build", func(root *Reporter) error {
		return root.Run(2, "compile", func(*Reporter) error {
			return boom
		})
	})
	require.ErrorIs(t, err, boom)

	msgs := rec.Messages()
	require.Len(t, msgs, 4)
	require.Equal(t, message{target: 2, ev: End()}, msgs[2])
	require.Equal(t, message{target: 1, ev: End()}, msgs[3])
}

// TestReporterRunEndsOnPanic ensures Run ends the stage before the panic propagates.
func TestReporterRunEndsOnPanic(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	root := Start(rec, 1, "build")
	require.Panics(t, func() {
		_ = root.Run(1, "compile", func(*Reporter) error {
			panic("worker crashed")
		})
	})

	msgs := rec.Messages()
	require.Equal(t, message{target: 2, ev: End()}, msgs[len(msgs)-1])
}

// TestReporterNilUpdater treats a nil updater as Discard.
func TestReporterNilUpdater(t *testing.T) {
	t.Parallel()

	require.NotPanics(t, func() {
		root := Start(nil, 1, "build")
		child := root.Stage(1, "compile")
		child.Increment()
		child.End()
		root.End()
	})
}

// TestReporterDrivesTracker feeds a reporter straight into a tracker.
func TestReporterDrivesTracker(t *testing.T) {
	t.Parallel()

	tr := NewTracker()
	var mu sync.Mutex
	apply := UpdaterFunc(func(target StageID, ev Event) {
		mu.Lock()
		defer mu.Unlock()
		tr.Apply(target, ev)
	})

	root := Start(apply, 1, "build")
	compile := root.Stage(3, "compile")
	for i := 0; i < 3; i++ {
		compile.Increment()
	}
	compile.End()

	require.Equal(t, "build  1/1\n", tr.String())
}

// TestTee fans events out to every updater and skips nils.
func TestTee(t *testing.T) {
	t.Parallel()

	a, b := &recorder{}, &recorder{}
	u := Tee(a, nil, b)
	root := Start(u, 1, "build")
	root.Increment()

	require.Len(t, a.Messages(), 2)
	require.Equal(t, a.Messages(), b.Messages())
	require.Equal(t, Discard, Tee())
	require.Same(t, a, Tee(nil, a))
}

// TestUpdaterFuncNil ensures a nil UpdaterFunc is safe to call.
func TestUpdaterFuncNil(t *testing.T) {
	t.Parallel()

	var f UpdaterFunc
	require.NotPanics(t, func() { f.Update(1, Step()) })
}

type recorder struct {
	mu   sync.Mutex
	msgs []message
}

func (r *recorder) Update(target StageID, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, message{target: target, ev: ev})
}

func (r *recorder) Messages() []message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]message(nil), r.msgs...)
}
