package progress

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type frame struct {
	at   time.Time
	text string
}

type recordingRenderer struct {
	mu     sync.Mutex
	frames []frame
}

func (r *recordingRenderer) Render(t *Tracker) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, frame{at: time.Now(), text: t.String()})
	return nil
}

func (r *recordingRenderer) Frames() []frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]frame(nil), r.frames...)
}

type failingRenderer struct{}

func (failingRenderer) Render(*Tracker) error { return errors.New("terminal gone") }

type gatedRenderer struct {
	gate <-chan struct{}
}

func (g gatedRenderer) Render(*Tracker) error {
	<-g.gate
	return nil
}

// TestThrottledSinkCoalesces sends two events inside one window and expects a
// single frame showing both.
func TestThrottledSinkCoalesces(t *testing.T) {
	t.Parallel()

	const interval = 200 * time.Millisecond
	rec := &recordingRenderer{}
	sink := NewThrottledSink(Config{Interval: interval}, rec)

	require.Eventually(t, func() bool { return len(rec.Frames()) == 1 }, time.Second, time.Millisecond)
	require.Empty(t, rec.Frames()[0].text)

	t0 := time.Now()
	sink.Update(RootID, Begin(1, "build", 3))
	time.Sleep(60 * time.Millisecond)
	sink.Update(1, Step())

	require.Eventually(t, func() bool { return len(rec.Frames()) == 2 }, 2*time.Second, time.Millisecond)
	second := rec.Frames()[1]
	require.Equal(t, "build  1/3\n", second.text)
	elapsed := second.at.Sub(t0)
	require.GreaterOrEqual(t, elapsed, interval-10*time.Millisecond)
	require.LessOrEqual(t, elapsed, interval+50*time.Millisecond)

	sink.Close()
	require.Len(t, rec.Frames(), 2)
}

// TestThrottledSinkRendersAfterIdle ensures a lone event is rendered once its
// window elapses, without needing further traffic.
func TestThrottledSinkRendersAfterIdle(t *testing.T) {
	t.Parallel()

	fb := NewFrameBuffer()
	sink := NewThrottledSink(Config{Interval: 10 * time.Millisecond}, fb)
	defer sink.Close()

	sink.Update(RootID, Begin(1, "fetch", 2))
	require.Eventually(t, func() bool { return fb.Latest() == "fetch  0/2\n" }, time.Second, time.Millisecond)

	sink.Update(1, Step())
	require.Eventually(t, func() bool { return fb.Latest() == "fetch  1/2\n" }, time.Second, time.Millisecond)
}

// TestThrottledSinkWithReporter runs the nested build scenario end to end.
func TestThrottledSinkWithReporter(t *testing.T) {
	t.Parallel()

	fb := NewFrameBuffer()
	sink := NewThrottledSink(Config{Interval: 5 * time.Millisecond}, fb)

	root := Start(sink, 1, "build")
	compile := root.Stage(3, "compile")
	for i := 0; i < 3; i++ {
		compile.Increment()
	}
	compile.End()

	require.Eventually(t, func() bool { return fb.Latest() == "build  1/1\n" }, time.Second, time.Millisecond)
	root.End()
	sink.Close()
}

// TestThrottledSinkCloseDrains stops the consumer once the channel is closed.
func TestThrottledSinkCloseDrains(t *testing.T) {
	t.Parallel()

	sink := NewThrottledSink(Config{Interval: time.Hour})
	sink.Update(RootID, Begin(1, "build", 1))

	select {
	case <-sink.Done():
		t.Fatal("consumer exited before Close")
	default:
	}

	closed := make(chan struct{})
	go func() {
		sink.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return while a window was open")
	}
	<-sink.Done()
	require.NotPanics(t, sink.Close)
}

// TestThrottledSinkUpdateAfterClose panics with ErrSinkClosed.
func TestThrottledSinkUpdateAfterClose(t *testing.T) {
	t.Parallel()

	sink := NewThrottledSink(Config{})
	sink.Close()

	var recovered any
	func() {
		defer func() { recovered = recover() }()
		sink.Update(1, Step())
	}()
	err, ok := recovered.(error)
	require.True(t, ok, "panic value should be an error, got %v", recovered)
	require.ErrorIs(t, err, ErrSinkClosed)
}

// TestThrottledSinkBackpressure blocks producers while the buffer is full.
func TestThrottledSinkBackpressure(t *testing.T) {
	t.Parallel()

	gate := make(chan struct{})
	sink := NewThrottledSink(Config{Interval: time.Millisecond, BufferSize: 1}, gatedRenderer{gate: gate})

	// The consumer is stuck in its first render, so one event fits in the buffer.
	sink.Update(RootID, Begin(1, "build", 2))

	sent := make(chan struct{})
	go func() {
		sink.Update(1, Step())
		close(sent)
	}()

	select {
	case <-sent:
		t.Fatal("Update returned while the buffer was full")
	case <-time.After(50 * time.Millisecond):
	}

	close(gate)
	select {
	case <-sent:
	case <-time.After(2 * time.Second):
		t.Fatal("Update stayed blocked after the consumer resumed")
	}
	sink.Close()
}

// TestThrottledSinkLogs checks ignored events and render failures are logged.
func TestThrottledSinkLogs(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	sink := NewThrottledSink(Config{Interval: time.Millisecond, Logger: zap.New(core)}, failingRenderer{})

	sink.Update(9, Step())
	sink.Update(RootID, Begin(1, "build", 1))
	sink.Close()

	ignored := logs.FilterMessage("ignoring event for unknown stage").All()
	require.Len(t, ignored, 1)
	require.Equal(t, "9", ignored[0].ContextMap()["target"])

	require.NotZero(t, logs.FilterMessage("progress render failed").Len())

	stopped := logs.FilterMessage("progress sink stopped").All()
	require.Len(t, stopped, 1)
	require.EqualValues(t, 2, stopped[0].ContextMap()["events_applied"])
	require.EqualValues(t, 1, stopped[0].ContextMap()["stages"])
}

// TestStartThrottled wires a root stage to a fresh sink.
func TestStartThrottled(t *testing.T) {
	t.Parallel()

	fb := NewFrameBuffer()
	root, sink := StartThrottled(Config{Interval: time.Millisecond}, 2, "deploy", fb)
	require.Equal(t, FirstStage, root.ID())

	root.Increment()
	require.Eventually(t, func() bool { return fb.Latest() == "deploy  1/2\n" }, time.Second, time.Millisecond)

	root.End()
	sink.Close()
}
