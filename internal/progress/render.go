package progress

import (
	"bytes"
	"fmt"
	"io"
	"sync"
)

// WriterRenderer prints each frame to an io.Writer, typically os.Stderr.
type WriterRenderer struct {
	w         io.Writer
	separator string
	buf       bytes.Buffer
}

// NewWriterRenderer returns a Renderer writing frames to w. Frames are
// separated by a blank line.
func NewWriterRenderer(w io.Writer) *WriterRenderer {
	return &WriterRenderer{w: w, separator: "\n"}
}

// Render writes the frame in a single Write call.
func (r *WriterRenderer) Render(t *Tracker) error {
	r.buf.Reset()
	if _, err := t.WriteTo(&r.buf); err != nil {
		return fmt.Errorf("format frame: %w", err)
	}
	if r.buf.Len() == 0 {
		return nil
	}
	r.buf.WriteString(r.separator)
	if _, err := r.w.Write(r.buf.Bytes()); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// FrameBuffer keeps the most recently rendered frame so that other goroutines
// (an HTTP handler, a test) can read it without touching the Tracker.
type FrameBuffer struct {
	mu     sync.RWMutex
	frame  []byte
	frames int
}

// NewFrameBuffer returns an empty FrameBuffer.
func NewFrameBuffer() *FrameBuffer {
	return &FrameBuffer{}
}

// Render captures the frame.
func (f *FrameBuffer) Render(t *Tracker) error {
	var buf bytes.Buffer
	if _, err := t.WriteTo(&buf); err != nil {
		return fmt.Errorf("format frame: %w", err)
	}
	f.mu.Lock()
	f.frame = buf.Bytes()
	f.frames++
	f.mu.Unlock()
	return nil
}

// Latest returns the last captured frame.
func (f *FrameBuffer) Latest() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return string(f.frame)
}

// Frames reports how many frames have been captured.
func (f *FrameBuffer) Frames() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.frames
}
