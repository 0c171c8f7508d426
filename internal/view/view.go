// Package view tracks which screen is currently mounted. Each dispatch gets
// a Frame; mounting the next screen unmounts the previous frame, after
// which its writes are dropped and its cleanup hooks run. Screens use this
// to keep late API responses off a screen the user already left.
package view

import (
	"context"
	"io"
	"sync"
)

// Viewport owns the sequence of mounted frames.
type Viewport struct {
	mu      sync.Mutex
	gen     uint64
	current *Frame
}

// NewViewport returns an empty viewport.
func NewViewport() *Viewport {
	return &Viewport{}
}

// Mount unmounts the current frame, if any, and mounts a new one for path
// that writes to out.
func (v *Viewport) Mount(path string, out io.Writer) *Frame {
	v.mu.Lock()
	prev := v.current
	v.gen++
	f := &Frame{gen: v.gen, path: path, out: out}
	v.current = f
	v.mu.Unlock()

	if prev != nil {
		prev.unmount()
	}
	return f
}

// Unmount unmounts the current frame and leaves the viewport empty.
func (v *Viewport) Unmount() {
	v.mu.Lock()
	prev := v.current
	v.current = nil
	v.mu.Unlock()
	if prev != nil {
		prev.unmount()
	}
}

// Current returns the mounted frame, or nil.
func (v *Viewport) Current() *Frame {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.current
}

// Frame is one mounted screen.
type Frame struct {
	gen  uint64
	path string
	out  io.Writer

	mu       sync.Mutex
	closed   bool
	cleanups []func()
}

// Path returns the path the frame was mounted for.
func (f *Frame) Path() string {
	return f.path
}

// Generation returns the frame's mount sequence number.
func (f *Frame) Generation() uint64 {
	return f.gen
}

// Active reports whether the frame is still mounted.
func (f *Frame) Active() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.closed
}

// Write forwards p to the output while the frame is mounted and silently
// drops it afterwards.
func (f *Frame) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return len(p), nil
	}
	return f.out.Write(p)
}

// OnUnmount registers fn to run when the frame is unmounted. If it already
// is, fn runs immediately.
func (f *Frame) OnUnmount(fn func()) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		fn()
		return
	}
	f.cleanups = append(f.cleanups, fn)
	f.mu.Unlock()
}

func (f *Frame) unmount() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	fns := f.cleanups
	f.cleanups = nil
	f.mu.Unlock()

	for i := len(fns) - 1; i >= 0; i-- {
		fns[i]()
	}
}

type ctxKey struct{}

// NewContext returns ctx carrying f.
func NewContext(ctx context.Context, f *Frame) context.Context {
	return context.WithValue(ctx, ctxKey{}, f)
}

// FromContext returns the frame carried by ctx.
func FromContext(ctx context.Context) (*Frame, bool) {
	f, ok := ctx.Value(ctxKey{}).(*Frame)
	return f, ok
}
