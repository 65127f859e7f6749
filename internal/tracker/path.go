package tracker

// PathRecorder buffers periodic position samples for the active goal.
//
// Sampling is snapshot based: a tick records whatever position is stored at
// that instant, so it can repeat a stale position or miss movement between
// ticks.
type PathRecorder struct {
	buf []Position
}

// NewPathRecorder returns an empty recorder.
func NewPathRecorder() *PathRecorder {
	return &PathRecorder{}
}

// Sample appends p when active is true and reports whether it did.
func (r *PathRecorder) Sample(active bool, p Position) bool {
	if !active {
		return false
	}
	r.buf = append(r.buf, p)
	return true
}

// Flush returns the buffered path and leaves the buffer empty.
// The returned slice is owned by the caller.
func (r *PathRecorder) Flush() []Position {
	path := r.buf
	r.buf = nil
	if path == nil {
		path = []Position{}
	}
	return path
}

// Len returns the number of buffered samples.
func (r *PathRecorder) Len() int { return len(r.buf) }

// Path returns a copy of the buffered samples.
func (r *PathRecorder) Path() []Position {
	out := make([]Position, len(r.buf))
	copy(out, r.buf)
	return out
}
