package selection

import "fmt"

// DefaultWindow is the reference dwell window in frames.
const DefaultWindow = 15

// Debouncer confirms a selection once it fills an entire trailing window.
// Not safe for concurrent use.
type Debouncer struct {
	buf  []Selection
	next int
	size int
}

// NewDebouncer returns a debouncer with a window of n observations.
func NewDebouncer(n int) (*Debouncer, error) {
	if n <= 0 {
		return nil, fmt.Errorf("selection: debounce window must be positive, got %d", n)
	}
	return &Debouncer{buf: make([]Selection, n)}, nil
}

// Observe appends sel, evicting the oldest entry when full. It returns sel
// and true only when the window is full and every entry equals sel.
func (d *Debouncer) Observe(sel Selection) (Selection, bool) {
	d.buf[d.next] = sel
	d.next = (d.next + 1) % len(d.buf)
	if d.size < len(d.buf) {
		d.size++
	}
	if d.size < len(d.buf) {
		return Selection{}, false
	}
	for _, s := range d.buf {
		if s != sel {
			return Selection{}, false
		}
	}
	return sel, true
}

// Reset empties the window.
func (d *Debouncer) Reset() {
	clear(d.buf)
	d.next = 0
	d.size = 0
}

// Len returns the number of observations in the window.
func (d *Debouncer) Len() int { return d.size }

// Capacity returns the window size.
func (d *Debouncer) Capacity() int { return len(d.buf) }

// Snapshot returns the window contents, oldest first.
func (d *Debouncer) Snapshot() []Selection {
	out := make([]Selection, 0, d.size)
	start := (d.next - d.size + len(d.buf)) % len(d.buf)
	for i := 0; i < d.size; i++ {
		out = append(out, d.buf[(start+i)%len(d.buf)])
	}
	return out
}
