package browse

import (
	"strings"
	"sync"
	"time"
)

const (
	debounceDelay   = 350 * time.Millisecond
	debounceMaxWait = 800 * time.Millisecond
	minQueryLength  = 2
)

// Debouncer coalesces keystrokes into search dispatches. A query is
// dispatched after a quiet period, or once typing has gone on for the
// max wait without a pause. Queries shorter than the minimum length
// clear the search instead of dispatching one, and a value equal to
// the last dispatched one is never re-dispatched.
type Debouncer struct {
	delay   time.Duration
	maxWait time.Duration
	fn      func(query string)

	mu         sync.Mutex
	timer      *time.Timer
	burstStart time.Time
	pending    string
	dispatched string
	hasPending bool
}

// NewDebouncer wires fn as the dispatch target with the standard
// delay, max wait and minimum length.
func NewDebouncer(fn func(query string)) *Debouncer {
	return &Debouncer{delay: debounceDelay, maxWait: debounceMaxWait, fn: fn}
}

// Update feeds one input value. Dispatch happens asynchronously.
func (d *Debouncer) Update(raw string) {
	query := strings.TrimSpace(raw)
	if len([]rune(query)) < minQueryLength {
		query = ""
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if query == d.dispatched {
		// Nothing new to say; drop any pending dispatch too.
		d.clearLocked()
		return
	}

	if !d.hasPending {
		d.burstStart = time.Now()
	}
	d.pending = query
	d.hasPending = true

	wait := d.delay
	if remaining := d.maxWait - time.Since(d.burstStart); remaining < wait {
		wait = remaining
	}
	if wait < 0 {
		wait = 0
	}

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(wait, d.fire)
}

// Flush dispatches any pending value immediately.
func (d *Debouncer) Flush() {
	d.fire()
}

// Stop drops any pending dispatch.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clearLocked()
}

func (d *Debouncer) fire() {
	d.mu.Lock()
	if !d.hasPending {
		d.mu.Unlock()
		return
	}
	query := d.pending
	d.dispatched = query
	d.clearLocked()
	fn := d.fn
	d.mu.Unlock()

	fn(query)
}

func (d *Debouncer) clearLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.pending = ""
	d.hasPending = false
}
