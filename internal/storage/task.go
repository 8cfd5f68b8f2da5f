package storage

import "sync"

type taskSnapshot struct {
	completed int64
	total     int64
	err       error
	ref       Reference
}

func (s *taskSnapshot) Progress() (int64, int64) { return s.completed, s.total }
func (s *taskSnapshot) Err() error               { return s.err }
func (s *taskSnapshot) Reference() Reference     { return s.ref }

// taskState is the observation and pause/cancel machinery shared by backend
// task implementations. Terminal snapshots are retained so handlers
// registered after completion still fire exactly once.
type taskState struct {
	ref Reference

	mu        sync.Mutex
	cond      *sync.Cond
	handlers  map[Status][]Handler
	fired     map[Status]*taskSnapshot
	completed int64
	total     int64
	paused    bool
	cancelled bool

	// onCancel, when set, is invoked once outside the lock on the first
	// Cancel call (backends use it to abort an in-flight request).
	onCancel func()
}

func newTaskState(ref Reference) *taskState {
	t := &taskState{
		ref:      ref,
		handlers: make(map[Status][]Handler),
		fired:    make(map[Status]*taskSnapshot),
		total:    -1,
	}
	t.cond = sync.NewCond(&t.mu)
	return t
}

// Observe registers a handler for the given status.
func (t *taskState) Observe(status Status, fn Handler) {
	t.mu.Lock()
	if snap, ok := t.fired[status]; ok && (status == StatusSuccess || status == StatusFailure) {
		t.mu.Unlock()
		fn(snap)
		return
	}
	t.handlers[status] = append(t.handlers[status], fn)
	t.mu.Unlock()
}

// Pause suspends the task at its next step boundary.
func (t *taskState) Pause() {
	t.mu.Lock()
	if t.paused || t.doneLocked() {
		t.mu.Unlock()
		return
	}
	t.paused = true
	t.mu.Unlock()
	t.emit(StatusPause, nil)
}

// Resume continues a paused task.
func (t *taskState) Resume() {
	t.mu.Lock()
	if !t.paused || t.doneLocked() {
		t.mu.Unlock()
		return
	}
	t.paused = false
	t.cond.Broadcast()
	t.mu.Unlock()
	t.emit(StatusResume, nil)
}

// Cancel requests cooperative cancellation.
func (t *taskState) Cancel() {
	t.mu.Lock()
	if t.cancelled {
		t.mu.Unlock()
		return
	}
	t.cancelled = true
	fn := t.onCancel
	t.cond.Broadcast()
	t.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (t *taskState) doneLocked() bool {
	if _, ok := t.fired[StatusSuccess]; ok {
		return true
	}
	_, ok := t.fired[StatusFailure]
	return ok
}

// gate blocks while paused and reports whether the task was cancelled.
func (t *taskState) gate() bool {
	t.mu.Lock()
	for t.paused && !t.cancelled {
		t.cond.Wait()
	}
	cancelled := t.cancelled
	t.mu.Unlock()
	return cancelled
}

func (t *taskState) setTotal(total int64) {
	t.mu.Lock()
	t.total = total
	t.mu.Unlock()
}

func (t *taskState) emit(status Status, err error) {
	t.mu.Lock()
	snap := &taskSnapshot{completed: t.completed, total: t.total, err: err, ref: t.ref}
	if status == StatusSuccess || status == StatusFailure {
		if t.doneLocked() {
			t.mu.Unlock()
			return
		}
		t.fired[status] = snap
	}
	hs := append([]Handler(nil), t.handlers[status]...)
	t.mu.Unlock()

	for _, h := range hs {
		h(snap)
	}
}

// advance adds n transferred bytes and emits a progress event.
func (t *taskState) advance(n int64) {
	t.mu.Lock()
	t.completed += n
	t.mu.Unlock()
	t.emit(StatusProgress, nil)
}

// advanceTo sets the absolute transferred byte count and emits a progress
// event. Positions behind the high-water mark are ignored (request bodies
// may be rewound for signing).
func (t *taskState) advanceTo(completed int64) {
	t.mu.Lock()
	if completed <= t.completed {
		t.mu.Unlock()
		return
	}
	t.completed = completed
	t.mu.Unlock()
	t.emit(StatusProgress, nil)
}

func (t *taskState) fail(code Code, message string, err error) {
	t.emit(StatusFailure, NewError(code, message, err))
}

func (t *taskState) succeed() {
	t.emit(StatusSuccess, nil)
}
