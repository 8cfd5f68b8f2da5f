// Package transfer implements the upload, download, and deletion lifecycle
// state machines over a pluggable storage backend: progress aggregation,
// optional whole-payload compression and encryption, atomic placement of
// downloaded files, cleanup of partial artifacts, and normalization of
// backend error codes into a stable taxonomy.
//
// Transfers are cold: construction performs no work, the first Start call
// starts exactly one backend task, and the consumer receives any number of
// progress updates followed by exactly one terminal outcome. No event is
// ever delivered after the terminal outcome.
package transfer

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/blobcourier/blobcourier/internal/compress"
)

// Transfer is one logical upload, download, or deletion operation.
type Transfer interface {
	// Start subscribes the observer and triggers the backend task.
	// Construction performs no work; the first Start call does, and
	// later calls are no-ops.
	Start(obs Observer)

	// Cancel requests cooperative cancellation.
	Cancel()
}

// Observer receives progress updates and the single terminal outcome of a
// transfer. Callbacks are serialized and arrive in order; Done is always
// last and fires exactly once, with a nil error on success. Callbacks may
// be invoked from backend-owned goroutines.
type Observer interface {
	Progress(p Progress)
	Done(err error)
}

// ObserverFuncs adapts plain functions to the Observer interface. Nil
// functions are skipped.
type ObserverFuncs struct {
	OnProgress func(Progress)
	OnDone     func(error)
}

func (o ObserverFuncs) Progress(p Progress) {
	if o.OnProgress != nil {
		o.OnProgress(p)
	}
}

func (o ObserverFuncs) Done(err error) {
	if o.OnDone != nil {
		o.OnDone(err)
	}
}

type options struct {
	key  []byte
	comp *compress.Compressor
	log  zerolog.Logger
}

// Option configures a transfer at construction time.
type Option func(*options)

// WithKey enables end-to-end encryption with the given symmetric key.
// Without a key, payloads are transferred as-is.
func WithKey(key []byte) Option {
	return func(o *options) { o.key = key }
}

// WithCompression enables transparent payload compression, applied before
// encryption on upload and reversed after decryption on download.
func WithCompression(c *compress.Compressor) Option {
	return func(o *options) { o.comp = c }
}

// WithLogger sets the logger used for non-fatal diagnostics such as cleanup
// failures.
func WithLogger(log zerolog.Logger) Option {
	return func(o *options) { o.log = log }
}

func newOptions(opts []Option) options {
	o := options{log: zerolog.Nop()}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// errAlreadyDone signals that a terminal outcome was delivered before a
// finalization step could commit its result.
var errAlreadyDone = errors.New("transfer already completed")

type event struct {
	prog     Progress
	err      error
	terminal bool
}

// lifecycle owns a transfer's state and its event delivery. Only the
// transfer's own handlers mutate it; consumers interact solely through
// Start and Cancel. Events are queued under the lock and drained by a
// single dispatcher at a time, which keeps delivery ordered, serialized,
// and silent after the terminal outcome, and stays safe when an observer
// cancels the transfer from inside its own callback.
type lifecycle struct {
	id  string
	log zerolog.Logger

	mu          sync.Mutex
	started     bool
	terminal    bool
	dispatching bool
	queue       []event
	obs         Observer
	prog        Progress
}

func newLifecycle(kind string, o options) lifecycle {
	id := uuid.NewString()
	return lifecycle{
		id:  id,
		log: o.log.With().Str("transfer", kind).Str("id", id).Logger(),
	}
}

// begin claims the single start slot. It returns false if the transfer was
// already started or cancelled before starting.
func (l *lifecycle) begin(obs Observer) bool {
	l.mu.Lock()
	if l.started || l.terminal {
		l.mu.Unlock()
		return false
	}
	l.started = true
	l.obs = obs
	l.mu.Unlock()
	return true
}

// finished reports whether the terminal outcome has been enqueued.
func (l *lifecycle) finished() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.terminal
}

// report delivers a progress update. Post-terminal and non-monotonic
// updates are dropped.
func (l *lifecycle) report(completed, total int64) {
	l.mu.Lock()
	if l.terminal || completed < l.prog.Completed {
		l.mu.Unlock()
		return
	}
	l.prog.Completed = completed
	if total >= 0 {
		l.prog.Total = total
		l.prog.TotalKnown = true
	}
	l.queue = append(l.queue, event{prog: l.prog})
	l.drainLocked()
}

// forceComplete snaps Completed to Total (when known) and emits one final
// progress update.
func (l *lifecycle) forceComplete() {
	l.mu.Lock()
	if l.terminal {
		l.mu.Unlock()
		return
	}
	if l.prog.TotalKnown {
		l.prog.Completed = l.prog.Total
	}
	l.queue = append(l.queue, event{prog: l.prog})
	l.drainLocked()
}

// finish enqueues the terminal outcome. It returns false if one was already
// delivered; the first caller wins.
func (l *lifecycle) finish(err error) bool {
	l.mu.Lock()
	if l.terminal {
		l.mu.Unlock()
		return false
	}
	l.terminal = true
	l.queue = append(l.queue, event{err: err, terminal: true})
	l.drainLocked()
	return true
}

// finishWith commits fn and the successful terminal outcome as one step:
// fn runs only if no terminal outcome has been delivered, and nothing can
// slip in between fn succeeding and the outcome being enqueued. Returns
// errAlreadyDone when the transfer already completed, or fn's error.
func (l *lifecycle) finishWith(fn func() error) error {
	l.mu.Lock()
	if l.terminal {
		l.mu.Unlock()
		return errAlreadyDone
	}
	if err := fn(); err != nil {
		l.mu.Unlock()
		return err
	}
	l.terminal = true
	l.queue = append(l.queue, event{terminal: true})
	l.drainLocked()
	return nil
}

// drainLocked delivers queued events in order. Called with l.mu held;
// releases it. Only one goroutine dispatches at a time — a reentrant call
// from an observer callback queues its event and returns.
func (l *lifecycle) drainLocked() {
	if l.dispatching {
		l.mu.Unlock()
		return
	}
	l.dispatching = true
	for {
		if len(l.queue) == 0 {
			l.dispatching = false
			l.mu.Unlock()
			return
		}
		ev := l.queue[0]
		l.queue = l.queue[1:]
		obs := l.obs
		if ev.terminal {
			// Detach so no later callback can reach the consumer.
			l.obs = nil
		}
		l.mu.Unlock()

		if obs != nil {
			if ev.terminal {
				obs.Done(ev.err)
			} else {
				obs.Progress(ev.prog)
			}
		}
		l.mu.Lock()
	}
}
