package transfer

import (
	"sync"

	"github.com/blobcourier/blobcourier/internal/crypto"
	"github.com/blobcourier/blobcourier/internal/storage"
)

// Upload sends one payload to a remote reference, optionally compressing
// and sealing it first.
type Upload struct {
	lc      lifecycle
	ref     storage.Reference
	payload []byte
	opts    options

	mu   sync.Mutex
	task storage.Task
}

// NewUpload creates an upload transfer. A nil reference fails at Start with
// KindNotAuthenticated; a nil payload fails with KindNoData. An empty
// non-nil payload is a legal zero-byte object.
func NewUpload(ref storage.Reference, payload []byte, opts ...Option) *Upload {
	o := newOptions(opts)
	return &Upload{
		lc:      newLifecycle("upload", o),
		ref:     ref,
		payload: payload,
		opts:    o,
	}
}

// Start subscribes the observer and starts the backend put-task. Later calls
// are no-ops. Pre-condition failures are delivered synchronously, before any
// backend task exists.
func (u *Upload) Start(obs Observer) {
	if !u.lc.begin(obs) {
		return
	}

	if u.ref == nil {
		u.lc.finish(newError(KindNotAuthenticated, "no resolvable reference", nil))
		return
	}
	if u.payload == nil {
		u.lc.finish(newError(KindNoData, "no payload available", nil))
		return
	}

	data := u.payload
	if u.opts.comp != nil {
		compressed, err := u.opts.comp.Compress(data)
		if err != nil {
			u.lc.finish(newError(KindUnknown, "compression failed", err))
			return
		}
		data = compressed
	}
	if u.opts.key != nil {
		sealed, err := crypto.Seal(data, u.opts.key)
		if err != nil {
			u.lc.finish(newError(KindUnknown, "encryption failed", err))
			return
		}
		data = sealed
	}

	task := u.ref.Put(data)
	u.mu.Lock()
	u.task = task
	u.mu.Unlock()

	// Cancel may have raced the task creation; make sure the backend hears
	// about it.
	if u.lc.finished() {
		task.Cancel()
		return
	}

	task.Observe(storage.StatusProgress, func(s storage.Snapshot) {
		completed, total := s.Progress()
		u.lc.report(completed, total)
	})
	task.Observe(storage.StatusFailure, func(s storage.Snapshot) {
		u.lc.finish(mapBackendError("upload failed", s.Err()))
	})
	task.Observe(storage.StatusSuccess, func(s storage.Snapshot) {
		// A terminal success snapshot can still carry an error.
		if err := s.Err(); err != nil {
			u.lc.finish(mapBackendError("upload failed", err))
			return
		}
		u.lc.forceComplete()
		u.lc.finish(nil)
	})
}

// Cancel synthesizes the cancelled outcome immediately and requests
// backend-level cancellation as a best-effort side channel. Cancelling
// before Start makes the transfer unstartable; cancelling after the
// terminal outcome is a no-op.
func (u *Upload) Cancel() {
	u.mu.Lock()
	task := u.task
	u.mu.Unlock()
	if task != nil {
		task.Cancel()
	}
	if u.lc.finish(newError(KindCancelled, "upload cancelled", nil)) {
		u.lc.log.Debug().Str("object", refPath(u.ref)).Msg("upload cancelled")
	}
}

func refPath(ref storage.Reference) string {
	if ref == nil {
		return ""
	}
	return ref.Path()
}
