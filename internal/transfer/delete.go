package transfer

import "github.com/blobcourier/blobcourier/internal/storage"

// Deletion removes one remote object. It reports no progress; the outcome
// is binary. Deleting a nonexistent object fails with KindItemNotFound.
type Deletion struct {
	lc   lifecycle
	ref  storage.Reference
	opts options
}

// NewDeletion creates a deletion transfer.
func NewDeletion(ref storage.Reference, opts ...Option) *Deletion {
	o := newOptions(opts)
	return &Deletion{
		lc:   newLifecycle("deletion", o),
		ref:  ref,
		opts: o,
	}
}

// Start subscribes the observer and issues the backend deletion. Later
// calls are no-ops.
func (d *Deletion) Start(obs Observer) {
	if !d.lc.begin(obs) {
		return
	}

	if d.ref == nil {
		d.lc.finish(newError(KindNotAuthenticated, "no resolvable reference", nil))
		return
	}

	d.ref.Delete(func(err error) {
		if err != nil {
			d.lc.finish(mapBackendError("deletion failed", err))
			return
		}
		d.lc.finish(nil)
	})
}

// Cancel is accepted but has no effect on an in-flight deletion: the
// backend primitive offers no mid-flight cancellation. The terminal outcome
// still arrives exactly once, from the completion callback. Cancelling
// before Start makes the transfer unstartable.
func (d *Deletion) Cancel() {
	d.lc.mu.Lock()
	if !d.lc.started {
		d.lc.terminal = true
	}
	d.lc.mu.Unlock()
}
