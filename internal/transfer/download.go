package transfer

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/blobcourier/blobcourier/internal/crypto"
	"github.com/blobcourier/blobcourier/internal/storage"
)

// Download fetches one remote object into a private temporary directory and
// finalizes it into the destination path: decrypt and decompress if
// configured, then swap the result in so that no partially-written file is
// ever observable at the destination.
type Download struct {
	lc   lifecycle
	ref  storage.Reference
	dest string
	opts options

	mu     sync.Mutex
	task   storage.Task
	tmpDir string
}

// NewDownload creates a download transfer targeting the given destination
// path. A nil reference fails at Start with KindNotAuthenticated before any
// temporary directory is created.
func NewDownload(ref storage.Reference, dest string, opts ...Option) *Download {
	o := newOptions(opts)
	return &Download{
		lc:   newLifecycle("download", o),
		ref:  ref,
		dest: dest,
		opts: o,
	}
}

// Start subscribes the observer and starts the backend write-to-file task
// into a fresh temporary directory. Later calls are no-ops.
func (d *Download) Start(obs Observer) {
	if !d.lc.begin(obs) {
		return
	}

	if d.ref == nil {
		d.lc.finish(newError(KindNotAuthenticated, "no resolvable reference", nil))
		return
	}

	tmpDir, err := os.MkdirTemp("", "blobcourier-")
	if err != nil {
		d.lc.finish(newError(KindDiskIO, "failed to create temporary directory", err))
		return
	}
	d.mu.Lock()
	d.tmpDir = tmpDir
	d.mu.Unlock()

	tmpFile := filepath.Join(tmpDir, filepath.Base(d.dest))
	task := d.ref.WriteToFile(tmpFile)
	d.mu.Lock()
	d.task = task
	d.mu.Unlock()

	if d.lc.finished() {
		task.Cancel()
		d.cleanupTemp()
		return
	}

	task.Observe(storage.StatusProgress, func(s storage.Snapshot) {
		completed, total := s.Progress()
		d.lc.report(completed, total)
	})
	task.Observe(storage.StatusFailure, func(s storage.Snapshot) {
		d.lc.finish(mapBackendError("download failed", s.Err()))
		d.cleanupTemp()
	})
	task.Observe(storage.StatusSuccess, func(s storage.Snapshot) {
		if err := s.Err(); err != nil {
			d.lc.finish(mapBackendError("download failed", err))
			d.cleanupTemp()
			return
		}
		d.lc.forceComplete()
		// Finalization runs on its own goroutine so slow disk or crypto
		// work cannot stall backend event delivery.
		go d.finalize(tmpFile)
	})
}

// Cancel requests backend cancellation and synthesizes the cancelled outcome
// without waiting for acknowledgment. The destination is never created by a
// cancelled download.
func (d *Download) Cancel() {
	d.mu.Lock()
	task := d.task
	d.mu.Unlock()
	if task != nil {
		task.Cancel()
	}
	if d.lc.finish(newError(KindCancelled, "download cancelled", nil)) {
		d.lc.log.Debug().Str("object", refPath(d.ref)).Msg("download cancelled")
	}
}

// finalize turns the fully downloaded temp file into the destination file.
// The temporary directory is removed on every exit path.
func (d *Download) finalize(tmpFile string) {
	defer d.cleanupTemp()

	if d.lc.finished() {
		return
	}

	var data []byte
	if d.opts.key != nil || d.opts.comp != nil {
		raw, err := os.ReadFile(tmpFile)
		if err != nil {
			d.lc.finish(newError(KindDiskIO, fmt.Sprintf("failed to read %s", tmpFile), err))
			return
		}
		data = raw
		if d.opts.key != nil {
			opened, err := crypto.Open(data, d.opts.key)
			if err != nil {
				// The destination stays untouched; decryption is
				// never retried automatically.
				d.lc.finish(newError(KindDecryptionFailure, "failed to open sealed payload", err))
				return
			}
			data = opened
		}
		if d.opts.comp != nil {
			plain, err := d.opts.comp.Decompress(data)
			if err != nil {
				d.lc.finish(newError(KindUnknown, "decompression failed", err))
				return
			}
			data = plain
		}
	}

	if err := os.MkdirAll(filepath.Dir(d.dest), 0o755); err != nil {
		d.lc.finish(newError(KindDiskIO, "failed to create destination directory", err))
		return
	}

	if data != nil {
		// Stage the decoded bytes next to the destination, then swap
		// them in together with the terminal transition: a cancel that
		// wins the race leaves no file at the destination.
		staged, err := stageBytes(d.dest, data)
		if err != nil {
			d.lc.finish(newError(KindDiskIO, "failed to stage destination file", err))
			return
		}
		switch err := d.lc.finishWith(func() error { return replaceFile(staged, d.dest) }); err {
		case nil:
		case errAlreadyDone:
			os.Remove(staged)
		default:
			os.Remove(staged)
			d.lc.finish(newError(KindDiskIO, fmt.Sprintf("failed to place %s", d.dest), err))
		}
		return
	}

	// No decoding required: move (not copy) the temp file into place.
	switch err := d.lc.finishWith(func() error { return moveFile(tmpFile, d.dest) }); err {
	case nil, errAlreadyDone:
	default:
		d.lc.finish(newError(KindDiskIO, fmt.Sprintf("failed to place %s", d.dest), err))
	}
}

func (d *Download) cleanupTemp() {
	d.mu.Lock()
	dir := d.tmpDir
	d.tmpDir = ""
	d.mu.Unlock()
	if dir == "" {
		return
	}
	// Best effort: a cleanup failure never changes the delivered outcome.
	if err := os.RemoveAll(dir); err != nil {
		d.lc.log.Warn().Err(err).Str("dir", dir).Msg("failed to remove temporary directory")
	}
}

// stageBytes writes data to a hidden temp file in the destination's
// directory and returns its path.
func stageBytes(dest string, data []byte) (string, error) {
	f, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".tmp-")
	if err != nil {
		return "", err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

// replaceFile swaps staged into dest, removing any pre-existing file first.
func replaceFile(staged, dest string) error {
	if err := os.Remove(dest); err != nil && !os.IsNotExist(err) {
		return err
	}
	return os.Rename(staged, dest)
}

// moveFile renames src to dest, falling back to a staged copy when the two
// live on different filesystems.
func moveFile(src, dest string) error {
	if err := os.Remove(dest); err != nil && !os.IsNotExist(err) {
		return err
	}
	if err := os.Rename(src, dest); err == nil {
		return nil
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	staged, err := stageBytes(dest, data)
	if err != nil {
		return err
	}
	if err := os.Rename(staged, dest); err != nil {
		os.Remove(staged)
		return err
	}
	os.Remove(src)
	return nil
}
