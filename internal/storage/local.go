package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

const defaultChunkSize = 256 * 1024

// LocalBackend implements Backend on top of a local directory. It is used by
// the CLI's "local" provider and as the backend for tests: transfers run
// through the same task machinery as a remote backend, chunk by chunk, so
// mid-flight progress, pause, and cancellation are all observable.
type LocalBackend struct {
	basePath string

	// ChunkSize is the number of bytes moved per step. Smaller values
	// produce more progress events.
	ChunkSize int

	// StepDelay is an artificial delay between steps, useful in tests
	// that need to act on an in-flight task.
	StepDelay time.Duration
}

// NewLocalBackend creates a local filesystem backend rooted at basePath.
func NewLocalBackend(basePath string) (*LocalBackend, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create backend directory: %w", err)
	}
	return &LocalBackend{basePath: basePath, ChunkSize: defaultChunkSize}, nil
}

// Ref returns a Reference for the given remote path.
func (l *LocalBackend) Ref(path string) Reference {
	return &localRef{backend: l, path: path}
}

// Close releases backend resources.
func (l *LocalBackend) Close() error {
	return nil
}

// keyToPath converts a remote path to a filesystem path under the base.
func (l *LocalBackend) keyToPath(key string) string {
	return filepath.Join(l.basePath, filepath.FromSlash(key))
}

type localRef struct {
	backend *LocalBackend
	path    string
}

func (r *localRef) Name() string { return baseName(r.path) }
func (r *localRef) Path() string { return r.path }

// Put starts an upload of raw bytes into the backing directory.
func (r *localRef) Put(data []byte) Task {
	t := &localTask{taskState: newTaskState(r), backend: r.backend}
	go t.runPut(data)
	return t
}

// WriteToFile starts a download of the object into the given local path.
func (r *localRef) WriteToFile(path string) Task {
	t := &localTask{taskState: newTaskState(r), backend: r.backend}
	go t.runWriteToFile(path)
	return t
}

// Delete removes the object, reporting CodeObjectNotFound if it does not exist.
func (r *localRef) Delete(fn func(error)) {
	go func() {
		target := r.backend.keyToPath(r.path)
		if _, err := os.Stat(target); os.IsNotExist(err) {
			fn(NewError(CodeObjectNotFound, fmt.Sprintf("no object at %s", r.path), err))
			return
		}
		if err := os.Remove(target); err != nil {
			fn(NewError(CodeUnknown, "delete failed", err))
			return
		}
		fn(nil)
	}()
}

// DownloadURL resolves a file:// URL for the object.
func (r *localRef) DownloadURL(fn func(string, error)) {
	go func() {
		target := r.backend.keyToPath(r.path)
		if _, err := os.Stat(target); err != nil {
			fn("", NewError(CodeObjectNotFound, fmt.Sprintf("no object at %s", r.path), err))
			return
		}
		abs, err := filepath.Abs(target)
		if err != nil {
			fn("", NewError(CodeUnknown, "resolve failed", err))
			return
		}
		fn("file://"+filepath.ToSlash(abs), nil)
	}()
}

type localTask struct {
	*taskState
	backend *LocalBackend
}

func (t *localTask) chunkSize() int {
	if t.backend.ChunkSize > 0 {
		return t.backend.ChunkSize
	}
	return defaultChunkSize
}

func (t *localTask) step() {
	if d := t.backend.StepDelay; d > 0 {
		time.Sleep(d)
	}
}

func (t *localTask) runPut(data []byte) {
	t.setTotal(int64(len(data)))

	target := t.backend.keyToPath(t.ref.Path())
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		t.fail(CodeUnknown, "failed to create directories", err)
		return
	}

	f, err := os.Create(target)
	if err != nil {
		t.fail(CodeUnknown, "failed to create object", err)
		return
	}

	chunk := t.chunkSize()
	for off := 0; off < len(data); off += chunk {
		if t.gate() {
			f.Close()
			os.Remove(target)
			t.fail(CodeCancelled, "upload cancelled", nil)
			return
		}
		end := off + chunk
		if end > len(data) {
			end = len(data)
		}
		n, err := f.Write(data[off:end])
		if err != nil {
			f.Close()
			os.Remove(target)
			t.fail(CodeUnknown, "failed to write object", err)
			return
		}
		t.advance(int64(n))
		t.step()
	}

	if err := f.Close(); err != nil {
		os.Remove(target)
		t.fail(CodeUnknown, "failed to finish object", err)
		return
	}
	if t.gate() {
		os.Remove(target)
		t.fail(CodeCancelled, "upload cancelled", nil)
		return
	}
	t.succeed()
}

func (t *localTask) runWriteToFile(path string) {
	source := t.backend.keyToPath(t.ref.Path())
	info, err := os.Stat(source)
	if err != nil {
		if os.IsNotExist(err) {
			t.fail(CodeObjectNotFound, fmt.Sprintf("no object at %s", t.ref.Path()), err)
			return
		}
		t.fail(CodeUnknown, "failed to stat object", err)
		return
	}
	t.setTotal(info.Size())

	in, err := os.Open(source)
	if err != nil {
		t.fail(CodeUnknown, "failed to open object", err)
		return
	}
	defer in.Close()

	out, err := os.Create(path)
	if err != nil {
		t.fail(CodeUnknown, "failed to create local file", err)
		return
	}

	buf := make([]byte, t.chunkSize())
	for {
		if t.gate() {
			out.Close()
			os.Remove(path)
			t.fail(CodeCancelled, "download cancelled", nil)
			return
		}
		n, rerr := in.Read(buf)
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				out.Close()
				os.Remove(path)
				t.fail(CodeUnknown, "failed to write local file", werr)
				return
			}
			t.advance(int64(n))
			t.step()
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			out.Close()
			os.Remove(path)
			t.fail(CodeUnknown, "failed to read object", rerr)
			return
		}
	}

	if err := out.Close(); err != nil {
		os.Remove(path)
		t.fail(CodeUnknown, "failed to finish local file", err)
		return
	}
	t.succeed()
}
