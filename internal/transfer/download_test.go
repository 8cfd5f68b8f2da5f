package transfer

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blobcourier/blobcourier/internal/compress"
	"github.com/blobcourier/blobcourier/internal/crypto"
	"github.com/blobcourier/blobcourier/internal/storage"
)

// uploadObject seeds the backend with one object through the real upload path.
func uploadObject(t *testing.T, ref storage.Reference, payload []byte, opts ...Option) {
	t.Helper()
	u := NewUpload(ref, payload, opts...)
	rec := newRecorder()
	u.Start(rec)
	require.NoError(t, rec.wait(t))
}

// scratchTempDir points os.MkdirTemp at a private directory so tests can
// verify that download staging areas are cleaned up. Call it after any
// t.TempDir() the test needs, since t.TempDir honors TMPDIR too.
func scratchTempDir(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "scratch-")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	t.Setenv("TMPDIR", dir)
	return dir
}

func requireEmptyDir(t *testing.T, dir string) {
	t.Helper()
	require.Eventually(t, func() bool {
		entries, err := os.ReadDir(dir)
		return err == nil && len(entries) == 0
	}, 5*time.Second, time.Millisecond, "staging directory not cleaned up")
}

func TestDownloadPlainRoundTrip(t *testing.T) {
	b, _ := newBackend(t)
	payload := []byte("round trip payload")
	uploadObject(t, b.Ref("obj"), payload)

	dest := filepath.Join(t.TempDir(), "nested", "out.bin")
	tmp := scratchTempDir(t)

	d := NewDownload(b.Ref("obj"), dest)
	rec := newRecorder()
	d.Start(rec)

	require.NoError(t, rec.wait(t))
	rec.assertSilent(t)

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
	requireEmptyDir(t, tmp)
}

func TestDownloadEncryptedCompressedRoundTrip(t *testing.T) {
	b, _ := newBackend(t)
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	comp, err := compress.NewDefault()
	require.NoError(t, err)
	defer comp.Close()

	payload := []byte("end to end: compress, seal, upload, download, open, expand")
	uploadObject(t, b.Ref("obj"), payload, WithKey(key), WithCompression(comp))

	dest := filepath.Join(t.TempDir(), "out.bin")
	tmp := scratchTempDir(t)

	d := NewDownload(b.Ref("obj"), dest, WithKey(key), WithCompression(comp))
	rec := newRecorder()
	d.Start(rec)

	require.NoError(t, rec.wait(t))

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
	requireEmptyDir(t, tmp)
}

func TestDownloadWrongKeyLeavesDestination(t *testing.T) {
	b, _ := newBackend(t)
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	uploadObject(t, b.Ref("obj"), []byte("sealed data"), WithKey(key))

	dest := filepath.Join(t.TempDir(), "out.bin")
	tmp := scratchTempDir(t)
	existing := []byte("previous contents")
	require.NoError(t, os.WriteFile(dest, existing, 0o644))

	wrongKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	d := NewDownload(b.Ref("obj"), dest, WithKey(wrongKey))
	rec := newRecorder()
	d.Start(rec)

	assert.True(t, IsKind(rec.wait(t), KindDecryptionFailure))
	rec.assertSilent(t)

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, existing, got, "failed decryption must not touch the destination")
	requireEmptyDir(t, tmp)
}

func TestDownloadMissingObject(t *testing.T) {
	b, _ := newBackend(t)
	dest := filepath.Join(t.TempDir(), "out.bin")
	tmp := scratchTempDir(t)

	d := NewDownload(b.Ref("missing"), dest)
	rec := newRecorder()
	d.Start(rec)

	assert.True(t, IsKind(rec.wait(t), KindItemNotFound))

	_, err := os.Stat(dest)
	assert.True(t, os.IsNotExist(err))
	requireEmptyDir(t, tmp)
}

func TestDownloadNilReference(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "out.bin")
	tmp := scratchTempDir(t)

	d := NewDownload(nil, dest)
	rec := newRecorder()
	d.Start(rec)

	assert.True(t, IsKind(rec.wait(t), KindNotAuthenticated))
	assert.Zero(t, rec.progressCount())

	// The failure fires before any staging directory is created.
	entries, err := os.ReadDir(tmp)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDownloadReplacesExistingDestination(t *testing.T) {
	b, _ := newBackend(t)
	payload := []byte("fresh contents")
	uploadObject(t, b.Ref("obj"), payload)

	dest := filepath.Join(t.TempDir(), "out.bin")
	require.NoError(t, os.WriteFile(dest, []byte("stale contents"), 0o644))

	d := NewDownload(b.Ref("obj"), dest)
	rec := newRecorder()
	d.Start(rec)
	require.NoError(t, rec.wait(t))

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestDownloadCancelMidFlight(t *testing.T) {
	b, _ := newBackend(t)
	b.ChunkSize = 1024
	b.StepDelay = 2 * time.Millisecond
	uploadObject(t, b.Ref("big"), make([]byte, 256*1024))

	dest := filepath.Join(t.TempDir(), "out.bin")
	tmp := scratchTempDir(t)

	d := NewDownload(b.Ref("big"), dest)
	rec := newRecorder()
	d.Start(rec)

	require.Eventually(t, func() bool {
		return rec.progressCount() > 0
	}, 5*time.Second, time.Millisecond)
	d.Cancel()

	assert.True(t, IsKind(rec.wait(t), KindCancelled))
	rec.assertSilent(t)

	// A cancelled download never creates the destination, and its staging
	// directory is eventually removed.
	_, err := os.Stat(dest)
	assert.True(t, os.IsNotExist(err))
	requireEmptyDir(t, tmp)
}

func TestDownloadStartIsIdempotent(t *testing.T) {
	b, _ := newBackend(t)
	uploadObject(t, b.Ref("obj"), []byte("once"))

	dest := filepath.Join(t.TempDir(), "out.bin")
	d := NewDownload(b.Ref("obj"), dest)
	rec := newRecorder()
	d.Start(rec)
	require.NoError(t, rec.wait(t))

	second := newRecorder()
	d.Start(second)
	time.Sleep(50 * time.Millisecond)

	second.mu.Lock()
	assert.Empty(t, second.outcomes)
	assert.Empty(t, second.progress)
	second.mu.Unlock()
}
