package transfer

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/blobcourier/blobcourier/internal/storage"
)

func TestKindForCode(t *testing.T) {
	tests := []struct {
		code storage.Code
		want Kind
	}{
		{storage.CodeObjectNotFound, KindItemNotFound},
		{storage.CodeBucketNotFound, KindMisconfigured},
		{storage.CodeProjectNotFound, KindMisconfigured},
		{storage.CodeInvalidArgument, KindMisconfigured},
		{storage.CodeQuotaExceeded, KindServiceUnavailable},
		{storage.CodeDownloadSizeExceeded, KindServiceUnavailable},
		{storage.CodeUnauthenticated, KindNotAuthenticated},
		{storage.CodeUnauthorized, KindUnauthorized},
		{storage.CodeRetryLimitExceeded, KindNetworkUnavailable},
		{storage.CodeCancelled, KindCancelled},
		{storage.CodeNonMatchingChecksum, KindUnknown},
		{storage.CodeUnknown, KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.code.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, KindForCode(tt.code))
		})
	}
}

// Backend vendors introduce new codes; the mapping must absorb anything.
func TestKindForCodeIsTotal(t *testing.T) {
	for code := storage.Code(-5); code < 50; code++ {
		assert.NotPanics(t, func() { KindForCode(code) })
	}
	assert.Equal(t, KindUnknown, KindForCode(storage.Code(9999)))
}

func TestKindOfAndIsKind(t *testing.T) {
	err := newError(KindItemNotFound, "gone", nil)
	assert.Equal(t, KindItemNotFound, KindOf(err))
	assert.True(t, IsKind(err, KindItemNotFound))
	assert.False(t, IsKind(err, KindCancelled))

	wrapped := fmt.Errorf("outer: %w", err)
	assert.Equal(t, KindItemNotFound, KindOf(wrapped))

	assert.Equal(t, KindUnknown, KindOf(errors.New("foreign")))
	assert.False(t, IsKind(nil, KindUnknown))
}

func TestMapBackendError(t *testing.T) {
	cause := storage.NewError(storage.CodeUnauthenticated, "bad credentials", nil)
	mapped := mapBackendError("upload failed", cause)

	assert.Equal(t, KindNotAuthenticated, mapped.Kind)
	assert.ErrorIs(t, mapped, cause)
	assert.Contains(t, mapped.Error(), "upload failed")
}

func TestErrorString(t *testing.T) {
	assert.Equal(t, "cancelled", (&Error{Kind: KindCancelled}).Error())
	assert.Contains(t, (&Error{Kind: KindDiskIO, Detail: "rename failed"}).Error(), "rename failed")

	cause := errors.New("root")
	err := newError(KindDecryptionFailure, "", cause)
	assert.Contains(t, err.Error(), "decryption_failure")
	assert.ErrorIs(t, err, cause)
}
