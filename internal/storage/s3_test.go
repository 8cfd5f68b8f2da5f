package storage

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
)

func TestClassifyS3Error(t *testing.T) {
	apiErr := func(code string) error {
		return fmt.Errorf("request failed: %w", &smithy.GenericAPIError{Code: code, Message: code})
	}

	tests := []struct {
		name string
		err  error
		want Code
	}{
		{"nil", nil, CodeUnknown},
		{"context cancelled", context.Canceled, CodeCancelled},
		{"no such key", apiErr("NoSuchKey"), CodeObjectNotFound},
		{"not found", apiErr("NotFound"), CodeObjectNotFound},
		{"no such bucket", apiErr("NoSuchBucket"), CodeBucketNotFound},
		{"access denied", apiErr("AccessDenied"), CodeUnauthorized},
		{"bad access key", apiErr("InvalidAccessKeyId"), CodeUnauthenticated},
		{"expired token", apiErr("ExpiredToken"), CodeUnauthenticated},
		{"slow down", apiErr("SlowDown"), CodeQuotaExceeded},
		{"invalid argument", apiErr("InvalidArgument"), CodeInvalidArgument},
		{"bad digest", apiErr("BadDigest"), CodeNonMatchingChecksum},
		{"entity too large", apiErr("EntityTooLarge"), CodeDownloadSizeExceeded},
		{"vendor surprise", apiErr("TeapotRefusesCoffee"), CodeUnknown},
		{"dial timeout", errors.New("dial tcp 10.0.0.1:443: i/o timeout"), CodeRetryLimitExceeded},
		{"connection reset", errors.New("read: connection reset by peer"), CodeRetryLimitExceeded},
		{"plain error", errors.New("something odd"), CodeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyS3Error(tt.err))
		})
	}
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeUnknown, CodeOf(errors.New("foreign")))
	assert.Equal(t, CodeUnknown, CodeOf(nil))

	err := fmt.Errorf("wrapped: %w", NewError(CodeQuotaExceeded, "quota", nil))
	assert.Equal(t, CodeQuotaExceeded, CodeOf(err))
}

func TestErrorString(t *testing.T) {
	assert.Equal(t, "object_not_found", (&Error{Code: CodeObjectNotFound}).Error())
	assert.Contains(t, (&Error{Code: CodeUnauthorized, Message: "denied"}).Error(), "denied")

	cause := errors.New("root cause")
	wrapped := NewError(CodeUnknown, "op failed", cause)
	assert.ErrorIs(t, wrapped, cause)
}
