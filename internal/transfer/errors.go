package transfer

import (
	"errors"
	"fmt"

	"github.com/blobcourier/blobcourier/internal/storage"
)

// Kind is the stable, backend-agnostic failure classification delivered to
// consumers. Nothing backend-specific leaks past the transfer boundary.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotAuthenticated
	KindUnauthorized
	KindItemNotFound
	KindCancelled
	KindNetworkUnavailable
	KindServiceUnavailable
	KindDiskIO
	KindDecryptionFailure
	KindMisconfigured
	KindNoData
)

// String returns a human-readable kind name.
func (k Kind) String() string {
	switch k {
	case KindNotAuthenticated:
		return "not_authenticated"
	case KindUnauthorized:
		return "unauthorized"
	case KindItemNotFound:
		return "item_not_found"
	case KindCancelled:
		return "cancelled"
	case KindNetworkUnavailable:
		return "network_unavailable"
	case KindServiceUnavailable:
		return "service_unavailable"
	case KindDiskIO:
		return "disk_io"
	case KindDecryptionFailure:
		return "decryption_failure"
	case KindMisconfigured:
		return "misconfigured"
	case KindNoData:
		return "no_data"
	default:
		return "unknown"
	}
}

// Error is a terminal transfer failure.
type Error struct {
	Kind   Kind
	Detail string
	Err    error
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Detail != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.Err)
	case e.Detail != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return e.Kind.String()
	}
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, detail string, err error) *Error {
	return &Error{Kind: kind, Detail: detail, Err: err}
}

// KindOf extracts the taxonomy kind from an error. Errors that did not
// originate here report KindUnknown; nil reports KindUnknown as well.
func KindOf(err error) Kind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given taxonomy kind.
func IsKind(err error, kind Kind) bool {
	var te *Error
	return errors.As(err, &te) && te.Kind == kind
}

// KindForCode maps a backend status code into the taxonomy. The mapping is
// total over the backend's code space: backend vendors introduce new codes,
// and an unrecognized one classifies as KindUnknown rather than failing.
func KindForCode(code storage.Code) Kind {
	switch code {
	case storage.CodeObjectNotFound:
		return KindItemNotFound
	case storage.CodeBucketNotFound, storage.CodeProjectNotFound, storage.CodeInvalidArgument:
		return KindMisconfigured
	case storage.CodeQuotaExceeded, storage.CodeDownloadSizeExceeded:
		return KindServiceUnavailable
	case storage.CodeUnauthenticated:
		return KindNotAuthenticated
	case storage.CodeUnauthorized:
		return KindUnauthorized
	case storage.CodeRetryLimitExceeded:
		return KindNetworkUnavailable
	case storage.CodeCancelled:
		return KindCancelled
	default:
		return KindUnknown
	}
}

// mapBackendError normalizes a backend failure at the point it crosses into
// the transfer core.
func mapBackendError(detail string, err error) *Error {
	return newError(KindForCode(storage.CodeOf(err)), detail, err)
}
