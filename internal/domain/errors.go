package domain

import (
	"errors"
	"net/http"
)

// Kind classifies a failure of the snapshot and version history engine.
type Kind string

const (
	KindUnauthenticated                Kind = "unauthenticated"
	KindForbidden                      Kind = "forbidden"
	KindNotFound                       Kind = "not_found"
	KindDocumentNotFound               Kind = "document_not_found"
	KindVersionNotFound                Kind = "version_not_found"
	KindValidation                     Kind = "validation_failed"
	KindMalformedContent               Kind = "malformed_content"
	KindCorruptSnapshot                Kind = "corrupt_snapshot"
	KindStorageUnavailable             Kind = "storage_unavailable"
	KindStorageDenied                  Kind = "storage_denied"
	KindKeyNotFound                    Kind = "key_not_found"
	KindSnapshotStorageFailed          Kind = "snapshot_storage_failed"
	KindSnapshotMetadataFailed         Kind = "snapshot_metadata_failed"
	KindLiveChannelUnavailable         Kind = "live_channel_unavailable"
	KindRollbackAppliedButNotCommitted Kind = "rollback_applied_but_not_committed"
	KindInternal                       Kind = "internal"
)

// matches reports whether an error of kind k satisfies a sentinel of kind target.
// Document and version lookups are both a NotFound.
func (k Kind) matches(target Kind) bool {
	if k == target {
		return true
	}
	return target == KindNotFound && (k == KindDocumentNotFound || k == KindVersionNotFound)
}

var messages = map[Kind]string{
	KindUnauthenticated:                "unauthenticated",
	KindForbidden:                      "forbidden",
	KindNotFound:                       "not found",
	KindDocumentNotFound:               "document not found",
	KindVersionNotFound:                "version not found",
	KindValidation:                     "validation failed",
	KindMalformedContent:               "malformed content",
	KindCorruptSnapshot:                "corrupt snapshot",
	KindStorageUnavailable:             "storage unavailable",
	KindStorageDenied:                  "storage denied",
	KindKeyNotFound:                    "key not found",
	KindSnapshotStorageFailed:          "snapshot storage failed",
	KindSnapshotMetadataFailed:         "snapshot metadata failed",
	KindLiveChannelUnavailable:         "live channel unavailable",
	KindRollbackAppliedButNotCommitted: "rollback applied but not committed",
	KindInternal:                       "internal error",
}

// Message is the human-readable text for k, safe to show to API clients.
func (k Kind) Message() string {
	if m, ok := messages[k]; ok {
		return m
	}
	return string(k)
}

// Error carries a Kind, the operation that produced it and an optional cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Kind.Message()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by kind, so sentinels work with errors.Is even
// when the error was built with an Op or cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind.matches(t.Kind)
}

// Sentinel errors - use with errors.Is()
var (
	ErrUnauthenticated                = &Error{Kind: KindUnauthenticated}
	ErrForbidden                      = &Error{Kind: KindForbidden}
	ErrNotFound                       = &Error{Kind: KindNotFound}
	ErrDocumentNotFound               = &Error{Kind: KindDocumentNotFound}
	ErrVersionNotFound                = &Error{Kind: KindVersionNotFound}
	ErrValidation                     = &Error{Kind: KindValidation}
	ErrMalformedContent               = &Error{Kind: KindMalformedContent}
	ErrCorruptSnapshot                = &Error{Kind: KindCorruptSnapshot}
	ErrStorageUnavailable             = &Error{Kind: KindStorageUnavailable}
	ErrStorageDenied                  = &Error{Kind: KindStorageDenied}
	ErrKeyNotFound                    = &Error{Kind: KindKeyNotFound}
	ErrSnapshotStorageFailed          = &Error{Kind: KindSnapshotStorageFailed}
	ErrSnapshotMetadataFailed         = &Error{Kind: KindSnapshotMetadataFailed}
	ErrLiveChannelUnavailable         = &Error{Kind: KindLiveChannelUnavailable}
	ErrRollbackAppliedButNotCommitted = &Error{Kind: KindRollbackAppliedButNotCommitted}
)

// E builds an *Error of the given kind for op, wrapping err (which may be nil).
func E(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the outermost *Error in err's chain, or
// KindInternal when there is none.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// StatusCode maps an error to the HTTP status the API responds with.
func StatusCode(err error) int {
	switch KindOf(err) {
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden, KindStorageDenied:
		return http.StatusForbidden
	case KindNotFound, KindDocumentNotFound, KindVersionNotFound, KindKeyNotFound:
		return http.StatusNotFound
	case KindValidation:
		return http.StatusBadRequest
	case KindMalformedContent:
		return http.StatusUnprocessableEntity
	case KindStorageUnavailable, KindSnapshotStorageFailed, KindLiveChannelUnavailable:
		return http.StatusServiceUnavailable
	case KindCorruptSnapshot:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
