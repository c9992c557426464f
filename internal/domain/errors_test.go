package domain

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorIsMatchesKind(t *testing.T) {
	err := E(KindSnapshotStorageFailed, "commit", E(KindStorageUnavailable, "put", errors.New("dial tcp: refused")))

	require.ErrorIs(t, err, ErrSnapshotStorageFailed)
	require.ErrorIs(t, err, ErrStorageUnavailable)
	require.NotErrorIs(t, err, ErrStorageDenied)
	require.Equal(t, KindSnapshotStorageFailed, KindOf(err))
	require.Contains(t, err.Error(), "commit: snapshot storage failed")
	require.Contains(t, err.Error(), "dial tcp: refused")
}

func TestNotFoundFamily(t *testing.T) {
	require.ErrorIs(t, ErrDocumentNotFound, ErrNotFound)
	require.ErrorIs(t, E(KindVersionNotFound, "get", nil), ErrNotFound)
	require.NotErrorIs(t, ErrNotFound, ErrDocumentNotFound)
	require.NotErrorIs(t, ErrKeyNotFound, ErrNotFound)
}

func TestKindOfWrapped(t *testing.T) {
	err := fmt.Errorf("handler: %w", ErrForbidden)
	require.Equal(t, KindForbidden, KindOf(err))
	require.Equal(t, KindInternal, KindOf(errors.New("boom")))
}

func TestStatusCode(t *testing.T) {
	cases := map[error]int{
		ErrUnauthenticated:                http.StatusUnauthorized,
		ErrForbidden:                      http.StatusForbidden,
		ErrDocumentNotFound:               http.StatusNotFound,
		ErrValidation:                     http.StatusBadRequest,
		ErrMalformedContent:               http.StatusUnprocessableEntity,
		ErrStorageUnavailable:             http.StatusServiceUnavailable,
		ErrCorruptSnapshot:                http.StatusBadGateway,
		ErrSnapshotMetadataFailed:         http.StatusInternalServerError,
		ErrRollbackAppliedButNotCommitted: http.StatusInternalServerError,
		errors.New("boom"):                http.StatusInternalServerError,
	}
	for err, want := range cases {
		require.Equal(t, want, StatusCode(err), err.Error())
	}
}
