package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/kartikgopal01/coedit/internal/domain"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestMongoErrKinds(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want *domain.Error
	}{
		{"network", mongo.CommandError{Name: "HostUnreachable", Labels: []string{"NetworkError"}}, domain.ErrStorageUnavailable},
		{"deadline", fmt.Errorf("find: %w", context.DeadlineExceeded), domain.ErrStorageUnavailable},
		{"unauthorized", mongo.CommandError{Code: 13, Name: "Unauthorized"}, domain.ErrStorageDenied},
		{"auth failed", mongo.CommandError{Code: 18, Name: "AuthenticationFailed"}, domain.ErrStorageDenied},
		{"other", errors.New("boom"), &domain.Error{Kind: domain.KindInternal}},
		{"already classified", domain.ErrDocumentNotFound, domain.ErrDocumentNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := mongoErr("mongo.Test", tc.err)
			require.ErrorIs(t, err, tc.want)
			require.Equal(t, tc.want.Kind, domain.KindOf(err))
		})
	}
	require.NoError(t, mongoErr("mongo.Test", nil))
}

func TestFirestoreErrKinds(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want domain.Kind
	}{
		{"unavailable", status.Error(codes.Unavailable, "connection refused"), domain.KindStorageUnavailable},
		{"deadline", status.Error(codes.DeadlineExceeded, "slow"), domain.KindStorageUnavailable},
		{"context deadline", fmt.Errorf("get: %w", context.DeadlineExceeded), domain.KindStorageUnavailable},
		{"permission", status.Error(codes.PermissionDenied, "no"), domain.KindStorageDenied},
		{"unauthenticated", status.Error(codes.Unauthenticated, "no token"), domain.KindStorageDenied},
		{"other", status.Error(codes.Internal, "boom"), domain.KindInternal},
		{"already classified", domain.ErrVersionNotFound, domain.KindVersionNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, domain.KindOf(firestoreErr("firestore.Test", tc.err)))
		})
	}
	require.NoError(t, firestoreErr("firestore.Test", nil))
}
