package repository

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func TestMongoRepo(t *testing.T) {
	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		t.Skip("MONGODB_URI not set, skipping Mongo tests")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })

	db := client.Database(fmt.Sprintf("coedit_test_%d", time.Now().UnixNano()))
	t.Cleanup(func() { _ = db.Drop(context.Background()) })

	r, err := NewMongoRepo(ctx, db)
	require.NoError(t, err)
	require.NoError(t, r.Ping(ctx))
	exerciseRepository(t, r)
}

func TestFirestoreRepo(t *testing.T) {
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set, skipping Firestore tests")
	}
	project := os.Getenv("FIRESTORE_PROJECT")
	if project == "" {
		project = "coedit-test"
	}
	client, err := firestore.NewClient(context.Background(), project)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	r := NewFirestoreRepo(client)
	require.NoError(t, r.Ping(context.Background()))
	exerciseRepository(t, r)
}

func TestAsTime(t *testing.T) {
	at := time.Date(2024, 6, 1, 12, 0, 0, 500_000_000, time.UTC)

	got, ok := asTime(at)
	require.True(t, ok)
	require.Equal(t, at, got)

	got, ok = asTime("2024-06-01T12:00:00.500Z")
	require.True(t, ok)
	require.Equal(t, at, got)

	got, ok = asTime(map[string]interface{}{"_seconds": float64(at.Unix()), "_nanoseconds": float64(500_000_000)})
	require.True(t, ok)
	require.Equal(t, at, got)

	got, ok = asTime(map[string]interface{}{"seconds": at.Unix(), "nanos": int64(500_000_000)})
	require.True(t, ok)
	require.Equal(t, at, got)

	_, ok = asTime("soon")
	require.False(t, ok)
	_, ok = asTime(nil)
	require.False(t, ok)
}
