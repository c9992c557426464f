package service

import (
	"context"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/kartikgopal01/coedit/internal/document"
	"github.com/kartikgopal01/coedit/internal/document/repository"
	"github.com/kartikgopal01/coedit/internal/live"
	"github.com/kartikgopal01/coedit/internal/storage"
	"github.com/stretchr/testify/require"
)

// faultyBlobs fails Put on demand and counts calls.
type faultyBlobs struct {
	storage.BlobStore
	putErr error

	mu   sync.Mutex
	puts int
}

func (f *faultyBlobs) Put(ctx context.Context, key string, data []byte, contentType string) error {
	f.mu.Lock()
	f.puts++
	f.mu.Unlock()
	if f.putErr != nil {
		return f.putErr
	}
	return f.BlobStore.Put(ctx, key, data, contentType)
}

// faultyRepo fails version writes and timestamp touches on demand.
type faultyRepo struct {
	*repository.MemoryRepo
	createVersionErr error
	touchErr         error

	mu                 sync.Mutex
	createVersionCalls int
}

func (f *faultyRepo) CreateVersion(ctx context.Context, documentID string, v document.StoredVersion) error {
	f.mu.Lock()
	f.createVersionCalls++
	f.mu.Unlock()
	if f.createVersionErr != nil {
		return f.createVersionErr
	}
	return f.MemoryRepo.CreateVersion(ctx, documentID, v)
}

func (f *faultyRepo) UpdateDocumentTimestamp(ctx context.Context, documentID string, at time.Time) error {
	if f.touchErr != nil {
		return f.touchErr
	}
	return f.MemoryRepo.UpdateDocumentTimestamp(ctx, documentID, at)
}

func (f *faultyBlobs) putCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.puts
}

func (f *faultyRepo) versionCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.createVersionCalls
}

// stepClock advances one second per reading.
type stepClock struct {
	mu  sync.Mutex
	cur time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur = c.cur.Add(time.Second)
	return c.cur
}

type fixture struct {
	repo      *faultyRepo
	mem       *storage.MemoryStorage
	blobs     *faultyBlobs
	live      *live.MemoryChannel
	snapshots *Snapshots
	rollbacks *Rollbacks
	documents *Documents

	mu      sync.Mutex
	effects []BestEffort
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	mem := storage.NewMemoryStorage("test-secret")
	srv := httptest.NewServer(mem)
	t.Cleanup(srv.Close)
	mem.SetBaseURL(srv.URL)

	f := &fixture{
		repo:  &faultyRepo{MemoryRepo: repository.NewMemoryRepo()},
		mem:   mem,
		blobs: &faultyBlobs{BlobStore: mem},
		live:  live.NewMemoryChannel(),
	}
	clock := &stepClock{cur: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	base := []Option{
		WithHTTPClient(srv.Client()),
		WithClock(clock.Now),
		WithBestEffortHook(func(b BestEffort) {
			f.mu.Lock()
			f.effects = append(f.effects, b)
			f.mu.Unlock()
		}),
	}
	opts = append(base, opts...)
	f.snapshots = NewSnapshots(f.repo, f.blobs, opts...)
	f.rollbacks = NewRollbacks(f.snapshots, f.live)
	f.documents = NewDocuments(f.repo, f.blobs, opts...)
	return f
}

// newDoc creates a document owned by owner with the given collaborators.
func (f *fixture) newDoc(t *testing.T, owner string, collaborators ...string) *document.Document {
	t.Helper()
	ctx := context.Background()
	d, err := f.documents.Create(ctx, owner, CreateRequest{Title: "notes"})
	require.NoError(t, err)
	for _, c := range collaborators {
		d, err = f.documents.AddCollaborator(ctx, owner, d.ID, c)
		require.NoError(t, err)
	}
	return d
}

func (f *fixture) bestEfforts() []BestEffort {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]BestEffort, len(f.effects))
	copy(out, f.effects)
	return out
}

func versionIDs(vs []document.Version) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.VersionID
	}
	return out
}
