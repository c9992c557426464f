package document

import (
	"testing"
	"time"

	"github.com/kartikgopal01/coedit/internal/domain"
	"github.com/stretchr/testify/require"
)

func tp(t time.Time) *time.Time { return &t }

func TestNormalizeLegacy(t *testing.T) {
	at := time.Date(2024, 3, 1, 10, 0, 0, 123456789, time.UTC)
	v, err := Normalize(StoredVersion{
		VersionID:       "v-legacy",
		DocumentID:      "d1",
		FileKey:         "documents/u1/old.json",
		CreatedByUserID: "u1",
		CreatedAt:       tp(at),
		FileName:        "old.json",
		FileType:        "application/json",
		Size:            42,
		CommitMessage:   "initial",
	})
	require.NoError(t, err)
	require.Equal(t, GenerationLegacy, v.Generation)
	require.Equal(t, "documents/u1/old.json", v.BlobKey)
	require.Equal(t, "u1", v.AuthorID)
	require.Equal(t, at.Truncate(time.Millisecond), v.CreatedAt)
	require.Equal(t, int64(42), v.SizeBytes)
	require.Equal(t, "old.json", v.FileName)
}

func TestNormalizeCurrent(t *testing.T) {
	v, err := Normalize(StoredVersion{
		VersionID: "v-new",
		S3Key:     "snapshots/d1/x.json",
		CreatedBy: "u2",
		Timestamp: "2024-03-02T08:30:00.500Z",
	})
	require.NoError(t, err)
	require.Equal(t, GenerationCurrent, v.Generation)
	require.Equal(t, "snapshots/d1/x.json", v.BlobKey)
	require.Equal(t, "u2", v.AuthorID)
	require.Equal(t, "application/json", v.ContentType)
	require.Equal(t, int64(1709368200500), v.CreatedAt.UnixMilli())
}

func TestNormalizePrefersCurrentNames(t *testing.T) {
	legacyAt := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	v, err := Normalize(StoredVersion{
		VersionID:       "v-mixed",
		BlobKey:         "documents/u3/new.json",
		S3Key:           "snapshots/old-s3.json",
		FileKey:         "legacy/file.json",
		CreatedBy:       "u3",
		CreatedByUserID: "u-legacy",
		Timestamp:       "2024-05-05T05:05:05.000Z",
		CreatedAt:       tp(legacyAt),
	})
	require.NoError(t, err)
	require.Equal(t, "documents/u3/new.json", v.BlobKey)
	require.Equal(t, "u3", v.AuthorID)
	require.Equal(t, 2024, v.CreatedAt.Year())

	// a current record whose key was only written under the legacy name
	v, err = Normalize(StoredVersion{VersionID: "v-half", CreatedBy: "u4", FileKey: "legacy/only.json", CreatedAt: tp(legacyAt)})
	require.NoError(t, err)
	require.Equal(t, "legacy/only.json", v.BlobKey)
	require.Equal(t, legacyAt, v.CreatedAt)
}

func TestNormalizeUnparsableTimestampFallsBack(t *testing.T) {
	at := time.Date(2023, 7, 7, 7, 7, 7, 0, time.UTC)
	v, err := Normalize(StoredVersion{VersionID: "v", BlobKey: "k", Timestamp: "yesterday", CreatedAt: tp(at)})
	require.NoError(t, err)
	require.Equal(t, at, v.CreatedAt)
}

func TestNormalizeCorrupt(t *testing.T) {
	_, err := Normalize(StoredVersion{VersionID: "v", CreatedBy: "u", Timestamp: "2024-01-01T00:00:00.000Z"})
	require.ErrorIs(t, err, domain.ErrCorruptSnapshot)

	_, err = Normalize(StoredVersion{VersionID: "v", BlobKey: "k"})
	require.ErrorIs(t, err, domain.ErrCorruptSnapshot)

	_, err = Normalize(StoredVersion{VersionID: "v", BlobKey: "k", Timestamp: "not-a-time"})
	require.ErrorIs(t, err, domain.ErrCorruptSnapshot)
}

func TestResolvedMillis(t *testing.T) {
	at := time.UnixMilli(1700000000123).UTC()
	ms, err := ResolvedMillis(StoredVersion{CreatedAt: tp(at)})
	require.NoError(t, err)
	require.Equal(t, int64(1700000000123), ms)

	ms, err = ResolvedMillis(StoredVersion{Timestamp: FormatTimestamp(at)})
	require.NoError(t, err)
	require.Equal(t, int64(1700000000123), ms)
}

func TestSortHistoryMixedGenerations(t *testing.T) {
	t1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Minute)
	t3 := t2.Add(time.Minute)

	stored := []StoredVersion{
		{VersionID: "b", BlobKey: "k2", Timestamp: FormatTimestamp(t2)},
		{VersionID: "a", FileKey: "k1", CreatedAt: tp(t1)},
		{VersionID: "c", FileKey: "k3", CreatedAt: tp(t3)},
		{VersionID: "a2", S3Key: "k2b", Timestamp: FormatTimestamp(t2)},
	}
	var vs []Version
	for _, s := range stored {
		v, err := Normalize(s)
		require.NoError(t, err)
		vs = append(vs, v)
	}
	SortHistory(vs)

	ids := make([]string, 0, len(vs))
	for _, v := range vs {
		ids = append(ids, v.VersionID)
	}
	require.Equal(t, []string{"c", "a2", "b", "a"}, ids)
}

func TestNewStoredVersionIsCurrent(t *testing.T) {
	at := time.Date(2024, 2, 2, 2, 2, 2, 2_000_000, time.UTC)
	s := NewStoredVersion(Version{VersionID: "v", DocumentID: "d", BlobKey: "documents/u/v.json", AuthorID: "u", CreatedAt: at, SizeBytes: 10})
	require.Equal(t, GenerationCurrent, s.Generation())
	require.Equal(t, "2024-02-02T02:02:02.002Z", s.Timestamp)
	require.Empty(t, s.S3Key)
	require.Empty(t, s.FileKey)
	require.Nil(t, s.CreatedAt)

	v, err := Normalize(s)
	require.NoError(t, err)
	require.Equal(t, at, v.CreatedAt)
	require.Equal(t, "application/json", v.ContentType)
}

func TestDocumentAccess(t *testing.T) {
	d := &Document{OwnerID: "o"}
	require.True(t, d.CanAccess("o"))
	require.False(t, d.CanAccess("c"))
	require.False(t, d.CanAccess(""))

	require.False(t, d.AddCollaborator("o"))
	require.True(t, d.AddCollaborator("c"))
	require.False(t, d.AddCollaborator("c"))
	require.Equal(t, []string{"c"}, d.CollaboratorIDs)
	require.True(t, d.CanAccess("c"))
}
