package document

import (
	"fmt"
	"sort"
	"time"

	"github.com/kartikgopal01/coedit/internal/delta"
	"github.com/kartikgopal01/coedit/internal/domain"
)

// Generation tags which schema a stored version record was written with.
type Generation string

const (
	GenerationLegacy  Generation = "legacy"
	GenerationCurrent Generation = "current"
)

// timestampLayout matches what browsers produce with Date.toISOString.
const timestampLayout = "2006-01-02T15:04:05.000Z"

// FormatTimestamp renders t as a UTC ISO-8601 string with millisecond precision.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// Generation classifies s. A record with any current-generation field is
// current; mixed records still fall back to legacy values field by field.
func (s StoredVersion) Generation() Generation {
	if s.BlobKey != "" || s.S3Key != "" || s.CreatedBy != "" || s.Timestamp != "" {
		return GenerationCurrent
	}
	return GenerationLegacy
}

// ResolvedTime returns the authoritative creation time of s: the ISO
// timestamp when present, otherwise the structured createdAt.
func ResolvedTime(s StoredVersion) (time.Time, error) {
	if s.Timestamp != "" {
		t, err := time.Parse(time.RFC3339Nano, s.Timestamp)
		if err == nil {
			return t.UTC(), nil
		}
		if s.CreatedAt == nil {
			return time.Time{}, fmt.Errorf("timestamp %q: %w", s.Timestamp, err)
		}
	}
	if s.CreatedAt != nil && !s.CreatedAt.IsZero() {
		return s.CreatedAt.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("no creation time")
}

// ResolvedMillis is ResolvedTime as epoch milliseconds.
func ResolvedMillis(s StoredVersion) (int64, error) {
	t, err := ResolvedTime(s)
	if err != nil {
		return 0, err
	}
	return t.UnixMilli(), nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// Normalize turns a stored record of either generation into the canonical
// Version. Records without a blob key or a creation time are corrupt.
func Normalize(s StoredVersion) (Version, error) {
	const op = "document.Normalize"
	key := firstNonEmpty(s.BlobKey, s.S3Key, s.FileKey)
	if key == "" {
		return Version{}, domain.E(domain.KindCorruptSnapshot, op, fmt.Errorf("version %s has no blob key", s.VersionID))
	}
	created, err := ResolvedTime(s)
	if err != nil {
		return Version{}, domain.E(domain.KindCorruptSnapshot, op, fmt.Errorf("version %s: %w", s.VersionID, err))
	}
	return Version{
		VersionID:     s.VersionID,
		DocumentID:    s.DocumentID,
		BlobKey:       key,
		AuthorID:      firstNonEmpty(s.CreatedBy, s.CreatedByUserID),
		CommitMessage: s.CommitMessage,
		CreatedAt:     created.Truncate(time.Millisecond),
		ContentType:   firstNonEmpty(s.FileType, delta.ContentType),
		SizeBytes:     s.Size,
		FileName:      s.FileName,
		Generation:    s.Generation(),
	}, nil
}

// SortHistory orders versions newest first; equal times fall back to
// ascending VersionID so the order is stable across reads.
func SortHistory(vs []Version) {
	sort.SliceStable(vs, func(i, j int) bool {
		mi, mj := vs[i].CreatedAt.UnixMilli(), vs[j].CreatedAt.UnixMilli()
		if mi != mj {
			return mi > mj
		}
		return vs[i].VersionID < vs[j].VersionID
	})
}
