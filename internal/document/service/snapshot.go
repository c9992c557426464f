package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/kartikgopal01/coedit/internal/delta"
	"github.com/kartikgopal01/coedit/internal/document"
	"github.com/kartikgopal01/coedit/internal/document/repository"
	"github.com/kartikgopal01/coedit/internal/domain"
	"github.com/kartikgopal01/coedit/internal/storage"
	"github.com/kartikgopal01/coedit/pkg/metrics"
)

// MaxCommitMessageLength bounds commit messages.
const MaxCommitMessageLength = 500

// CommitRequest asks for the given content to become a new version.
type CommitRequest struct {
	DocumentID    string
	CallerID      string
	Content       delta.Delta
	CommitMessage string
}

func (r CommitRequest) validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.CommitMessage, validation.Length(0, MaxCommitMessageLength)),
	)
}

// check rejects r before anything is written: a bad message is a
// validation failure, a shapeless op is malformed content.
func (r CommitRequest) check(op string) error {
	if err := r.validate(); err != nil {
		return domain.E(domain.KindValidation, op, err)
	}
	if err := delta.Validate(r.Content); err != nil {
		return wrap(op, err)
	}
	return nil
}

// Snapshot is a version together with its materialized content.
type Snapshot struct {
	Version document.Version
	Content delta.Delta
}

// Comparison holds two versions as plain text for an external diff.
type Comparison struct {
	From     document.Version
	To       document.Version
	FromText string
	ToText   string
}

// Snapshots commits document content as immutable blobs and reads it back.
type Snapshots struct {
	repo  repository.Repository
	blobs storage.BlobStore
	opts  options
}

func NewSnapshots(repo repository.Repository, blobs storage.BlobStore, opts ...Option) *Snapshots {
	return &Snapshots{repo: repo, blobs: blobs, opts: buildOptions(opts)}
}

// Commit writes the blob first and the metadata record second, so a version
// record never points at a missing blob. A failed metadata write leaves an
// orphaned blob behind; it is logged and counted.
func (s *Snapshots) Commit(ctx context.Context, req CommitRequest) (v document.Version, err error) {
	const op = "service.Commit"
	defer func() { metrics.SnapshotCommits.WithLabelValues(result(err)).Inc() }()

	doc, err := authorize(ctx, s.repo, op, req.CallerID, req.DocumentID)
	if err != nil {
		return document.Version{}, err
	}
	if err := req.check(op); err != nil {
		return document.Version{}, err
	}
	body, err := delta.Encode(req.Content)
	if err != nil {
		return document.Version{}, err
	}

	versionID := s.opts.newID()
	key := storage.SnapshotKey(s.opts.keyPrefix, req.CallerID, versionID)
	if err := s.blobs.Put(ctx, key, body, delta.ContentType); err != nil {
		return document.Version{}, domain.E(domain.KindSnapshotStorageFailed, op, err)
	}

	v = document.Version{
		VersionID:     versionID,
		DocumentID:    doc.ID,
		BlobKey:       key,
		AuthorID:      req.CallerID,
		CommitMessage: req.CommitMessage,
		CreatedAt:     s.opts.now().UTC().Truncate(time.Millisecond),
		ContentType:   delta.ContentType,
		SizeBytes:     int64(len(body)),
		Generation:    document.GenerationCurrent,
	}
	if err := s.repo.CreateVersion(ctx, doc.ID, document.NewStoredVersion(v)); err != nil {
		metrics.OrphanedBlobs.Inc()
		s.opts.log.Error("snapshot metadata write failed, blob orphaned",
			"document_id", doc.ID, "version_id", versionID, "blob_key", key, "error", err)
		return document.Version{}, domain.E(domain.KindSnapshotMetadataFailed, op, err)
	}

	runBestEffort(&s.opts, "update_document_timestamp", doc.ID, func() error {
		return s.repo.UpdateDocumentTimestamp(ctx, doc.ID, v.CreatedAt)
	}, "version_id", versionID)

	s.opts.log.Info("snapshot committed", "document_id", doc.ID, "version_id", versionID, "size_bytes", v.SizeBytes)
	return v, nil
}

// Materialize returns the content of versionID of documentID.
func (s *Snapshots) Materialize(ctx context.Context, callerID, documentID, versionID string) (Snapshot, error) {
	const op = "service.Materialize"
	if _, err := authorize(ctx, s.repo, op, callerID, documentID); err != nil {
		return Snapshot{}, err
	}
	rec, err := s.repo.GetVersion(ctx, documentID, versionID)
	if err != nil {
		return Snapshot{}, wrap(op, err)
	}
	if rec.DocumentID == "" {
		rec.DocumentID = documentID
	}
	return s.materialize(ctx, op, rec)
}

// MaterializeByID resolves a version by its global id, then checks access to
// the document it belongs to.
func (s *Snapshots) MaterializeByID(ctx context.Context, callerID, versionID string) (Snapshot, error) {
	const op = "service.MaterializeByID"
	if callerID == "" {
		return Snapshot{}, domain.E(domain.KindUnauthenticated, op, nil)
	}
	rec, err := s.repo.FindVersion(ctx, versionID)
	if err != nil {
		return Snapshot{}, wrap(op, err)
	}
	if _, err := authorize(ctx, s.repo, op, callerID, rec.DocumentID); err != nil {
		return Snapshot{}, err
	}
	return s.materialize(ctx, op, rec)
}

func (s *Snapshots) materialize(ctx context.Context, op string, rec document.StoredVersion) (Snapshot, error) {
	v, err := document.Normalize(rec)
	if err != nil {
		return Snapshot{}, wrap(op, err)
	}
	content, err := s.fetch(ctx, op, v.BlobKey)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Version: v, Content: content}, nil
}

// fetch downloads and decodes a snapshot blob through a signed URL.
func (s *Snapshots) fetch(ctx context.Context, op, key string) (delta.Delta, error) {
	url, err := s.blobs.SignedGetURL(ctx, key, s.opts.urlTTL)
	if err != nil {
		return delta.Delta{}, wrap(op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return delta.Delta{}, domain.E(domain.KindInternal, op, err)
	}
	resp, err := s.opts.httpClient.Do(req)
	if err != nil {
		return delta.Delta{}, domain.E(domain.KindStorageUnavailable, op, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return delta.Delta{}, domain.E(domain.KindCorruptSnapshot, op,
			domain.E(domain.KindKeyNotFound, op, fmt.Errorf("blob %s is missing", key)))
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return delta.Delta{}, domain.E(domain.KindStorageDenied, op, fmt.Errorf("blob %s: status %d", key, resp.StatusCode))
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return delta.Delta{}, domain.E(domain.KindStorageUnavailable, op, fmt.Errorf("blob %s: status %d", key, resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return delta.Delta{}, domain.E(domain.KindStorageUnavailable, op, err)
	}
	d, err := delta.Decode(body)
	if err != nil {
		return delta.Delta{}, domain.E(domain.KindCorruptSnapshot, op, err)
	}
	return d, nil
}

// ListHistory returns the canonical versions of documentID, newest first.
// Records that cannot be normalized are skipped and logged.
func (s *Snapshots) ListHistory(ctx context.Context, callerID, documentID string) ([]document.Version, error) {
	const op = "service.ListHistory"
	if _, err := authorize(ctx, s.repo, op, callerID, documentID); err != nil {
		return nil, err
	}
	recs, err := s.repo.ListVersions(ctx, documentID)
	if err != nil {
		return nil, wrap(op, err)
	}
	out := make([]document.Version, 0, len(recs))
	for _, rec := range recs {
		v, err := document.Normalize(rec)
		if err != nil {
			s.opts.log.Warn("skipping unreadable version record", "document_id", documentID, "version_id", rec.VersionID, "error", err)
			continue
		}
		if v.DocumentID == "" {
			v.DocumentID = documentID
		}
		out = append(out, v)
	}
	document.SortHistory(out)
	return out, nil
}

// PreviewText returns versionID as plain text.
func (s *Snapshots) PreviewText(ctx context.Context, callerID, documentID, versionID string) (string, error) {
	snap, err := s.Materialize(ctx, callerID, documentID, versionID)
	if err != nil {
		return "", err
	}
	return snap.Content.PlainText(), nil
}

// Compare materializes two versions of the same document as plain text.
func (s *Snapshots) Compare(ctx context.Context, callerID, documentID, fromID, toID string) (Comparison, error) {
	from, err := s.Materialize(ctx, callerID, documentID, fromID)
	if err != nil {
		return Comparison{}, err
	}
	to, err := s.Materialize(ctx, callerID, documentID, toID)
	if err != nil {
		return Comparison{}, err
	}
	return Comparison{
		From:     from.Version,
		To:       to.Version,
		FromText: from.Content.PlainText(),
		ToText:   to.Content.PlainText(),
	}, nil
}

func result(err error) string {
	if err != nil {
		return metrics.ResultError
	}
	return metrics.ResultOK
}
