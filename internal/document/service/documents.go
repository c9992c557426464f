package service

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/kartikgopal01/coedit/internal/document"
	"github.com/kartikgopal01/coedit/internal/document/repository"
	"github.com/kartikgopal01/coedit/internal/domain"
	"github.com/kartikgopal01/coedit/internal/storage"
)

const (
	MaxTitleLength       = 200
	MaxDescriptionLength = 2000
	MaxFileNameLength    = 255
)

// AllowedUploadTypes lists the MIME types accepted for attachments.
var AllowedUploadTypes = []string{
	"application/json",
	"text/plain",
	"text/markdown",
	"application/pdf",
	"application/rtf",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"application/msword",
	"image/png",
	"image/jpeg",
	"image/jpg",
	"image/gif",
	"image/webp",
	"image/svg+xml",
	"text/csv",
	"application/xml",
	"text/xml",
}

type CreateRequest struct {
	Title       string
	Description string
}

func (r CreateRequest) validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.Length(0, MaxTitleLength)),
		validation.Field(&r.Description, validation.Length(0, MaxDescriptionLength)),
	)
}

type UploadRequest struct {
	FileName string
	FileType string
	FileSize int64
}

// SignedURL is a time-limited URL for direct blob access.
type SignedURL struct {
	URL       string    `json:"url"`
	Key       string    `json:"fileKey"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Documents manages document metadata, collaborators and attachment URLs.
type Documents struct {
	repo  repository.Repository
	blobs storage.BlobStore
	opts  options
}

func NewDocuments(repo repository.Repository, blobs storage.BlobStore, opts ...Option) *Documents {
	return &Documents{repo: repo, blobs: blobs, opts: buildOptions(opts)}
}

func (d *Documents) Create(ctx context.Context, callerID string, req CreateRequest) (*document.Document, error) {
	const op = "service.CreateDocument"
	if callerID == "" {
		return nil, domain.E(domain.KindUnauthenticated, op, nil)
	}
	req.Title = strings.TrimSpace(req.Title)
	if err := req.validate(); err != nil {
		return nil, domain.E(domain.KindValidation, op, err)
	}
	if req.Title == "" {
		req.Title = document.DefaultTitle
	}
	doc := &document.Document{
		OwnerID:         callerID,
		CollaboratorIDs: []string{},
		Title:           req.Title,
		Description:     req.Description,
	}
	if err := d.repo.CreateDocument(ctx, doc); err != nil {
		return nil, wrap(op, err)
	}
	d.opts.log.Info("document created", "document_id", doc.ID, "owner_id", callerID)
	return doc, nil
}

func (d *Documents) Get(ctx context.Context, callerID, id string) (*document.Document, error) {
	return authorize(ctx, d.repo, "service.GetDocument", callerID, id)
}

// Authorize reports whether callerID may open documentID.
func (d *Documents) Authorize(ctx context.Context, callerID, documentID string) error {
	_, err := authorize(ctx, d.repo, "service.Authorize", callerID, documentID)
	return err
}

// List returns the documents callerID owns or collaborates on.
func (d *Documents) List(ctx context.Context, callerID string) ([]*document.Document, error) {
	const op = "service.ListDocuments"
	if callerID == "" {
		return nil, domain.E(domain.KindUnauthenticated, op, nil)
	}
	docs, err := d.repo.ListDocumentsForUser(ctx, callerID)
	if err != nil {
		return nil, wrap(op, err)
	}
	return docs, nil
}

// AddCollaborator is owner-only. Adding the owner or an existing
// collaborator is a no-op.
func (d *Documents) AddCollaborator(ctx context.Context, callerID, id, userID string) (*document.Document, error) {
	const op = "service.AddCollaborator"
	doc, err := d.ownedDocument(ctx, op, callerID, id)
	if err != nil {
		return nil, err
	}
	if err := validation.Validate(userID, validation.Required, validation.Length(1, 128)); err != nil {
		return nil, domain.E(domain.KindValidation, op, fmt.Errorf("userId: %w", err))
	}
	if doc.OwnerID == userID {
		return doc, nil
	}
	updated, err := d.repo.AddCollaborator(ctx, id, userID)
	if err != nil {
		return nil, wrap(op, err)
	}
	return updated, nil
}

// ShareKey returns the key that lets other users join id, minting it on the
// first call. Owner only.
func (d *Documents) ShareKey(ctx context.Context, callerID, id string) (string, error) {
	const op = "service.ShareKey"
	doc, err := d.ownedDocument(ctx, op, callerID, id)
	if err != nil {
		return "", err
	}
	if doc.ShareKey != "" {
		return doc.ShareKey, nil
	}
	updated, err := d.repo.SetShareKeyIfEmpty(ctx, id, d.opts.newID())
	if err != nil {
		return "", wrap(op, err)
	}
	d.opts.log.Info("share key created", "document_id", id)
	return updated.ShareKey, nil
}

// JoinWithKey adds callerID as a collaborator when key matches the
// document's share key. Users who already have access get the document back
// unchanged.
func (d *Documents) JoinWithKey(ctx context.Context, callerID, id, key string) (*document.Document, error) {
	const op = "service.JoinWithKey"
	if callerID == "" {
		return nil, domain.E(domain.KindUnauthenticated, op, nil)
	}
	if err := validation.Validate(key, validation.Required); err != nil {
		return nil, domain.E(domain.KindValidation, op, fmt.Errorf("shareKey: %w", err))
	}
	doc, err := d.repo.GetDocument(ctx, id)
	if err != nil {
		return nil, wrap(op, err)
	}
	if doc.ShareKey == "" || subtle.ConstantTimeCompare([]byte(doc.ShareKey), []byte(key)) != 1 {
		return nil, domain.E(domain.KindForbidden, op, fmt.Errorf("share key does not match"))
	}
	if doc.CanAccess(callerID) {
		return doc, nil
	}
	updated, err := d.repo.AddCollaborator(ctx, id, callerID)
	if err != nil {
		return nil, wrap(op, err)
	}
	d.opts.log.Info("collaborator joined with share key", "document_id", id, "user_id", callerID)
	return updated, nil
}

// Delete is owner-only and removes every version record. Snapshot blobs are
// removed afterwards on a best-effort basis.
func (d *Documents) Delete(ctx context.Context, callerID, id string) error {
	const op = "service.DeleteDocument"
	if _, err := d.ownedDocument(ctx, op, callerID, id); err != nil {
		return err
	}
	recs, err := d.repo.ListVersions(ctx, id)
	if err != nil {
		return wrap(op, err)
	}
	if err := d.repo.DeleteDocument(ctx, id); err != nil {
		return wrap(op, err)
	}
	for _, rec := range recs {
		v, err := document.Normalize(rec)
		if err != nil {
			continue
		}
		runBestEffort(&d.opts, "delete_snapshot_blob", id, func() error {
			return d.blobs.Delete(ctx, v.BlobKey)
		}, "version_id", v.VersionID, "blob_key", v.BlobKey)
	}
	d.opts.log.Info("document deleted", "document_id", id, "versions", len(recs))
	return nil
}

func (d *Documents) ownedDocument(ctx context.Context, op, callerID, id string) (*document.Document, error) {
	doc, err := authorize(ctx, d.repo, op, callerID, id)
	if err != nil {
		return nil, err
	}
	if doc.OwnerID != callerID {
		return nil, domain.E(domain.KindForbidden, op, fmt.Errorf("only the owner may do this"))
	}
	return doc, nil
}

// SignUpload returns a signed PUT URL for an attachment in the caller's
// partition.
func (d *Documents) SignUpload(ctx context.Context, callerID string, req UploadRequest) (SignedURL, error) {
	const op = "service.SignUpload"
	if callerID == "" {
		return SignedURL{}, domain.E(domain.KindUnauthenticated, op, nil)
	}
	allowed := make([]interface{}, len(AllowedUploadTypes))
	for i, t := range AllowedUploadTypes {
		allowed[i] = t
	}
	err := validation.ValidateStruct(&req,
		validation.Field(&req.FileName, validation.Required, validation.Length(1, MaxFileNameLength)),
		validation.Field(&req.FileType, validation.Required, validation.In(allowed...)),
		validation.Field(&req.FileSize, validation.Required, validation.Min(int64(1)), validation.Max(d.opts.maxUploadBytes)),
	)
	if err != nil {
		return SignedURL{}, domain.E(domain.KindValidation, op, err)
	}

	now := d.opts.now()
	key := storage.UploadKey(d.opts.keyPrefix, callerID, strconv.FormatInt(now.UnixMilli(), 10), req.FileName)
	url, err := d.blobs.SignedPutURL(ctx, key, req.FileType, d.opts.urlTTL)
	if err != nil {
		return SignedURL{}, wrap(op, err)
	}
	return SignedURL{URL: url, Key: key, ExpiresAt: now.Add(d.opts.urlTTL).UTC()}, nil
}

// SignDownload returns a signed GET URL for key. The key must either live in
// the caller's partition or be the blob of a version of documentID, which
// the caller must be able to access.
func (d *Documents) SignDownload(ctx context.Context, callerID, key, documentID string) (SignedURL, error) {
	const op = "service.SignDownload"
	if callerID == "" {
		return SignedURL{}, domain.E(domain.KindUnauthenticated, op, nil)
	}
	if err := validation.Validate(key, validation.Required); err != nil {
		return SignedURL{}, domain.E(domain.KindValidation, op, fmt.Errorf("fileKey: %w", err))
	}
	if !storage.OwnedBy(d.opts.keyPrefix, callerID, key) {
		if err := d.sharedVersionBlob(ctx, op, callerID, documentID, key); err != nil {
			return SignedURL{}, err
		}
	}
	now := d.opts.now()
	url, err := d.blobs.SignedGetURL(ctx, key, d.opts.urlTTL)
	if err != nil {
		return SignedURL{}, wrap(op, err)
	}
	return SignedURL{URL: url, Key: key, ExpiresAt: now.Add(d.opts.urlTTL).UTC()}, nil
}

func (d *Documents) sharedVersionBlob(ctx context.Context, op, callerID, documentID, key string) error {
	denied := domain.E(domain.KindForbidden, op, fmt.Errorf("key %s is outside the caller's partition", key))
	if documentID == "" {
		return denied
	}
	if _, err := authorize(ctx, d.repo, op, callerID, documentID); err != nil {
		return err
	}
	recs, err := d.repo.ListVersions(ctx, documentID)
	if err != nil {
		return wrap(op, err)
	}
	for _, rec := range recs {
		if v, err := document.Normalize(rec); err == nil && v.BlobKey == key {
			return nil
		}
	}
	return denied
}
