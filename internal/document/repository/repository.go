package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/kartikgopal01/coedit/internal/document"
)

// Repository is the document and version metadata store. Version records are
// append-only: there is no update and no per-version delete.
type Repository interface {
	// CreateDocument stores d, assigning ID and timestamps when unset.
	CreateDocument(ctx context.Context, d *document.Document) error
	GetDocument(ctx context.Context, id string) (*document.Document, error)
	// ListDocumentsForUser returns documents userID owns or collaborates on,
	// most recently updated first.
	ListDocumentsForUser(ctx context.Context, userID string) ([]*document.Document, error)
	AddCollaborator(ctx context.Context, id, userID string) (*document.Document, error)
	// SetShareKeyIfEmpty stores key unless the document already has one and
	// returns the document holding whichever key won.
	SetShareKeyIfEmpty(ctx context.Context, id, key string) (*document.Document, error)
	// DeleteDocument removes the document and all of its version records.
	DeleteDocument(ctx context.Context, id string) error

	// CreateVersion inserts v under documentID; domain.ErrDocumentNotFound
	// when the document does not exist.
	CreateVersion(ctx context.Context, documentID string, v document.StoredVersion) error
	GetVersion(ctx context.Context, documentID, versionID string) (document.StoredVersion, error)
	// FindVersion looks a version up by its globally unique id.
	FindVersion(ctx context.Context, versionID string) (document.StoredVersion, error)
	// ListVersions returns every version of documentID in no particular order.
	ListVersions(ctx context.Context, documentID string) ([]document.StoredVersion, error)
	UpdateDocumentTimestamp(ctx context.Context, documentID string, at time.Time) error

	Ping(ctx context.Context) error
}

// prepareDocument fills the fields a store assigns on create.
func prepareDocument(d *document.Document, now time.Time) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.CollaboratorIDs == nil {
		d.CollaboratorIDs = []string{}
	}
	now = now.UTC().Truncate(time.Millisecond)
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	if d.UpdatedAt.IsZero() {
		d.UpdatedAt = d.CreatedAt
	}
}

func cloneDocument(d *document.Document) *document.Document {
	cp := *d
	cp.CollaboratorIDs = append([]string{}, d.CollaboratorIDs...)
	return &cp
}
