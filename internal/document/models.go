package document

import (
	"time"

	"github.com/kartikgopal01/coedit/internal/delta"
)

// DefaultTitle is used when a document is created without one.
const DefaultTitle = "Untitled"

// Document is the metadata record of a collaboratively edited document. Its
// live body is owned by the live channel, not by this record.
type Document struct {
	ID              string    `json:"id" bson:"_id" firestore:"-"`
	OwnerID         string    `json:"ownerId" bson:"ownerId" firestore:"ownerId"`
	CollaboratorIDs []string  `json:"collaborators" bson:"collaborators" firestore:"collaborators"`
	Title           string    `json:"title" bson:"title" firestore:"title"`
	Description     string    `json:"description,omitempty" bson:"description,omitempty" firestore:"description,omitempty"`
	ShareKey        string    `json:"shareKey,omitempty" bson:"shareKey,omitempty" firestore:"shareKey,omitempty"`
	CreatedAt       time.Time `json:"createdAt" bson:"createdAt" firestore:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt" bson:"updatedAt" firestore:"updatedAt"`
}

// CanAccess reports whether userID is the owner or a collaborator.
func (d *Document) CanAccess(userID string) bool {
	if d == nil || userID == "" {
		return false
	}
	if d.OwnerID == userID {
		return true
	}
	for _, c := range d.CollaboratorIDs {
		if c == userID {
			return true
		}
	}
	return false
}

// AddCollaborator adds userID unless it is the owner or already present,
// and reports whether the set changed.
func (d *Document) AddCollaborator(userID string) bool {
	if userID == "" || d.CanAccess(userID) {
		return false
	}
	d.CollaboratorIDs = append(d.CollaboratorIDs, userID)
	return true
}

// Version is the canonical view of a committed snapshot, whatever schema
// generation it was stored with.
type Version struct {
	VersionID     string     `json:"versionId"`
	DocumentID    string     `json:"documentId"`
	BlobKey       string     `json:"blobKey"`
	AuthorID      string     `json:"authorId"`
	CommitMessage string     `json:"commitMessage,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	ContentType   string     `json:"contentType"`
	SizeBytes     int64      `json:"sizeBytes"`
	FileName      string     `json:"fileName,omitempty"`
	Generation    Generation `json:"-"`
}

// StoredVersion is a version record as persisted. Legacy records carry
// fileKey/createdByUserId/createdAt; current records carry
// blobKey (or s3Key)/createdBy/timestamp. Read it through Normalize.
type StoredVersion struct {
	VersionID  string `json:"versionId" bson:"_id" firestore:"versionId"`
	DocumentID string `json:"documentId,omitempty" bson:"documentId" firestore:"-"`

	BlobKey   string `json:"blobKey,omitempty" bson:"blobKey,omitempty" firestore:"blobKey,omitempty"`
	S3Key     string `json:"s3Key,omitempty" bson:"s3Key,omitempty" firestore:"s3Key,omitempty"`
	CreatedBy string `json:"createdBy,omitempty" bson:"createdBy,omitempty" firestore:"createdBy,omitempty"`
	Timestamp string `json:"timestamp,omitempty" bson:"timestamp,omitempty" firestore:"timestamp,omitempty"`

	FileKey         string     `json:"fileKey,omitempty" bson:"fileKey,omitempty" firestore:"fileKey,omitempty"`
	CreatedByUserID string     `json:"createdByUserId,omitempty" bson:"createdByUserId,omitempty" firestore:"createdByUserId,omitempty"`
	CreatedAt       *time.Time `json:"createdAt,omitempty" bson:"createdAt,omitempty" firestore:"createdAt,omitempty"`

	CommitMessage string `json:"commitMessage,omitempty" bson:"commitMessage,omitempty" firestore:"commitMessage,omitempty"`
	FileName      string `json:"fileName,omitempty" bson:"fileName,omitempty" firestore:"fileName,omitempty"`
	FileType      string `json:"fileType,omitempty" bson:"fileType,omitempty" firestore:"fileType,omitempty"`
	Size          int64  `json:"size,omitempty" bson:"size,omitempty" firestore:"size,omitempty"`
}

// NewStoredVersion builds the current-generation record for v.
func NewStoredVersion(v Version) StoredVersion {
	ct := v.ContentType
	if ct == "" {
		ct = delta.ContentType
	}
	return StoredVersion{
		VersionID:     v.VersionID,
		DocumentID:    v.DocumentID,
		BlobKey:       v.BlobKey,
		CreatedBy:     v.AuthorID,
		Timestamp:     FormatTimestamp(v.CreatedAt),
		CommitMessage: v.CommitMessage,
		FileName:      v.FileName,
		FileType:      ct,
		Size:          v.SizeBytes,
	}
}
