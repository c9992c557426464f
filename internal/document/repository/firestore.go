package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/kartikgopal01/coedit/internal/document"
	"github.com/kartikgopal01/coedit/internal/domain"
)

// FirestoreRepo lays records out as documents/{id} with a versions
// sub-collection documents/{id}/versions/{versionId}.
type FirestoreRepo struct {
	client     *firestore.Client
	collection string
}

func NewFirestoreRepo(client *firestore.Client) *FirestoreRepo {
	return &FirestoreRepo{client: client, collection: "documents"}
}

func (s *FirestoreRepo) docRef(id string) *firestore.DocumentRef {
	return s.client.Collection(s.collection).Doc(id)
}

func (s *FirestoreRepo) versionsCollection(docID string) *firestore.CollectionRef {
	return s.docRef(docID).Collection("versions")
}

func (s *FirestoreRepo) CreateDocument(ctx context.Context, d *document.Document) error {
	prepareDocument(d, time.Now())
	_, err := s.docRef(d.ID).Create(ctx, d)
	if status.Code(err) == codes.AlreadyExists {
		return fmt.Errorf("document %q already exists", d.ID)
	}
	return firestoreErr("firestore.CreateDocument", err)
}

func (s *FirestoreRepo) GetDocument(ctx context.Context, id string) (*document.Document, error) {
	snap, err := s.docRef(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, domain.ErrDocumentNotFound
	}
	if err != nil {
		return nil, firestoreErr("firestore.GetDocument", err)
	}
	return snapshotToDocument(snap), nil
}

// snapshotToDocument reads fields leniently: older writers stored updatedAt
// as an ISO string rather than a timestamp.
func snapshotToDocument(snap *firestore.DocumentSnapshot) *document.Document {
	data := snap.Data()
	d := &document.Document{ID: snap.Ref.ID, CollaboratorIDs: []string{}}
	d.OwnerID, _ = data["ownerId"].(string)
	d.Title, _ = data["title"].(string)
	d.Description, _ = data["description"].(string)
	d.ShareKey, _ = data["shareKey"].(string)
	if raw, ok := data["collaborators"].([]interface{}); ok {
		for _, c := range raw {
			if s, ok := c.(string); ok && s != d.OwnerID {
				d.CollaboratorIDs = append(d.CollaboratorIDs, s)
			}
		}
	}
	d.CreatedAt, _ = asTime(data["createdAt"])
	d.UpdatedAt, _ = asTime(data["updatedAt"])
	return d
}

func (s *FirestoreRepo) ListDocumentsForUser(ctx context.Context, userID string) ([]*document.Document, error) {
	queries := []firestore.Query{
		s.client.Collection(s.collection).Where("ownerId", "==", userID),
		s.client.Collection(s.collection).Where("collaborators", "array-contains", userID),
	}
	seen := map[string]bool{}
	out := []*document.Document{}
	for _, q := range queries {
		iter := q.Documents(ctx)
		for {
			snap, err := iter.Next()
			if err == iterator.Done {
				break
			}
			if err != nil {
				iter.Stop()
				return nil, firestoreErr("firestore.ListDocuments", err)
			}
			if seen[snap.Ref.ID] {
				continue
			}
			seen[snap.Ref.ID] = true
			out = append(out, snapshotToDocument(snap))
		}
		iter.Stop()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (s *FirestoreRepo) AddCollaborator(ctx context.Context, id, userID string) (*document.Document, error) {
	d, err := s.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	if !d.AddCollaborator(userID) {
		return d, nil
	}
	_, err = s.docRef(id).Update(ctx, []firestore.Update{
		{Path: "collaborators", Value: firestore.ArrayUnion(userID)},
	})
	if status.Code(err) == codes.NotFound {
		return nil, domain.ErrDocumentNotFound
	}
	if err != nil {
		return nil, firestoreErr("firestore.AddCollaborator", err)
	}
	return d, nil
}

func (s *FirestoreRepo) SetShareKeyIfEmpty(ctx context.Context, id, key string) (*document.Document, error) {
	ref := s.docRef(id)
	var out *document.Document
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if status.Code(err) == codes.NotFound {
			return domain.ErrDocumentNotFound
		}
		if err != nil {
			return err
		}
		out = snapshotToDocument(snap)
		if out.ShareKey != "" {
			return nil
		}
		out.ShareKey = key
		return tx.Update(ref, []firestore.Update{{Path: "shareKey", Value: key}})
	})
	if err != nil {
		return nil, firestoreErr("firestore.SetShareKey", err)
	}
	return out, nil
}

func (s *FirestoreRepo) DeleteDocument(ctx context.Context, id string) error {
	if _, err := s.GetDocument(ctx, id); err != nil {
		return err
	}
	bw := s.client.BulkWriter(ctx)
	iter := s.versionsCollection(id).Documents(ctx)
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			iter.Stop()
			bw.End()
			return firestoreErr("firestore.DeleteDocument", err)
		}
		if _, err := bw.Delete(snap.Ref); err != nil {
			iter.Stop()
			bw.End()
			return firestoreErr("firestore.DeleteDocument", err)
		}
	}
	iter.Stop()
	if _, err := bw.Delete(s.docRef(id)); err != nil {
		bw.End()
		return firestoreErr("firestore.DeleteDocument", err)
	}
	bw.End()
	return nil
}

func (s *FirestoreRepo) CreateVersion(ctx context.Context, documentID string, v document.StoredVersion) error {
	_, err := s.docRef(documentID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return domain.ErrDocumentNotFound
	}
	if err != nil {
		return firestoreErr("firestore.CreateVersion", err)
	}
	_, err = s.versionsCollection(documentID).Doc(v.VersionID).Create(ctx, v)
	if status.Code(err) == codes.AlreadyExists {
		return fmt.Errorf("version %q already exists", v.VersionID)
	}
	return firestoreErr("firestore.CreateVersion", err)
}

func (s *FirestoreRepo) GetVersion(ctx context.Context, documentID, versionID string) (document.StoredVersion, error) {
	snap, err := s.versionsCollection(documentID).Doc(versionID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return document.StoredVersion{}, domain.ErrVersionNotFound
	}
	if err != nil {
		return document.StoredVersion{}, firestoreErr("firestore.GetVersion", err)
	}
	return snapshotToVersion(snap), nil
}

func (s *FirestoreRepo) FindVersion(ctx context.Context, versionID string) (document.StoredVersion, error) {
	iter := s.client.CollectionGroup("versions").Where("versionId", "==", versionID).Limit(1).Documents(ctx)
	defer iter.Stop()
	snap, err := iter.Next()
	if err == iterator.Done {
		return document.StoredVersion{}, domain.ErrVersionNotFound
	}
	if err != nil {
		return document.StoredVersion{}, firestoreErr("firestore.FindVersion", err)
	}
	return snapshotToVersion(snap), nil
}

func (s *FirestoreRepo) ListVersions(ctx context.Context, documentID string) ([]document.StoredVersion, error) {
	if _, err := s.GetDocument(ctx, documentID); err != nil {
		return nil, err
	}
	iter := s.versionsCollection(documentID).Documents(ctx)
	defer iter.Stop()
	out := []document.StoredVersion{}
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, firestoreErr("firestore.ListVersions", err)
		}
		out = append(out, snapshotToVersion(snap))
	}
	return out, nil
}

func snapshotToVersion(snap *firestore.DocumentSnapshot) document.StoredVersion {
	data := snap.Data()
	str := func(k string) string {
		v, _ := data[k].(string)
		return v
	}
	v := document.StoredVersion{
		VersionID:       str("versionId"),
		BlobKey:         str("blobKey"),
		S3Key:           str("s3Key"),
		CreatedBy:       str("createdBy"),
		Timestamp:       str("timestamp"),
		FileKey:         str("fileKey"),
		CreatedByUserID: str("createdByUserId"),
		CommitMessage:   str("commitMessage"),
		FileName:        str("fileName"),
		FileType:        str("fileType"),
	}
	if v.VersionID == "" {
		v.VersionID = snap.Ref.ID
	}
	if parent := snap.Ref.Parent.Parent; parent != nil {
		v.DocumentID = parent.ID
	}
	if t, ok := asTime(data["createdAt"]); ok {
		v.CreatedAt = &t
	}
	switch n := data["size"].(type) {
	case int64:
		v.Size = n
	case float64:
		v.Size = int64(n)
	}
	return v
}

// asTime accepts the shapes timestamps have been stored in: native
// timestamps, ISO strings, and exported {seconds, nanoseconds} maps.
func asTime(raw interface{}) (time.Time, bool) {
	switch t := raw.(type) {
	case time.Time:
		return t.UTC(), true
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			return time.Time{}, false
		}
		return parsed.UTC(), true
	case map[string]interface{}:
		sec, ok := firstInt(t, "seconds", "_seconds")
		if !ok {
			return time.Time{}, false
		}
		nanos, _ := firstInt(t, "nanoseconds", "_nanoseconds", "nanos")
		return time.Unix(sec, nanos).UTC(), true
	}
	return time.Time{}, false
}

func firstInt(m map[string]interface{}, keys ...string) (int64, bool) {
	for _, k := range keys {
		switch n := m[k].(type) {
		case int64:
			return n, true
		case float64:
			return int64(n), true
		}
	}
	return 0, false
}

func (s *FirestoreRepo) UpdateDocumentTimestamp(ctx context.Context, documentID string, at time.Time) error {
	_, err := s.docRef(documentID).Update(ctx, []firestore.Update{
		{Path: "updatedAt", Value: at.UTC()},
	})
	if status.Code(err) == codes.NotFound {
		return domain.ErrDocumentNotFound
	}
	return firestoreErr("firestore.UpdateTimestamp", err)
}

func (s *FirestoreRepo) Ping(ctx context.Context) error {
	iter := s.client.Collection(s.collection).Limit(1).Documents(ctx)
	defer iter.Stop()
	_, err := iter.Next()
	if err != nil && !errors.Is(err, iterator.Done) {
		return firestoreErr("firestore.Ping", err)
	}
	return nil
}

// firestoreErr maps gRPC status codes onto storage kinds. Errors that
// already carry a kind pass through.
func firestoreErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var de *domain.Error
	if errors.As(err, &de) {
		return err
	}
	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted:
		return domain.E(domain.KindStorageUnavailable, op, err)
	case codes.PermissionDenied, codes.Unauthenticated:
		return domain.E(domain.KindStorageDenied, op, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.E(domain.KindStorageUnavailable, op, err)
	}
	return domain.E(domain.KindInternal, op, err)
}
