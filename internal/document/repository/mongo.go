package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kartikgopal01/coedit/internal/document"
	"github.com/kartikgopal01/coedit/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoRepo stores documents in a "documents" collection keyed by id and
// version records in a "versions" collection keyed by versionId with a
// documentId field.
type MongoRepo struct {
	db       *mongo.Database
	docs     *mongo.Collection
	versions *mongo.Collection
}

func NewMongoRepo(ctx context.Context, db *mongo.Database) (*MongoRepo, error) {
	m := &MongoRepo{db: db, docs: db.Collection("documents"), versions: db.Collection("versions")}
	idx := []struct {
		col   *mongo.Collection
		model mongo.IndexModel
	}{
		{m.versions, mongo.IndexModel{Keys: bson.D{{Key: "documentId", Value: 1}}}},
		{m.docs, mongo.IndexModel{Keys: bson.D{{Key: "ownerId", Value: 1}}}},
		{m.docs, mongo.IndexModel{Keys: bson.D{{Key: "collaborators", Value: 1}}}},
	}
	for _, i := range idx {
		if _, err := i.col.Indexes().CreateOne(ctx, i.model); err != nil {
			return nil, fmt.Errorf("mongo index %s: %w", i.col.Name(), err)
		}
	}
	return m, nil
}

func (m *MongoRepo) CreateDocument(ctx context.Context, d *document.Document) error {
	prepareDocument(d, time.Now())
	if _, err := m.docs.InsertOne(ctx, d); err != nil {
		return mongoErr("mongo.CreateDocument", err)
	}
	return nil
}

func (m *MongoRepo) GetDocument(ctx context.Context, id string) (*document.Document, error) {
	var d document.Document
	err := m.docs.FindOne(ctx, bson.M{"_id": id}).Decode(&d)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, mongoErr("mongo.GetDocument", err)
	}
	return &d, nil
}

func (m *MongoRepo) ListDocumentsForUser(ctx context.Context, userID string) ([]*document.Document, error) {
	filter := bson.M{"$or": bson.A{bson.M{"ownerId": userID}, bson.M{"collaborators": userID}}}
	cur, err := m.docs.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "updatedAt", Value: -1}}))
	if err != nil {
		return nil, mongoErr("mongo.ListDocuments", err)
	}
	defer cur.Close(ctx)
	out := []*document.Document{}
	for cur.Next(ctx) {
		var d document.Document
		if err := cur.Decode(&d); err != nil {
			return nil, mongoErr("mongo.ListDocuments", err)
		}
		out = append(out, &d)
	}
	return out, mongoErr("mongo.ListDocuments", cur.Err())
}

func (m *MongoRepo) AddCollaborator(ctx context.Context, id, userID string) (*document.Document, error) {
	// $addToSet keeps the set unique; the owner guard keeps the owner out of it
	filter := bson.M{"_id": id, "ownerId": bson.M{"$ne": userID}}
	_, err := m.docs.UpdateOne(ctx, filter, bson.M{"$addToSet": bson.M{"collaborators": userID}})
	if err != nil {
		return nil, mongoErr("mongo.AddCollaborator", err)
	}
	return m.GetDocument(ctx, id)
}

func (m *MongoRepo) SetShareKeyIfEmpty(ctx context.Context, id, key string) (*document.Document, error) {
	// $in null matches a missing field too
	filter := bson.M{"_id": id, "shareKey": bson.M{"$in": bson.A{nil, ""}}}
	if _, err := m.docs.UpdateOne(ctx, filter, bson.M{"$set": bson.M{"shareKey": key}}); err != nil {
		return nil, mongoErr("mongo.SetShareKey", err)
	}
	return m.GetDocument(ctx, id)
}

func (m *MongoRepo) DeleteDocument(ctx context.Context, id string) error {
	res, err := m.docs.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return mongoErr("mongo.DeleteDocument", err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrDocumentNotFound
	}
	if _, err := m.versions.DeleteMany(ctx, bson.M{"documentId": id}); err != nil {
		return mongoErr("mongo.DeleteDocument", fmt.Errorf("cascade versions: %w", err))
	}
	return nil
}

func (m *MongoRepo) CreateVersion(ctx context.Context, documentID string, v document.StoredVersion) error {
	n, err := m.docs.CountDocuments(ctx, bson.M{"_id": documentID}, options.Count().SetLimit(1))
	if err != nil {
		return mongoErr("mongo.CreateVersion", err)
	}
	if n == 0 {
		return domain.ErrDocumentNotFound
	}
	v.DocumentID = documentID
	if _, err := m.versions.InsertOne(ctx, v); err != nil {
		return mongoErr("mongo.CreateVersion", err)
	}
	return nil
}

func (m *MongoRepo) findVersion(ctx context.Context, filter bson.M) (document.StoredVersion, error) {
	var v document.StoredVersion
	err := m.versions.FindOne(ctx, filter).Decode(&v)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return document.StoredVersion{}, domain.ErrVersionNotFound
		}
		return document.StoredVersion{}, mongoErr("mongo.GetVersion", err)
	}
	return v, nil
}

func (m *MongoRepo) GetVersion(ctx context.Context, documentID, versionID string) (document.StoredVersion, error) {
	return m.findVersion(ctx, bson.M{"_id": versionID, "documentId": documentID})
}

func (m *MongoRepo) FindVersion(ctx context.Context, versionID string) (document.StoredVersion, error) {
	return m.findVersion(ctx, bson.M{"_id": versionID})
}

func (m *MongoRepo) ListVersions(ctx context.Context, documentID string) ([]document.StoredVersion, error) {
	cur, err := m.versions.Find(ctx, bson.M{"documentId": documentID})
	if err != nil {
		return nil, mongoErr("mongo.ListVersions", err)
	}
	defer cur.Close(ctx)
	out := []document.StoredVersion{}
	for cur.Next(ctx) {
		var v document.StoredVersion
		if err := cur.Decode(&v); err != nil {
			return nil, mongoErr("mongo.ListVersions", err)
		}
		out = append(out, v)
	}
	return out, mongoErr("mongo.ListVersions", cur.Err())
}

func (m *MongoRepo) UpdateDocumentTimestamp(ctx context.Context, documentID string, at time.Time) error {
	res, err := m.docs.UpdateOne(ctx, bson.M{"_id": documentID}, bson.M{"$set": bson.M{"updatedAt": at.UTC()}})
	if err != nil {
		return mongoErr("mongo.UpdateTimestamp", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

func (m *MongoRepo) Ping(ctx context.Context) error {
	return mongoErr("mongo.Ping", m.db.Client().Ping(ctx, nil))
}

// Server error codes for Unauthorized and AuthenticationFailed.
const (
	mongoUnauthorized         = 13
	mongoAuthenticationFailed = 18
)

// mongoErr classifies driver failures: an unreachable or slow server is
// storage_unavailable, a refused credential is storage_denied and anything
// else stays internal. Errors that already carry a kind pass through.
func mongoErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var de *domain.Error
	if errors.As(err, &de) {
		return err
	}
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) || errors.Is(err, context.DeadlineExceeded) {
		return domain.E(domain.KindStorageUnavailable, op, err)
	}
	var se mongo.ServerError
	if errors.As(err, &se) && (se.HasErrorCode(mongoUnauthorized) || se.HasErrorCode(mongoAuthenticationFailed)) {
		return domain.E(domain.KindStorageDenied, op, err)
	}
	return domain.E(domain.KindInternal, op, err)
}
