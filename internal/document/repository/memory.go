package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kartikgopal01/coedit/internal/document"
	"github.com/kartikgopal01/coedit/internal/domain"
)

// MemoryRepo is an in-memory repository used for development and unit tests.
type MemoryRepo struct {
	mu       sync.RWMutex
	docs     map[string]*document.Document
	versions map[string]document.StoredVersion
	now      func() time.Time
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		docs:     make(map[string]*document.Document),
		versions: make(map[string]document.StoredVersion),
		now:      time.Now,
	}
}

func (m *MemoryRepo) CreateDocument(ctx context.Context, d *document.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prepareDocument(d, m.now())
	if _, ok := m.docs[d.ID]; ok {
		return fmt.Errorf("document %s already exists", d.ID)
	}
	m.docs[d.ID] = cloneDocument(d)
	return nil
}

func (m *MemoryRepo) GetDocument(ctx context.Context, id string) (*document.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if d, ok := m.docs[id]; ok {
		return cloneDocument(d), nil
	}
	return nil, domain.ErrDocumentNotFound
}

func (m *MemoryRepo) ListDocumentsForUser(ctx context.Context, userID string) ([]*document.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*document.Document, 0)
	for _, d := range m.docs {
		if d.CanAccess(userID) {
			out = append(out, cloneDocument(d))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (m *MemoryRepo) AddCollaborator(ctx context.Context, id, userID string) (*document.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok {
		return nil, domain.ErrDocumentNotFound
	}
	d.AddCollaborator(userID)
	return cloneDocument(d), nil
}

func (m *MemoryRepo) SetShareKeyIfEmpty(ctx context.Context, id, key string) (*document.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok {
		return nil, domain.ErrDocumentNotFound
	}
	if d.ShareKey == "" {
		d.ShareKey = key
	}
	return cloneDocument(d), nil
}

func (m *MemoryRepo) DeleteDocument(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[id]; !ok {
		return domain.ErrDocumentNotFound
	}
	delete(m.docs, id)
	for vid, v := range m.versions {
		if v.DocumentID == id {
			delete(m.versions, vid)
		}
	}
	return nil
}

func (m *MemoryRepo) CreateVersion(ctx context.Context, documentID string, v document.StoredVersion) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[documentID]; !ok {
		return domain.ErrDocumentNotFound
	}
	if _, ok := m.versions[v.VersionID]; ok {
		return fmt.Errorf("version %s already exists", v.VersionID)
	}
	v.DocumentID = documentID
	m.versions[v.VersionID] = v
	return nil
}

func (m *MemoryRepo) GetVersion(ctx context.Context, documentID, versionID string) (document.StoredVersion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.versions[versionID]
	if !ok || v.DocumentID != documentID {
		return document.StoredVersion{}, domain.ErrVersionNotFound
	}
	return v, nil
}

func (m *MemoryRepo) FindVersion(ctx context.Context, versionID string) (document.StoredVersion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.versions[versionID]
	if !ok {
		return document.StoredVersion{}, domain.ErrVersionNotFound
	}
	return v, nil
}

func (m *MemoryRepo) ListVersions(ctx context.Context, documentID string) ([]document.StoredVersion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.docs[documentID]; !ok {
		return nil, domain.ErrDocumentNotFound
	}
	out := []document.StoredVersion{}
	for _, v := range m.versions {
		if v.DocumentID == documentID {
			out = append(out, v)
		}
	}
	return out, nil
}

func (m *MemoryRepo) UpdateDocumentTimestamp(ctx context.Context, documentID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[documentID]
	if !ok {
		return domain.ErrDocumentNotFound
	}
	d.UpdatedAt = at.UTC().Truncate(time.Millisecond)
	return nil
}

// PutVersionRaw stores a record as-is, bypassing the document check. Used to
// seed legacy-generation records.
func (m *MemoryRepo) PutVersionRaw(v document.StoredVersion) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.versions[v.VersionID] = v
}

func (m *MemoryRepo) Ping(ctx context.Context) error { return nil }
