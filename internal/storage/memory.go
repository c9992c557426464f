package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/kartikgopal01/coedit/internal/domain"
)

// MemoryPathPrefix is where MemoryStorage expects to be mounted.
const MemoryPathPrefix = "/blobs/"

type memoryObject struct {
	data        []byte
	contentType string
}

// MemoryStorage keeps blobs in process memory. Signed URLs are HS256 tokens
// bound to a key and method, served by the storage itself as an http.Handler
// mounted at MemoryPathPrefix.
type MemoryStorage struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
	secret  []byte
	baseURL string
	now     func() time.Time
}

// NewMemoryStorage returns an empty store signing URLs with secret.
func NewMemoryStorage(secret string) *MemoryStorage {
	if secret == "" {
		secret = "memory-storage"
	}
	return &MemoryStorage{objects: make(map[string]memoryObject), secret: []byte(secret), now: time.Now}
}

// SetBaseURL sets the scheme and host signed URLs point at, e.g. an
// httptest.Server URL.
func (m *MemoryStorage) SetBaseURL(base string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.baseURL = strings.TrimRight(base, "/")
}

func (m *MemoryStorage) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return domain.E(domain.KindStorageUnavailable, "memory.Put", err)
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = memoryObject{data: cp, contentType: contentType}
	return nil
}

func (m *MemoryStorage) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.E(domain.KindStorageUnavailable, "memory.Get", err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, domain.E(domain.KindKeyNotFound, "memory.Get", fmt.Errorf("%s", key))
	}
	out := make([]byte, len(obj.data))
	copy(out, obj.data)
	return out, nil
}

func (m *MemoryStorage) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

// Keys lists stored keys in lexical order.
func (m *MemoryStorage) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.objects))
	for k := range m.objects {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

type urlClaims struct {
	Key         string `json:"key"`
	Method      string `json:"method"`
	ContentType string `json:"ct,omitempty"`
	jwt.RegisteredClaims
}

func (m *MemoryStorage) sign(key, method, contentType string, ttl time.Duration) (string, error) {
	m.mu.RLock()
	base := m.baseURL
	m.mu.RUnlock()
	claims := urlClaims{
		Key:         key,
		Method:      method,
		ContentType: contentType,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(m.now().Add(ttlOrDefault(ttl))),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", domain.E(domain.KindStorageDenied, "memory.sign", err)
	}
	u := base + MemoryPathPrefix + (&url.URL{Path: key}).EscapedPath() + "?token=" + url.QueryEscape(tok)
	return u, nil
}

func (m *MemoryStorage) SignedGetURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return m.sign(key, http.MethodGet, "", ttl)
}

func (m *MemoryStorage) SignedPutURL(ctx context.Context, key, contentType string, ttl time.Duration) (string, error) {
	return m.sign(key, http.MethodPut, contentType, ttl)
}

func (m *MemoryStorage) verify(raw, key, method string) error {
	var claims urlClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now))
	if err != nil {
		return err
	}
	if claims.Key != key || claims.Method != method {
		return errors.New("token does not cover this request")
	}
	return nil
}

// ServeHTTP answers requests for signed URLs: GET returns the blob, PUT stores
// the body. Invalid or expired signatures get 403.
func (m *MemoryStorage) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(r.URL.Path, MemoryPathPrefix)
	if key == r.URL.Path || key == "" {
		http.NotFound(w, r)
		return
	}
	if err := m.verify(r.URL.Query().Get("token"), key, r.Method); err != nil {
		http.Error(w, "signature rejected", http.StatusForbidden)
		return
	}
	switch r.Method {
	case http.MethodGet:
		m.mu.RLock()
		obj, ok := m.objects[key]
		m.mu.RUnlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		if obj.contentType != "" {
			w.Header().Set("Content-Type", obj.contentType)
		}
		_, _ = w.Write(obj.data)
	case http.MethodPut:
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := m.Put(r.Context(), key, body, r.Header.Get("Content-Type")); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}
