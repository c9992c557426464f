// Package storage is the blob store client snapshots and attachments are
// written through.
package storage

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"
)

// DefaultURLTTL is how long signed URLs stay valid unless configured otherwise.
const DefaultURLTTL = 3600 * time.Second

// DefaultKeyPrefix is the top-level partition for all blob keys.
const DefaultKeyPrefix = "documents"

// BlobStore is an object store addressed by key. Signing never performs a
// network round-trip, so a signed URL says nothing about whether the key exists.
// Implementations classify failures as domain.ErrStorageUnavailable,
// domain.ErrStorageDenied or domain.ErrKeyNotFound and never retry.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	SignedGetURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	SignedPutURL(ctx context.Context, key, contentType string, ttl time.Duration) (string, error)
}

func prefixOrDefault(prefix string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return DefaultKeyPrefix
	}
	return prefix
}

// partition escapes authorID into exactly one key segment, so an id holding
// "/" or naming "." or ".." cannot reach another author's partition.
func partition(authorID string) string {
	seg := url.PathEscape(authorID)
	if seg == "." || seg == ".." {
		seg = strings.ReplaceAll(seg, ".", "%2E")
	}
	return seg
}

// SnapshotKey returns the key a snapshot blob is written under:
// {prefix}/{authorID}/{versionID}.json, with authorID escaped.
func SnapshotKey(prefix, authorID, versionID string) string {
	return fmt.Sprintf("%s/%s/%s.json", prefixOrDefault(prefix), partition(authorID), versionID)
}

// UploadKey returns the key for an attachment: {prefix}/{authorID}/{token}-{name}.
// Directory components of fileName are dropped.
func UploadKey(prefix, authorID, token, fileName string) string {
	name := path.Base(strings.ReplaceAll(fileName, "\\", "/"))
	if name == "." || name == "/" || name == ".." {
		name = "file"
	}
	return fmt.Sprintf("%s/%s/%s-%s", prefixOrDefault(prefix), partition(authorID), token, name)
}

// OwnedBy reports whether key lives in authorID's partition. Keys with a
// "." or ".." segment below the partition never match.
func OwnedBy(prefix, authorID, key string) bool {
	if authorID == "" {
		return false
	}
	rest, ok := strings.CutPrefix(key, prefixOrDefault(prefix)+"/"+partition(authorID)+"/")
	if !ok || rest == "" {
		return false
	}
	for _, seg := range strings.Split(rest, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return false
		}
	}
	return true
}

func ttlOrDefault(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return DefaultURLTTL
	}
	return ttl
}
