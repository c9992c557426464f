package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/kartikgopal01/coedit/internal/domain"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOStorage is a thin wrapper around the minio client used by services.
type MinIOStorage struct {
	client *minio.Client
	bucket string
}

// NewMinIOStorage creates a MinIO client. It does not contact the server;
// call EnsureBucket at startup to create the bucket.
func NewMinIOStorage(cfg *MinIOConfig) (*MinIOStorage, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("minio new: %w", err)
	}
	return &MinIOStorage{client: mc, bucket: cfg.Bucket}, nil
}

// EnsureBucket creates the configured bucket if it does not exist yet.
func (s *MinIOStorage) EnsureBucket(ctx context.Context) error {
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		// ignore "already exists" style errors
		exist, xerr := s.client.BucketExists(ctx, s.bucket)
		if xerr != nil || !exist {
			return classifyMinIO("minio.EnsureBucket", err)
		}
	}
	return nil
}

// Put uploads data under key.
func (s *MinIOStorage) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return classifyMinIO("minio.Put", err)
	}
	return nil
}

// Get reads the whole object stored under key.
func (s *MinIOStorage) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, classifyMinIO("minio.Get", err)
	}
	defer obj.Close()
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, classifyMinIO("minio.Get", err)
	}
	return data, nil
}

func (s *MinIOStorage) Delete(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return classifyMinIO("minio.Delete", err)
	}
	return nil
}

// SignedGetURL returns a presigned GET URL valid for ttl.
func (s *MinIOStorage) SignedGetURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	presigned, err := s.client.PresignedGetObject(ctx, s.bucket, key, ttlOrDefault(ttl), make(url.Values))
	if err != nil {
		return "", classifyMinIO("minio.SignedGetURL", err)
	}
	return presigned.String(), nil
}

// SignedPutURL returns a presigned PUT URL valid for ttl. MinIO does not bind
// the content type into a presigned PUT, the uploader sends it as a header.
func (s *MinIOStorage) SignedPutURL(ctx context.Context, key, contentType string, ttl time.Duration) (string, error) {
	presigned, err := s.client.PresignedPutObject(ctx, s.bucket, key, ttlOrDefault(ttl))
	if err != nil {
		return "", classifyMinIO("minio.SignedPutURL", err)
	}
	return presigned.String(), nil
}

func classifyMinIO(op string, err error) error {
	resp := minio.ToErrorResponse(err)
	switch resp.Code {
	case "NoSuchKey", "NoSuchBucket":
		return domain.E(domain.KindKeyNotFound, op, err)
	case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch", "ExpiredToken":
		return domain.E(domain.KindStorageDenied, op, err)
	}
	switch resp.StatusCode {
	case http.StatusNotFound:
		return domain.E(domain.KindKeyNotFound, op, err)
	case http.StatusUnauthorized, http.StatusForbidden:
		return domain.E(domain.KindStorageDenied, op, err)
	}
	return domain.E(domain.KindStorageUnavailable, op, err)
}
