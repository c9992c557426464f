// Package service implements snapshot commit, history, materialization and
// rollback on top of a metadata repository, a blob store and the live channel.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/kartikgopal01/coedit/internal/document"
	"github.com/kartikgopal01/coedit/internal/document/repository"
	"github.com/kartikgopal01/coedit/internal/domain"
	"github.com/kartikgopal01/coedit/internal/storage"
	"github.com/kartikgopal01/coedit/pkg/logger"
)

// DefaultMaxUploadBytes caps attachment uploads.
const DefaultMaxUploadBytes int64 = 10 << 20

type options struct {
	httpClient     *http.Client
	keyPrefix      string
	urlTTL         time.Duration
	maxUploadBytes int64
	log            *slog.Logger
	now            func() time.Time
	newID          func() string
	hook           func(BestEffort)
}

// Option configures Snapshots and Documents.
type Option func(*options)

// WithHTTPClient sets the client used to fetch snapshot blobs through signed URLs.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithKeyPrefix sets the blob key prefix; empty means storage.DefaultKeyPrefix.
func WithKeyPrefix(prefix string) Option {
	return func(o *options) { o.keyPrefix = prefix }
}

func WithURLTTL(ttl time.Duration) Option {
	return func(o *options) { o.urlTTL = ttl }
}

func WithMaxUploadBytes(n int64) Option {
	return func(o *options) { o.maxUploadBytes = n }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithClock replaces the server clock used for version timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithIDGenerator replaces the version id generator.
func WithIDGenerator(gen func() string) Option {
	return func(o *options) { o.newID = gen }
}

// WithBestEffortHook is called with every best-effort result, failed or not.
func WithBestEffortHook(fn func(BestEffort)) Option {
	return func(o *options) { o.hook = fn }
}

func buildOptions(opts []Option) options {
	o := options{
		httpClient:     &http.Client{Timeout: 30 * time.Second},
		keyPrefix:      storage.DefaultKeyPrefix,
		urlTTL:         storage.DefaultURLTTL,
		maxUploadBytes: DefaultMaxUploadBytes,
		now:            time.Now,
		newID:          uuid.NewString,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logger.With("component", "service")
	}
	if o.urlTTL <= 0 {
		o.urlTTL = storage.DefaultURLTTL
	}
	return o
}

// wrap attaches op to a repository or storage error, keeping its kind.
func wrap(op string, err error) error {
	return domain.E(domain.KindOf(err), op, err)
}

// authorize loads documentID and checks callerID may read and write it.
func authorize(ctx context.Context, repo repository.Repository, op, callerID, documentID string) (*document.Document, error) {
	if callerID == "" {
		return nil, domain.E(domain.KindUnauthenticated, op, nil)
	}
	doc, err := repo.GetDocument(ctx, documentID)
	if err != nil {
		return nil, wrap(op, err)
	}
	if !doc.CanAccess(callerID) {
		return nil, domain.E(domain.KindForbidden, op, fmt.Errorf("user %s has no access to document %s", callerID, documentID))
	}
	return doc, nil
}
