package service

import (
	"github.com/kartikgopal01/coedit/pkg/metrics"
)

// BestEffort is the outcome of a side effect whose failure never fails the
// operation that triggered it.
type BestEffort struct {
	Operation  string
	DocumentID string
	Err        error
}

func (b BestEffort) OK() bool { return b.Err == nil }

// runBestEffort executes fn, logging and counting a failure.
func runBestEffort(o *options, operation, documentID string, fn func() error, attrs ...any) BestEffort {
	res := BestEffort{Operation: operation, DocumentID: documentID, Err: fn()}
	if !res.OK() {
		metrics.BestEffortFailures.WithLabelValues(operation).Inc()
		args := append([]any{"operation", operation, "document_id", documentID, "error", res.Err}, attrs...)
		o.log.Warn("best-effort operation failed", args...)
	}
	if o.hook != nil {
		o.hook(res)
	}
	return res
}
