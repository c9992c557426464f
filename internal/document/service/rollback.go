package service

import (
	"context"

	"github.com/kartikgopal01/coedit/internal/document"
	"github.com/kartikgopal01/coedit/internal/domain"
	"github.com/kartikgopal01/coedit/internal/live"
	"github.com/kartikgopal01/coedit/pkg/metrics"
)

// RollbackRequest asks for the live document to be reset to a past version.
type RollbackRequest struct {
	DocumentID      string
	CallerID        string
	TargetVersionID string
	CommitMessage   string
}

// Rollbacks restores past versions without rewriting history: the target
// content replaces the live body and is committed as a new version.
type Rollbacks struct {
	snapshots *Snapshots
	live      live.Channel
}

func NewRollbacks(snapshots *Snapshots, ch live.Channel) *Rollbacks {
	return &Rollbacks{snapshots: snapshots, live: ch}
}

// Rollback returns the version recording the restored content. When the
// live body was replaced but the commit failed the error is
// ErrRollbackAppliedButNotCommitted; editors already see the restored text.
func (r *Rollbacks) Rollback(ctx context.Context, req RollbackRequest) (v document.Version, err error) {
	const op = "service.Rollback"
	defer func() { metrics.Rollbacks.WithLabelValues(result(err)).Inc() }()
	log := r.snapshots.opts.log

	target, err := r.snapshots.Materialize(ctx, req.CallerID, req.DocumentID, req.TargetVersionID)
	if err != nil {
		return document.Version{}, err
	}

	msg := req.CommitMessage
	if msg == "" {
		msg = "Revert to " + shortID(req.TargetVersionID)
	}
	commit := CommitRequest{
		DocumentID:    req.DocumentID,
		CallerID:      req.CallerID,
		Content:       target.Content,
		CommitMessage: msg,
	}
	// anything Commit would refuse must fail before editors see the change
	if err := commit.check(op); err != nil {
		return document.Version{}, err
	}

	if err := r.live.ReplaceContent(ctx, req.DocumentID, target.Content, live.OriginRollback); err != nil {
		log.Error("rollback could not reach live channel", "document_id", req.DocumentID, "target_version_id", req.TargetVersionID, "error", err)
		return document.Version{}, domain.E(domain.KindLiveChannelUnavailable, op, err)
	}

	v, err = r.snapshots.Commit(ctx, commit)
	if err != nil {
		log.Error("rollback applied but not committed", "document_id", req.DocumentID, "target_version_id", req.TargetVersionID, "error", err)
		return document.Version{}, domain.E(domain.KindRollbackAppliedButNotCommitted, op, err)
	}
	log.Info("rollback committed", "document_id", req.DocumentID, "target_version_id", req.TargetVersionID, "version_id", v.VersionID)
	return v, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
