// Package live connects the version history engine to the body editors are
// currently working on. The engine never owns that body; it reads it when a
// snapshot is taken and replaces it wholesale on rollback.
package live

import (
	"context"

	"github.com/kartikgopal01/coedit/internal/delta"
)

// Origin tags who produced a content change so editors can tell their own
// edits apart from server-driven replacements.
type Origin string

const (
	OriginUser     Origin = "user"
	OriginRollback Origin = "rollback"
)

// Channel is the live document body shared by connected editors.
type Channel interface {
	GetCurrentContent(ctx context.Context, documentID string) (delta.Delta, error)
	ReplaceContent(ctx context.Context, documentID string, content delta.Delta, origin Origin) error
}

// Update is one full-content replacement as published to editors.
type Update struct {
	DocumentID string      `json:"documentId"`
	Origin     Origin      `json:"origin"`
	Content    delta.Delta `json:"content"`
	Source     string      `json:"source,omitempty"`
}
