package live

import (
	"context"
	"sync"

	"github.com/kartikgopal01/coedit/internal/delta"
	"github.com/kartikgopal01/coedit/internal/domain"
)

// MemoryChannel keeps live bodies in process memory and records every
// replacement it accepts.
type MemoryChannel struct {
	mu      sync.RWMutex
	docs    map[string]delta.Delta
	updates []Update
	fail    error
}

func NewMemoryChannel() *MemoryChannel {
	return &MemoryChannel{docs: make(map[string]delta.Delta)}
}

// Seed sets the live body of documentID without recording an update.
func (m *MemoryChannel) Seed(documentID string, content delta.Delta) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[documentID] = content
}

// FailWith makes every subsequent call return err; nil restores normal operation.
func (m *MemoryChannel) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = err
}

// GetCurrentContent returns an empty delta for a document nobody has edited yet.
func (m *MemoryChannel) GetCurrentContent(ctx context.Context, documentID string) (delta.Delta, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.fail != nil {
		return delta.Delta{}, domain.E(domain.KindLiveChannelUnavailable, "memory.GetCurrentContent", m.fail)
	}
	d, ok := m.docs[documentID]
	if !ok {
		return delta.Delta{Ops: []delta.Op{}}, nil
	}
	return d, nil
}

func (m *MemoryChannel) ReplaceContent(ctx context.Context, documentID string, content delta.Delta, origin Origin) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return domain.E(domain.KindLiveChannelUnavailable, "memory.ReplaceContent", m.fail)
	}
	m.docs[documentID] = content
	m.updates = append(m.updates, Update{DocumentID: documentID, Origin: origin, Content: content})
	return nil
}

// Updates returns the replacements accepted so far, oldest first.
func (m *MemoryChannel) Updates() []Update {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Update, len(m.updates))
	copy(out, m.updates)
	return out
}
