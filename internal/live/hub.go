package live

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/kartikgopal01/coedit/internal/delta"
	"github.com/kartikgopal01/coedit/pkg/logger"
)

// AuthorizeFunc decides whether callerID may open documentID.
type AuthorizeFunc func(ctx context.Context, callerID, documentID string) error

type joinRequest struct {
	client *Client
	docID  string
}

// idleNotice tells the hub a session lost its last editor after processing
// joined joins.
type idleNotice struct {
	session *Session
	joined  int
}

// Hub routes websocket editors to per-document sessions and relays
// full-content updates between them. It is itself a Channel: replacements
// go to the backing channel first and are then pushed to connected editors.
type Hub struct {
	backing   Channel
	authorize AuthorizeFunc
	log       *slog.Logger
	sessions  map[string]*Session
	mu        sync.RWMutex

	joinDoc chan joinRequest
	idle    chan idleNotice
}

// NewHub creates a hub over backing. A nil authorize admits every caller.
func NewHub(backing Channel, authorize AuthorizeFunc) *Hub {
	return &Hub{
		backing:   backing,
		authorize: authorize,
		log:       logger.With("component", "live.hub"),
		sessions:  make(map[string]*Session),
		joinDoc:   make(chan joinRequest, 64),
		idle:      make(chan idleNotice, 64),
	}
}

// Run is the hub's main loop. It returns once joinDoc is closed.
func (h *Hub) Run() {
	for {
		select {
		case req, ok := <-h.joinDoc:
			if !ok {
				return
			}
			h.handleJoinDoc(req)
		case n := <-h.idle:
			h.handleIdle(n)
		}
	}
}

func (h *Hub) handleJoinDoc(req joinRequest) {
	ctx := context.Background()
	if req.docID == "" {
		req.client.sendError("docId is required")
		return
	}
	if h.authorize != nil {
		if err := h.authorize(ctx, req.client.UserID, req.docID); err != nil {
			h.log.Warn("join rejected", "document_id", req.docID, "user_id", req.client.UserID, "error", err)
			req.client.sendError("access denied")
			return
		}
	}

	h.mu.Lock()
	s, ok := h.sessions[req.docID]
	if !ok {
		content, err := h.backing.GetCurrentContent(ctx, req.docID)
		if err != nil {
			h.mu.Unlock()
			h.log.Error("failed to load live content", "document_id", req.docID, "error", err)
			req.client.sendError("failed to load document")
			return
		}
		s = newSession(req.docID, content, h.backing, h.idle)
		h.sessions[req.docID] = s
		go s.Run()
	}
	h.mu.Unlock()

	s.sent++
	s.join <- req.client
}

// handleIdle drops a session whose last editor left. A session that still
// has joins queued is kept: the counts differ until it has seen them all.
// Joins are only sent from this goroutine, so none can arrive in between.
func (h *Hub) handleIdle(n idleNotice) {
	s := n.session
	if s.sent != n.joined {
		return
	}
	h.mu.Lock()
	if h.sessions[s.docID] == s {
		delete(h.sessions, s.docID)
	}
	h.mu.Unlock()
	s.Stop()
	h.log.Debug("session closed", "document_id", s.docID)
}

// GetSession returns the session for a document, if active.
func (h *Hub) GetSession(docID string) *Session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.sessions[docID]
}

func (h *Hub) GetCurrentContent(ctx context.Context, documentID string) (delta.Delta, error) {
	return h.backing.GetCurrentContent(ctx, documentID)
}

// ReplaceContent replaces the body in the backing channel and pushes it to
// every editor of documentID, the initiator included.
func (h *Hub) ReplaceContent(ctx context.Context, documentID string, content delta.Delta, origin Origin) error {
	if err := h.backing.ReplaceContent(ctx, documentID, content, origin); err != nil {
		return err
	}
	h.relay(Update{DocumentID: documentID, Origin: origin, Content: content})
	return nil
}

func (h *Hub) relay(u Update) {
	if s := h.GetSession(u.DocumentID); s != nil {
		select {
		case s.external <- u:
		case <-s.stop:
		}
	}
}

// Follow relays updates published by other replicas until the channel
// closes. Updates tagged with self are skipped as they were already relayed.
func (h *Hub) Follow(updates <-chan Update, self string) {
	for u := range updates {
		if self != "" && u.Source == self {
			continue
		}
		h.relay(u)
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWS upgrades the request and attaches an editor acting as callerID.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, callerID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade error", "error", err)
		return
	}
	client := newClient(h, conn, callerID)
	go client.WritePump()
	go client.ReadPump()
}
