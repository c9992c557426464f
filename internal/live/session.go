package live

import (
	"context"
	"log/slog"
	"sync"

	"github.com/kartikgopal01/coedit/internal/delta"
	"github.com/kartikgopal01/coedit/pkg/logger"
	"github.com/kartikgopal01/coedit/pkg/metrics"
)

type updateMessage struct {
	client  *Client
	content delta.Delta
}

// Session fans out content for a single document.
// All updates are serialized through a single goroutine.
type Session struct {
	docID   string
	content delta.Delta
	backing Channel
	log     *slog.Logger
	clients map[*Client]bool
	// joined is only touched by Run and sent only by the hub loop.
	joined int
	sent   int

	incoming chan updateMessage
	external chan Update
	join     chan *Client
	leave    chan *Client
	idle     chan<- idleNotice
	stop     chan struct{}
	stopOnce sync.Once
}

func newSession(docID string, content delta.Delta, backing Channel, idle chan<- idleNotice) *Session {
	return &Session{
		docID:    docID,
		content:  content,
		backing:  backing,
		log:      logger.With("component", "live.session", "document_id", docID),
		clients:  make(map[*Client]bool),
		incoming: make(chan updateMessage, 64),
		external: make(chan Update, 64),
		join:     make(chan *Client, 16),
		leave:    make(chan *Client, 16),
		idle:     idle,
		stop:     make(chan struct{}),
	}
}

// Run is the session's main loop.
func (s *Session) Run() {
	for {
		select {
		case c := <-s.join:
			s.handleJoin(c)
		case c := <-s.leave:
			s.handleLeave(c)
		case um := <-s.incoming:
			s.handleUpdate(um)
		case u := <-s.external:
			s.handleExternal(u)
		case <-s.stop:
			return
		}
	}
}

// Stop ends the session loop. It is safe to call more than once.
func (s *Session) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *Session) handleJoin(c *Client) {
	s.joined++
	s.clients[c] = true
	c.mu.Lock()
	c.session = s
	c.mu.Unlock()

	content := s.content
	c.sendMsg(ServerMessage{
		Type:    MsgDoc,
		DocID:   s.docID,
		Content: &content,
		Clients: s.clientInfos(),
	})

	for other := range s.clients {
		if other != c {
			other.sendMsg(ServerMessage{Type: MsgJoin, DocID: s.docID, ClientID: c.ID})
		}
	}
}

func (s *Session) handleLeave(c *Client) {
	if _, ok := s.clients[c]; !ok {
		return
	}
	delete(s.clients, c)
	c.mu.Lock()
	c.session = nil
	c.mu.Unlock()
	close(c.send)

	for other := range s.clients {
		other.sendMsg(ServerMessage{Type: MsgLeave, DocID: s.docID, ClientID: c.ID})
	}
	if len(s.clients) == 0 && s.idle != nil {
		select {
		case s.idle <- idleNotice{session: s, joined: s.joined}:
		default:
			s.log.Warn("hub busy; idle session kept")
		}
	}
}

// handleUpdate persists an editor's body and relays it to everyone else.
func (s *Session) handleUpdate(um updateMessage) {
	if err := s.backing.ReplaceContent(context.Background(), s.docID, um.content, OriginUser); err != nil {
		s.log.Error("failed to store live content", "client_id", um.client.ID, "error", err)
		um.client.sendError("live channel unavailable")
		return
	}
	s.content = um.content

	um.client.sendMsg(ServerMessage{Type: MsgAck, DocID: s.docID})
	s.broadcast(Update{DocumentID: s.docID, Origin: OriginUser, Content: um.content}, um.client)
}

// handleExternal applies a replacement that happened outside this session,
// such as a rollback, and pushes it to every editor.
func (s *Session) handleExternal(u Update) {
	s.content = u.Content
	s.broadcast(u, nil)
}

func (s *Session) broadcast(u Update, except *Client) {
	metrics.LiveBroadcasts.WithLabelValues(string(u.Origin)).Inc()
	content := u.Content
	msg := ServerMessage{Type: MsgUpdate, DocID: s.docID, Origin: u.Origin, Content: &content}
	if except != nil {
		msg.ClientID = except.ID
	}
	for c := range s.clients {
		if c != except {
			c.sendMsg(msg)
		}
	}
}

func (s *Session) clientInfos() []ClientInfo {
	infos := make([]ClientInfo, 0, len(s.clients))
	for c := range s.clients {
		infos = append(infos, c.Info())
	}
	return infos
}
