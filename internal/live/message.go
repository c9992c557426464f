package live

import (
	"encoding/json"

	"github.com/kartikgopal01/coedit/internal/delta"
)

// Message types exchanged over WebSocket.
const (
	MsgJoin   = "join"
	MsgLeave  = "leave"
	MsgUpdate = "update"
	MsgAck    = "ack"
	MsgDoc    = "doc"
	MsgError  = "error"
)

// ClientMessage is a message from an editor to the server. Content is the
// full body after the editor's change.
type ClientMessage struct {
	Type    string          `json:"type"`
	DocID   string          `json:"docId,omitempty"`
	Content json.RawMessage `json:"content,omitempty"`
}

// ServerMessage is a message from the server to an editor.
type ServerMessage struct {
	Type     string       `json:"type"`
	DocID    string       `json:"docId,omitempty"`
	Origin   Origin       `json:"origin,omitempty"`
	Content  *delta.Delta `json:"content,omitempty"`
	ClientID string       `json:"clientId,omitempty"`
	Message  string       `json:"message,omitempty"`
	Clients  []ClientInfo `json:"clients,omitempty"`
}

// ClientInfo describes a connected editor.
type ClientInfo struct {
	ID     string `json:"id"`
	UserID string `json:"userId"`
}

// Encode serializes a ServerMessage to JSON bytes.
func (m ServerMessage) Encode() []byte {
	b, _ := json.Marshal(m)
	return b
}
