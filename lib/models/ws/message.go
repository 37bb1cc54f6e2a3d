package ws

import "encoding/json"

const (
	TypeClientReady  = "CLIENT_READY"
	TypeClientVars   = "CLIENT_VARS"
	TypeCollabroom   = "COLLABROOM"
	TypeUserChanges  = "USER_CHANGES"
	TypeAcceptCommit = "ACCEPT_COMMIT"
	TypeNewChanges   = "NEW_CHANGES"
)

// Disconnect reasons sent as {"disconnect": reason}.
const (
	DisconnectBadChangeset = "badChangeset"
	DisconnectRateLimited  = "rateLimited"
	DisconnectUserDup      = "userdup"
	DisconnectDeleted      = "deleted"
	DisconnectBadMessage   = "badMessage"
)

// Envelope is the outer shape of every message a client sends.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Header holds the fields used to route an incoming message.
type Header struct {
	Component string `json:"component"`
	Type      string `json:"type"`
	Data      struct {
		Type string `json:"type"`
	} `json:"data"`
}

// Message is the shape of every message the server sends, apart from
// disconnects.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type Disconnect struct {
	Disconnect string `json:"disconnect"`
}
