package ws

// Message types for the control-panel WebSocket protocol.
const (
	// Server → Browser
	TypeSession      = "session"      // assigned session id, sent once on connect
	TypeQR           = "qr"           // QR challenge, rendered as a PNG data URL
	TypeReady        = "ready"        // messaging account linked
	TypeLinkError    = "linkError"    // capability failed to initialize
	TypeActionResult = "actionResult" // outcome of one cleanup run
	TypeError        = "error"        // protocol error

	// Browser → Server (zero payload beyond the envelope)
	TypeCleanAll      = "cleanAll"
	TypeCleanInactive = "cleanInactive"
	TypeCleanGroups   = "cleanGroups"
)

// Envelope wraps every WebSocket message with a type field for routing.
type Envelope struct {
	Type string `json:"type"`
}

// SessionMsg tells the browser which session id it was assigned. The id
// addresses the history endpoints after the socket is gone.
type SessionMsg struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
}

// QRMsg carries a link challenge as a PNG data URL ready for an <img> tag.
type QRMsg struct {
	Type  string `json:"type"`
	Image string `json:"image"`
}

// ReadyMsg confirms the messaging account is linked and commands are accepted.
type ReadyMsg struct {
	Type string `json:"type"`
}

// LinkErrorMsg reports that linking failed; the session is dead.
type LinkErrorMsg struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ActionResultMsg reports the aggregate outcome of one cleanup run.
type ActionResultMsg struct {
	Type            string `json:"type"`
	Action          string `json:"action"`
	TotalMessages   int    `json:"totalMessages"`
	DeletedMessages int    `json:"deletedMessages"`
}

// ErrorMsg is sent for protocol errors (unknown command, command before link).
type ErrorMsg struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
