package liveserver

// Message is a single frame pushed to feed subscribers
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Message types
const (
	// TypeCart carries a cart snapshot after every change
	TypeCart = "cart"
	// TypeSession reports whether a session token is active
	TypeSession = "session"
)

func NewMessage(msgType string, data interface{}) Message {
	return Message{Type: msgType, Data: data}
}

// NewCartMessage wraps a cart snapshot
func NewCartMessage(snapshot interface{}) Message {
	return NewMessage(TypeCart, snapshot)
}

// NewSessionMessage reports session activation without exposing the token
func NewSessionMessage(active bool) Message {
	return NewMessage(TypeSession, map[string]bool{"active": active})
}
