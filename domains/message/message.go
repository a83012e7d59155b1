package message

import "encoding/json"

// WebhookEvent is the envelope WAHA posts to the relay's receiver endpoint.
// Payload stays raw until the event type is known.
type WebhookEvent struct {
	ID      string          `json:"id"`
	Event   string          `json:"event"`
	Session string          `json:"session"`
	Payload json.RawMessage `json:"payload"`
}

// Payload is the body of message and message.any events.
type Payload struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"timestamp"`
	From      string `json:"from"`
	FromMe    bool   `json:"fromMe"`
	To        string `json:"to"`
	Body      string `json:"body"`
	HasMedia  bool   `json:"hasMedia"`
}

// StatusPayload is the body of session.status events.
type StatusPayload struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}

// IsGroup reports whether the chat is a group JID.
func (p *Payload) IsGroup() bool {
	return hasSuffix(p.From, "@g.us")
}

// IsBroadcast reports whether the chat is a broadcast or status channel.
func (p *Payload) IsBroadcast() bool {
	return hasSuffix(p.From, "@broadcast") || p.From == "status@broadcast"
}

func hasSuffix(s, suffix string) bool {
	return len(s) >= len(suffix) && s[len(s)-len(suffix):] == suffix
}
