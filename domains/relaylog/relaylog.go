package relaylog

import "time"

const (
	StatusRelayed = "relayed"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

type Entry struct {
	ID          int64     `json:"id"`
	SessionName string    `json:"session_name"`
	MessageID   string    `json:"message_id"`
	ChatID      string    `json:"chat_id"`
	Status      string    `json:"status"`
	Detail      string    `json:"detail,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type Stats struct {
	TotalRelayed int64 `json:"total_relayed"`
	TotalFailed  int64 `json:"total_failed"`
}

type IRelayLogRepository interface {
	Log(sessionName, messageID, chatID, status, detail string) error
	GetStats(sessionName string) (*Stats, error)
	Recent(sessionName string, limit int) ([]Entry, error)
}
