package session

import "time"

// Status mirrors the WAHA session status enum. NotFound and Unknown are
// local sentinel values, never returned by the gateway itself.
type Status string

const (
	StatusNotFound   Status = "NOT_FOUND"
	StatusStarting   Status = "STARTING"
	StatusScanQRCode Status = "SCAN_QR_CODE"
	StatusWorking    Status = "WORKING"
	StatusFailed     Status = "FAILED"
	StatusStopped    Status = "STOPPED"
	StatusUnknown    Status = "UNKNOWN"
)

// Terminal reports whether the status ends an authentication wait: the
// session either died or was stopped on purpose.
func (s Status) Terminal() bool {
	return s == StatusFailed || s == StatusStopped
}

// Info is the gateway's view of a session as returned by GET /api/sessions/{name}.
type Info struct {
	Name   string   `json:"name"`
	Status Status   `json:"status"`
	Config *Config  `json:"config,omitempty"`
	Me     *Account `json:"me,omitempty"`
}

// Account identifies the authenticated WhatsApp account once WORKING.
type Account struct {
	ID       string `json:"id"`
	PushName string `json:"pushName"`
}

// Config is the session-scoped configuration fragment the gateway accepts on
// create and on config patch.
type Config struct {
	Webhooks []Webhook `json:"webhooks,omitempty"`
}

// Webhook is one registered callback on a session.
type Webhook struct {
	URL     string          `json:"url"`
	Events  []string        `json:"events"`
	Retries *WebhookRetries `json:"retries,omitempty"`
}

type WebhookRetries struct {
	Attempts     int `json:"attempts"`
	DelaySeconds int `json:"delaySeconds"`
}

// CreatePayload is the body for POST /api/sessions.
type CreatePayload struct {
	Name   string  `json:"name"`
	Start  bool    `json:"start"`
	Config *Config `json:"config,omitempty"`
}

// Record is the locally persisted view of the managed session.
type Record struct {
	Name               string     `json:"name"`
	Status             string     `json:"status"`
	AccountID          string     `json:"accountId"`
	PushName           string     `json:"pushName"`
	WebhookEnsured     bool       `json:"webhookEnsured"`
	LastConnectedAt    *time.Time `json:"lastConnectedAt"`
	LastDisconnectedAt *time.Time `json:"lastDisconnectedAt"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

type StatusResponse struct {
	Name           string `json:"name"`
	Status         Status `json:"status"`
	IsReady        bool   `json:"isReady"`
	Locked         bool   `json:"locked"`
	WebhookEnsured bool   `json:"webhookEnsured"`
	AccountID      string `json:"accountId,omitempty"`
	PushName       string `json:"pushName,omitempty"`
}

type QRResponse struct {
	ContentType string `json:"contentType"`
	Base64      string `json:"base64"`
}

type EnsureWebhookResponse struct {
	Ensured  bool   `json:"ensured"`
	Cached   bool   `json:"cached"`
	Deferred bool   `json:"deferred"`
	Method   string `json:"method,omitempty"`
}

type ISessionRepository interface {
	Upsert(rec *Record) error
	Find(name string) (*Record, error)
	List() ([]*Record, error)
	Delete(name string) error
}

type ISessionUsecase interface {
	StartSession() (*StatusResponse, error)
	GetStatus() (*StatusResponse, error)
	GetQR() (*QRResponse, error)
	RestartSession() (*StatusResponse, error)
	Logout() error
	EnsureWebhook() (*EnsureWebhookResponse, error)
}
