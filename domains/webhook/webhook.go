package webhook

import "time"

// RequiredEvents is the single source of truth for the event subscriptions a
// converged webhook registration must carry. Session transitions arrive via
// session.status, so state.change is deliberately not part of the set.
var RequiredEvents = []string{"message", "session.status", "message.any"}

// MinimalEvents is the degraded fallback set used when the gateway rejects a
// registration carrying the full event list.
var MinimalEvents = []string{"message", "session.status"}

// Target represents the relay's own receiver endpoint settings (where the
// gateway should deliver events), persisted in the database.
type Target struct {
	URL       string    `json:"url"`
	Secret    string    `json:"secret"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ITargetRepository interface {
	Get() (*Target, error)
	Upsert(cfg *Target) error
}

type ITargetUsecase interface {
	Get() (*Target, error)
	Save(url, secret string) (*Target, error)
	// CandidateURLs returns the receiver URLs convergence may register, in
	// preference order: the stored target first, then config-derived ones.
	CandidateURLs() []string
	Secret() string
	SyncRuntimeConfig() error
}

// Satisfies reports whether a registration list contains an entry whose URL
// is one of the accepted candidates and whose events are a superset of the
// required set.
func Satisfies(registered []Registration, candidates []string, required []string) bool {
	for _, reg := range registered {
		if !urlAccepted(reg.URL, candidates) {
			continue
		}
		if supersetOf(reg.Events, required) {
			return true
		}
	}
	return false
}

// Registration is a webhook entry as reported by the gateway's webhook list.
type Registration struct {
	ID     string   `json:"id,omitempty"`
	URL    string   `json:"url"`
	Events []string `json:"events"`
}

func urlAccepted(url string, candidates []string) bool {
	for _, c := range candidates {
		if url == c {
			return true
		}
	}
	return false
}

func supersetOf(have, want []string) bool {
	set := make(map[string]struct{}, len(have))
	for _, e := range have {
		set[e] = struct{}{}
	}
	for _, e := range want {
		if _, ok := set[e]; !ok {
			return false
		}
	}
	return true
}
