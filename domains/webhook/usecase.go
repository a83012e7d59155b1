package webhook

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/bagasta/waha-relay/config"
)

type TargetUsecase struct {
	repo ITargetRepository

	mu     sync.Mutex
	cached *Target
}

func NewTargetUsecase(repo ITargetRepository) ITargetUsecase {
	return &TargetUsecase{repo: repo}
}

func (u *TargetUsecase) Get() (*Target, error) {
	if cfg := u.loadCached(); cfg != nil {
		return cfg, nil
	}
	cfg, err := u.repo.Get()
	if err != nil {
		return nil, err
	}
	if cfg != nil {
		u.storeCached(cfg)
	}
	return cfg, nil
}

func (u *TargetUsecase) Save(url, secret string) (*Target, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, errors.New("url is required")
	}

	cfg := &Target{
		URL:       url,
		Secret:    strings.TrimSpace(secret),
		UpdatedAt: time.Now(),
	}
	if err := u.repo.Upsert(cfg); err != nil {
		return nil, err
	}
	u.storeCached(cfg)
	applyRuntimeConfig(cfg)
	return cfg, nil
}

// CandidateURLs returns receiver URLs in preference order. The stored target
// wins; config-derived URLs remain accepted so a registration written before
// an admin change still verifies.
func (u *TargetUsecase) CandidateURLs() []string {
	var urls []string
	if cfg, _ := u.Get(); cfg != nil && cfg.URL != "" {
		urls = append(urls, cfg.URL)
	}
	if config.WebhookPublicURL != "" {
		urls = appendUnique(urls, config.WebhookPublicURL)
	}
	if config.WebhookPublicHost != "" {
		urls = appendUnique(urls, strings.TrimRight(config.WebhookPublicHost, "/")+"/webhooks/waha")
	}
	return urls
}

func (u *TargetUsecase) Secret() string {
	if cfg, _ := u.Get(); cfg != nil {
		return cfg.Secret
	}
	return config.WebhookSecret
}

// SyncRuntimeConfig loads the stored target (if any) and applies it to the
// runtime config variables so env-derived defaults reflect reality.
func (u *TargetUsecase) SyncRuntimeConfig() error {
	cfg, err := u.repo.Get()
	if err != nil {
		return err
	}
	if cfg != nil {
		u.storeCached(cfg)
		applyRuntimeConfig(cfg)
	}
	return nil
}

func (u *TargetUsecase) loadCached() *Target {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.cached
}

func (u *TargetUsecase) storeCached(cfg *Target) {
	u.mu.Lock()
	u.cached = cfg
	u.mu.Unlock()
}

func applyRuntimeConfig(cfg *Target) {
	config.WebhookPublicURL = cfg.URL
	config.WebhookSecret = cfg.Secret
}

func appendUnique(urls []string, url string) []string {
	for _, u := range urls {
		if u == url {
			return urls
		}
	}
	return append(urls, url)
}
