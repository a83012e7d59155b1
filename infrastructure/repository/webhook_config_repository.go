package repository

import (
	"database/sql"

	"github.com/bagasta/waha-relay/domains/webhook"
)

type WebhookTargetRepository struct {
	db *sql.DB
}

func NewWebhookTargetRepository(db *sql.DB) webhook.ITargetRepository {
	return &WebhookTargetRepository{db: db}
}

func (r *WebhookTargetRepository) Get() (*webhook.Target, error) {
	row := r.db.QueryRow(`SELECT url, secret, updated_at FROM webhook_target WHERE id = 1`)

	var cfg webhook.Target
	if err := row.Scan(&cfg.URL, &cfg.Secret, &cfg.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &cfg, nil
}

func (r *WebhookTargetRepository) Upsert(cfg *webhook.Target) error {
	query := `
		INSERT INTO webhook_target (id, url, secret, updated_at)
		VALUES (1, $1, $2, $3)
		ON CONFLICT(id) DO UPDATE SET
			url = EXCLUDED.url,
			secret = EXCLUDED.secret,
			updated_at = EXCLUDED.updated_at
	`
	_, err := r.db.Exec(query, cfg.URL, cfg.Secret, cfg.UpdatedAt)
	return err
}
