package repository

import (
	"database/sql"
	"time"

	"github.com/bagasta/waha-relay/domains/session"
)

type SessionRepository struct {
	db *sql.DB
}

func NewSessionRepository(db *sql.DB) session.ISessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Upsert(rec *session.Record) error {
	query := `
		INSERT INTO relay_session (name, status, account_id, push_name, webhook_ensured, last_connected_at, last_disconnected_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (name) DO UPDATE SET
			status = EXCLUDED.status,
			account_id = EXCLUDED.account_id,
			push_name = EXCLUDED.push_name,
			webhook_ensured = EXCLUDED.webhook_ensured,
			last_connected_at = EXCLUDED.last_connected_at,
			last_disconnected_at = EXCLUDED.last_disconnected_at,
			updated_at = EXCLUDED.updated_at
	`
	// SQLite accepts $1 placeholders as well, so one query serves both drivers.

	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := r.db.Exec(query,
		rec.Name,
		rec.Status,
		rec.AccountID,
		rec.PushName,
		rec.WebhookEnsured,
		rec.LastConnectedAt,
		rec.LastDisconnectedAt,
		createdAt,
		time.Now(),
	)
	return err
}

func (r *SessionRepository) Find(name string) (*session.Record, error) {
	query := `SELECT name, status, account_id, push_name, webhook_ensured, last_connected_at, last_disconnected_at, created_at, updated_at FROM relay_session WHERE name = $1`
	row := r.db.QueryRow(query, name)

	var rec session.Record
	err := row.Scan(
		&rec.Name,
		&rec.Status,
		&rec.AccountID,
		&rec.PushName,
		&rec.WebhookEnsured,
		&rec.LastConnectedAt,
		&rec.LastDisconnectedAt,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

func (r *SessionRepository) List() ([]*session.Record, error) {
	query := `SELECT name, status, account_id, push_name, webhook_ensured, last_connected_at, last_disconnected_at, created_at, updated_at FROM relay_session ORDER BY name`
	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*session.Record
	for rows.Next() {
		var rec session.Record
		if err := rows.Scan(
			&rec.Name,
			&rec.Status,
			&rec.AccountID,
			&rec.PushName,
			&rec.WebhookEnsured,
			&rec.LastConnectedAt,
			&rec.LastDisconnectedAt,
			&rec.CreatedAt,
			&rec.UpdatedAt,
		); err != nil {
			return nil, err
		}
		records = append(records, &rec)
	}
	return records, rows.Err()
}

func (r *SessionRepository) Delete(name string) error {
	_, err := r.db.Exec(`DELETE FROM relay_session WHERE name = $1`, name)
	return err
}
