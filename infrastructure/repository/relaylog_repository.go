package repository

import (
	"database/sql"

	"github.com/bagasta/waha-relay/domains/relaylog"
)

type RelayLogRepository struct {
	db *sql.DB
}

func NewRelayLogRepository(db *sql.DB) relaylog.IRelayLogRepository {
	return &RelayLogRepository{db: db}
}

func (r *RelayLogRepository) Log(sessionName, messageID, chatID, status, detail string) error {
	query := `INSERT INTO relay_log (session_name, message_id, chat_id, status, detail) VALUES ($1, $2, $3, $4, $5)`
	_, err := r.db.Exec(query, sessionName, messageID, chatID, status, detail)
	return err
}

func (r *RelayLogRepository) GetStats(sessionName string) (*relaylog.Stats, error) {
	query := `SELECT
		COUNT(*) FILTER (WHERE status = $2),
		COUNT(*) FILTER (WHERE status = $3)
	FROM relay_log WHERE session_name = $1`

	stats := &relaylog.Stats{}
	err := r.db.QueryRow(query, sessionName, relaylog.StatusRelayed, relaylog.StatusFailed).
		Scan(&stats.TotalRelayed, &stats.TotalFailed)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func (r *RelayLogRepository) Recent(sessionName string, limit int) ([]relaylog.Entry, error) {
	query := `SELECT id, session_name, message_id, chat_id, status, detail, created_at
		FROM relay_log WHERE session_name = $1 ORDER BY id DESC LIMIT $2`

	rows, err := r.db.Query(query, sessionName, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []relaylog.Entry
	for rows.Next() {
		var entry relaylog.Entry
		var detail sql.NullString
		if err := rows.Scan(&entry.ID, &entry.SessionName, &entry.MessageID, &entry.ChatID, &entry.Status, &detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.Detail = detail.String
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
