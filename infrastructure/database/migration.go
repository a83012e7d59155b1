package database

import (
	"database/sql"
	"fmt"

	"github.com/sirupsen/logrus"
)

func Migrate(db *sql.DB, driverName string) error {
	logrus.Info("Running database migrations...")

	var queries []string

	// Postgres specific syntax
	if driverName == "postgres" {
		queries = []string{
			`CREATE TABLE IF NOT EXISTS relay_session (
				name VARCHAR(255) PRIMARY KEY,
				status VARCHAR(50),
				account_id VARCHAR(255),
				push_name VARCHAR(255),
				webhook_ensured BOOLEAN DEFAULT FALSE,
				last_connected_at TIMESTAMP,
				last_disconnected_at TIMESTAMP,
				created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
			);`,
			`CREATE TABLE IF NOT EXISTS webhook_target (
				id INTEGER PRIMARY KEY CHECK (id = 1),
				url TEXT NOT NULL,
				secret TEXT,
				updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
			);`,
			`CREATE TABLE IF NOT EXISTS relay_log (
				id SERIAL PRIMARY KEY,
				session_name VARCHAR(255),
				message_id VARCHAR(255),
				chat_id VARCHAR(255),
				status VARCHAR(50),
				detail TEXT,
				created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
			);`,
		}
	} else {
		// SQLite syntax
		queries = []string{
			`CREATE TABLE IF NOT EXISTS relay_session (
				name TEXT PRIMARY KEY,
				status TEXT,
				account_id TEXT,
				push_name TEXT,
				webhook_ensured BOOLEAN DEFAULT 0,
				last_connected_at DATETIME,
				last_disconnected_at DATETIME,
				created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
				updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
			);`,
			`CREATE TABLE IF NOT EXISTS webhook_target (
				id INTEGER PRIMARY KEY CHECK (id = 1),
				url TEXT NOT NULL,
				secret TEXT,
				updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
			);`,
			`CREATE TABLE IF NOT EXISTS relay_log (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				session_name TEXT,
				message_id TEXT,
				chat_id TEXT,
				status TEXT,
				detail TEXT,
				created_at DATETIME DEFAULT CURRENT_TIMESTAMP
			);`,
		}
	}

	for _, query := range queries {
		_, err := db.Exec(query)
		if err != nil {
			return fmt.Errorf("failed to execute migration query: %s, error: %w", query, err)
		}
	}

	logrus.Info("Database migrations completed successfully.")
	return nil
}
