package db

import (
	"database/sql"
	"fmt"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		telegram_id INTEGER PRIMARY KEY,
		username TEXT,
		first_name TEXT,
		balance INTEGER NOT NULL DEFAULT 0 CHECK (balance >= 0),
		last_bonus INTEGER,
		total_bets INTEGER NOT NULL DEFAULT 0,
		total_wins INTEGER NOT NULL DEFAULT 0,
		total_profit INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	);`,

	`CREATE TABLE IF NOT EXISTS game_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		telegram_id INTEGER NOT NULL REFERENCES users(telegram_id),
		bet_amount INTEGER NOT NULL,
		crash_point REAL NOT NULL,
		cashout_point REAL,
		profit INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);`,

	`CREATE INDEX IF NOT EXISTS idx_game_history_user ON game_history(telegram_id);`,
	`CREATE INDEX IF NOT EXISTS idx_game_history_date ON game_history(created_at);`,

	`CREATE TABLE IF NOT EXISTS ledger (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ref TEXT NOT NULL,
		account TEXT NOT NULL,
		debit INTEGER NOT NULL DEFAULT 0,
		credit INTEGER NOT NULL DEFAULT 0,
		reason TEXT NOT NULL,
		ts INTEGER NOT NULL
	);`,

	`CREATE TABLE IF NOT EXISTS audit_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		uid INTEGER,
		action TEXT NOT NULL,
		metadata TEXT,
		created_at INTEGER NOT NULL
	);`,
}

// Migrate creates every table the service needs. Statements are idempotent.
func Migrate(db *sql.DB) error {
	for i, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}
