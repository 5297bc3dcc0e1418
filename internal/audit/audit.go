package audit

import (
	"database/sql"
	"time"

	"go.uber.org/zap"
)

type Service struct {
	db  *sql.DB
	log *zap.Logger
}

func New(db *sql.DB, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{db: db, log: log}
}

// Log appends an audit row. A failed write is logged, never returned: audit
// callers have already committed the action being described.
func (s *Service) Log(uid int64, action string, metadata string) {

	_, err := s.db.Exec(`
	INSERT INTO audit_logs(uid, action, metadata, created_at)
	VALUES (?, ?, ?, ?)
	`, uid, action, metadata, time.Now().Unix())

	if err != nil {
		s.log.Error("audit write failed",
			zap.Int64("uid", uid),
			zap.String("action", action),
			zap.String("metadata", metadata),
			zap.Error(err),
		)
	}
}

type Record struct {
	UID       int64  `json:"uid"`
	Action    string `json:"action"`
	Metadata  string `json:"metadata"`
	CreatedAt int64  `json:"created_at"`
}

// ByAction lists the newest rows for an action, e.g. "reconcile_required".
func (s *Service) ByAction(action string, limit int) ([]Record, error) {
	rows, err := s.db.Query(`
	SELECT uid, action, metadata, created_at FROM audit_logs
	WHERE action = ? ORDER BY id DESC LIMIT ?
	`, action, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.UID, &r.Action, &r.Metadata, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
