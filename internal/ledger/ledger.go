package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Entry is one journal line. Exactly one of Debit and Credit is non-zero.
type Entry struct {
	Ref     string `json:"ref"`
	Account string `json:"account"`
	Debit   int64  `json:"debit"`
	Credit  int64  `json:"credit"`
	Reason  string `json:"reason"`
	TS      int64  `json:"ts"`
}

type Service struct {
	db *sql.DB
}

func New(db *sql.DB) *Service {
	return &Service{db: db}
}

func PlayerAccount(uid int64) string {
	return fmt.Sprintf("player:%d", uid)
}

// Record journals a balance movement inside the caller's transaction and
// returns its reference.
func (s *Service) Record(ctx context.Context, tx *sql.Tx, account string, debit, credit int64, reason string) (string, error) {
	ref := uuid.New().String()
	ts := time.Now().Unix()

	_, err := tx.ExecContext(ctx, `
	INSERT INTO ledger(ref,account,debit,credit,reason,ts)
	VALUES (?,?,?,?,?,?)
	`, ref, account, debit, credit, reason, ts)
	if err != nil {
		return "", fmt.Errorf("record ledger entry: %w", err)
	}

	return ref, nil
}

// Entries returns an account's journal, oldest first.
func (s *Service) Entries(ctx context.Context, account string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT ref, account, debit, credit, reason, ts
	FROM ledger WHERE account = ? ORDER BY id
	`, account)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Ref, &e.Account, &e.Debit, &e.Credit, &e.Reason, &e.TS); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Net is credits minus debits over an account's journal.
func (s *Service) Net(ctx context.Context, account string) (int64, error) {
	var net int64
	err := s.db.QueryRowContext(ctx, `
	SELECT COALESCE(SUM(credit) - SUM(debit), 0) FROM ledger WHERE account = ?
	`, account).Scan(&net)
	return net, err
}
