package wallet

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/Ansocialov1337/my-crash-game/internal/casino"
	"github.com/Ansocialov1337/my-crash-game/internal/ledger"
	"github.com/Ansocialov1337/my-crash-game/internal/monitoring"
)

var ErrBonusCooldown = errors.New("bonus not available yet")

type Player struct {
	TelegramID  int64     `json:"telegram_id"`
	Username    string    `json:"username,omitempty"`
	FirstName   string    `json:"first_name,omitempty"`
	Balance     int64     `json:"balance"`
	LastBonus   time.Time `json:"last_bonus"`
	TotalBets   int64     `json:"total_bets"`
	TotalWins   int64     `json:"total_wins"`
	TotalProfit int64     `json:"total_profit"`
	CreatedAt   time.Time `json:"created_at"`
}

func (p Player) Winrate() float64 {
	if p.TotalBets == 0 {
		return 0
	}
	return math.Round(float64(p.TotalWins)/float64(p.TotalBets)*1000) / 10
}

// Service keeps player balances and round history in sqlite. It is the
// casino.Ledger the settlement engine runs against.
type Service struct {
	db       *sql.DB
	journal  *ledger.Service
	bonus    int64
	cooldown time.Duration
	now      func() time.Time
}

var _ casino.Ledger = (*Service)(nil)

func New(db *sql.DB, journal *ledger.Service, bonus int64, cooldown time.Duration) *Service {
	return &Service{
		db:       db,
		journal:  journal,
		bonus:    bonus,
		cooldown: cooldown,
		now:      time.Now,
	}
}

func (s *Service) GetBalance(ctx context.Context, uid int64) (int64, error) {
	var balance int64
	err := s.db.QueryRowContext(ctx, `SELECT balance FROM users WHERE telegram_id = ?`, uid).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, casino.ErrPlayerNotFound
	}
	return balance, err
}

// Debit withdraws amount, refusing to take the balance below zero.
func (s *Service) Debit(ctx context.Context, uid int64, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("debit amount must be positive, got %d", amount)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
	UPDATE users SET balance = balance - ?
	WHERE telegram_id = ? AND balance >= ?
	`, amount, uid, amount)
	if err != nil {
		return 0, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := balanceTx(ctx, tx, uid); err != nil {
			return 0, err
		}
		return 0, casino.ErrInsufficientFunds
	}

	if _, err := s.journal.Record(ctx, tx, ledger.PlayerAccount(uid), amount, 0, "crash_bet"); err != nil {
		return 0, err
	}

	balance, err := balanceTx(ctx, tx, uid)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}

	monitoring.WalletBalanceChanges.WithLabelValues("debit").Inc()
	return balance, nil
}

func (s *Service) Credit(ctx context.Context, uid int64, amount int64) (int64, error) {
	return s.credit(ctx, uid, amount, "crash_payout")
}

func (s *Service) credit(ctx context.Context, uid int64, amount int64, reason string) (int64, error) {
	if amount < 0 {
		return 0, fmt.Errorf("credit amount must not be negative, got %d", amount)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE users SET balance = balance + ? WHERE telegram_id = ?`, amount, uid)
	if err != nil {
		return 0, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return 0, casino.ErrPlayerNotFound
	}

	if _, err := s.journal.Record(ctx, tx, ledger.PlayerAccount(uid), 0, amount, reason); err != nil {
		return 0, err
	}

	balance, err := balanceTx(ctx, tx, uid)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}

	monitoring.WalletBalanceChanges.WithLabelValues("credit").Inc()
	return balance, nil
}

// RecordRound folds the round into the player's totals and stores it.
// A round counts as a win when its profit is positive. Stats go first so an
// unknown player is reported before the history foreign key trips.
func (s *Service) RecordRound(ctx context.Context, r casino.Round) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var cashout sql.NullFloat64
	if r.CashoutPoint != nil {
		cashout = sql.NullFloat64{Float64: *r.CashoutPoint, Valid: true}
	}
	settled := r.SettledAt
	if settled.IsZero() {
		settled = s.now()
	}

	win := 0
	if r.Profit > 0 {
		win = 1
	}
	res, err := tx.ExecContext(ctx, `
	UPDATE users
	SET total_bets = total_bets + 1,
		total_wins = total_wins + ?,
		total_profit = total_profit + ?
	WHERE telegram_id = ?
	`, win, r.Profit, r.PlayerID)
	if err != nil {
		return fmt.Errorf("update player stats: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return casino.ErrPlayerNotFound
	}

	_, err = tx.ExecContext(ctx, `
	INSERT INTO game_history(session_id, telegram_id, bet_amount, crash_point, cashout_point, profit, created_at)
	VALUES (?,?,?,?,?,?,?)
	`, r.SessionID, r.PlayerID, r.Stake, r.CrashPoint, cashout, r.Profit, settled.UnixMilli())
	if err != nil {
		return fmt.Errorf("insert game history: %w", err)
	}

	return tx.Commit()
}

// EnsurePlayer creates the player with a zero balance on first sight.
func (s *Service) EnsurePlayer(ctx context.Context, uid int64, username, firstName string) (*Player, error) {
	_, err := s.db.ExecContext(ctx, `
	INSERT OR IGNORE INTO users(telegram_id, username, first_name, balance, created_at)
	VALUES (?, ?, ?, 0, ?)
	`, uid, nullString(username), nullString(firstName), s.now().Unix())
	if err != nil {
		return nil, fmt.Errorf("create player: %w", err)
	}
	return s.Player(ctx, uid)
}

func (s *Service) Player(ctx context.Context, uid int64) (*Player, error) {
	row := s.db.QueryRowContext(ctx, `
	SELECT telegram_id, username, first_name, balance, last_bonus,
		total_bets, total_wins, total_profit, created_at
	FROM users WHERE telegram_id = ?
	`, uid)
	p, err := scanPlayer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, casino.ErrPlayerNotFound
	}
	return p, err
}

// BonusStatus reports whether the daily bonus can be claimed and, if not,
// how many whole hours remain.
func (s *Service) BonusStatus(p *Player) (bool, int) {
	if p.LastBonus.IsZero() {
		return true, 0
	}
	left := p.LastBonus.Add(s.cooldown).Sub(s.now())
	if left <= 0 {
		return true, 0
	}
	return false, int(left.Hours())
}

type BonusResult struct {
	Amount    int64 `json:"bonus_amount"`
	Balance   int64 `json:"balance"`
	HoursLeft int   `json:"hours_left"`
}

// ClaimBonus credits the daily bonus once per cooldown window. On cooldown it
// returns ErrBonusCooldown together with the current balance and hours left.
func (s *Service) ClaimBonus(ctx context.Context, uid int64) (*BonusResult, error) {
	p, err := s.EnsurePlayer(ctx, uid, "", "")
	if err != nil {
		return nil, err
	}
	if ok, hours := s.BonusStatus(p); !ok {
		return &BonusResult{Balance: p.Balance, HoursLeft: hours}, ErrBonusCooldown
	}

	now := s.now()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	// the last_bonus guard makes a concurrent second claim a no-op
	res, err := tx.ExecContext(ctx, `
	UPDATE users SET balance = balance + ?, last_bonus = ?
	WHERE telegram_id = ? AND (last_bonus IS NULL OR last_bonus <= ?)
	`, s.bonus, now.Unix(), uid, now.Add(-s.cooldown).Unix())
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &BonusResult{Balance: p.Balance}, ErrBonusCooldown
	}
	if _, err := s.journal.Record(ctx, tx, ledger.PlayerAccount(uid), 0, s.bonus, "daily_bonus"); err != nil {
		return nil, err
	}
	balance, err := balanceTx(ctx, tx, uid)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	monitoring.WalletBalanceChanges.WithLabelValues("bonus").Inc()
	return &BonusResult{Amount: s.bonus, Balance: balance}, nil
}

// TopBalances ranks players by balance.
func (s *Service) TopBalances(ctx context.Context, limit int) ([]Player, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT telegram_id, username, first_name, balance, last_bonus,
		total_bets, total_wins, total_profit, created_at
	FROM users ORDER BY balance DESC, telegram_id LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Player
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// RecentRounds returns the player's latest rounds, newest first.
func (s *Service) RecentRounds(ctx context.Context, uid int64, limit int) ([]casino.Round, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT session_id, telegram_id, bet_amount, crash_point, cashout_point, profit, created_at
	FROM game_history WHERE telegram_id = ?
	ORDER BY created_at DESC, id DESC LIMIT ?
	`, uid, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []casino.Round
	for rows.Next() {
		var r casino.Round
		var cashout sql.NullFloat64
		var settled int64
		if err := rows.Scan(&r.SessionID, &r.PlayerID, &r.Stake, &r.CrashPoint, &cashout, &r.Profit, &settled); err != nil {
			return nil, err
		}
		if cashout.Valid {
			v := cashout.Float64
			r.CashoutPoint = &v
		}
		r.SettledAt = time.UnixMilli(settled)
		out = append(out, r)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPlayer(row scanner) (*Player, error) {
	var p Player
	var username, firstName sql.NullString
	var lastBonus sql.NullInt64
	var created int64
	err := row.Scan(&p.TelegramID, &username, &firstName, &p.Balance, &lastBonus,
		&p.TotalBets, &p.TotalWins, &p.TotalProfit, &created)
	if err != nil {
		return nil, err
	}
	p.Username = username.String
	p.FirstName = firstName.String
	if lastBonus.Valid {
		p.LastBonus = time.Unix(lastBonus.Int64, 0)
	}
	p.CreatedAt = time.Unix(created, 0)
	return &p, nil
}

func balanceTx(ctx context.Context, tx *sql.Tx, uid int64) (int64, error) {
	var balance int64
	err := tx.QueryRowContext(ctx, `SELECT balance FROM users WHERE telegram_id = ?`, uid).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, casino.ErrPlayerNotFound
	}
	return balance, err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
