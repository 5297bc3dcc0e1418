package casino

import "time"

// Session is one in-flight bet. CrashPoint never changes after creation.
type Session struct {
	ID         string    `json:"id"`
	PlayerID   int64     `json:"player_id"`
	Stake      int64     `json:"stake"`
	CrashPoint float64   `json:"crash_point"`
	CreatedAt  time.Time `json:"created_at"`
}

// Round is the settled outcome handed to the ledger. CashoutPoint is nil on a loss.
type Round struct {
	SessionID    string    `json:"session_id"`
	PlayerID     int64     `json:"player_id"`
	Stake        int64     `json:"stake"`
	CrashPoint   float64   `json:"crash_point"`
	CashoutPoint *float64  `json:"cashout_point"`
	Profit       int64     `json:"profit"`
	SettledAt    time.Time `json:"settled_at"`
}

func (r Round) Win() bool { return r.CashoutPoint != nil }

type BetResult struct {
	SessionID  string  `json:"game_id"`
	CrashPoint float64 `json:"crash_point"`
	Balance    int64   `json:"balance"`
}

type CashoutRequest struct {
	PlayerID   int64
	SessionID  string // optional, only meaningful with multiple sessions per player
	Multiplier float64
}

type CashoutResult struct {
	SessionID  string  `json:"game_id"`
	Winnings   int64   `json:"winnings"`
	Profit     int64   `json:"profit"`
	Balance    int64   `json:"balance"`
	Multiplier float64 `json:"multiplier"`
	CrashPoint float64 `json:"crash_point"`
}
