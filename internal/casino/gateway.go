package casino

import "context"

// Ledger is the durable balance and history store the engine settles against.
// GetBalance and Debit report ErrPlayerNotFound for unknown players; Debit
// reports ErrInsufficientFunds instead of overdrawing.
type Ledger interface {
	GetBalance(ctx context.Context, playerID int64) (int64, error)
	Debit(ctx context.Context, playerID int64, amount int64) (int64, error)
	Credit(ctx context.Context, playerID int64, amount int64) (int64, error)
	RecordRound(ctx context.Context, round Round) error
}

type Publisher interface {
	Publish(event string, payload interface{})
}

type Auditor interface {
	Log(uid int64, action string, metadata string)
}
