package casino

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidStake      = fmt.Errorf("%w: invalid stake", ErrInvalidInput)
	ErrInvalidMultiplier = fmt.Errorf("%w: invalid multiplier", ErrInvalidInput)

	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrPlayerNotFound    = errors.New("player not found")

	ErrNoActiveSession  = errors.New("no active session")
	ErrSessionActive    = errors.New("session already active")
	ErrDuplicateSession = errors.New("duplicate session")
	ErrSessionNotFound  = errors.New("session not found")

	ErrCrashed        = errors.New("crash already occurred")
	ErrGatewayFailure = errors.New("ledger gateway failure")
)

// GatewayError carries a ledger failure unchanged, tagged with the call that failed.
type GatewayError struct {
	Op  string
	Err error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("ledger %s: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

func (e *GatewayError) Is(target error) bool { return target == ErrGatewayFailure }

func gatewayErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrPlayerNotFound) || errors.Is(err, ErrInsufficientFunds) {
		return err
	}
	return &GatewayError{Op: op, Err: err}
}

// PublicMessage turns an engine error into the short text shown to players.
func PublicMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidStake):
		return "invalid bet amount"
	case errors.Is(err, ErrInvalidMultiplier):
		return "invalid multiplier"
	case errors.Is(err, ErrInsufficientFunds):
		return "not enough coins"
	case errors.Is(err, ErrPlayerNotFound):
		return "player not found"
	case errors.Is(err, ErrNoActiveSession):
		return "no active game"
	case errors.Is(err, ErrSessionActive):
		return "a game is already running"
	case errors.Is(err, ErrCrashed):
		return "crash already occurred"
	default:
		return "internal error"
	}
}
