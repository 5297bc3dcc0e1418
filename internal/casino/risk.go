package casino

// RiskEngine bounds the stake a player may put on one round.
type RiskEngine struct {
	MinBet int64
	MaxBet int64
}

func NewRisk(minBet, maxBet int64) *RiskEngine {
	if minBet < 1 {
		minBet = 1
	}
	return &RiskEngine{
		MinBet: minBet,
		MaxBet: maxBet,
	}
}

func (r *RiskEngine) Validate(stake int64) error {
	if stake <= 0 || stake < r.MinBet {
		return ErrInvalidStake
	}
	if r.MaxBet > 0 && stake > r.MaxBet {
		return ErrInvalidStake
	}
	return nil
}
