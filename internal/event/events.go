package event

const (
	EventBetPlaced    = "casino.bet_placed"
	EventRoundSettled = "casino.round_settled"
)
