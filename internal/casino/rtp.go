package casino

import "sync"

// RTPController tracks how much of the staked volume went back to players.
type RTPController struct {
	mu          sync.Mutex
	TotalBet    int64
	TotalPayout int64
	Rounds      int64
	Wins        int64
}

type RTPSnapshot struct {
	TotalBet    int64   `json:"total_bet"`
	TotalPayout int64   `json:"total_payout"`
	Rounds      int64   `json:"rounds"`
	Wins        int64   `json:"wins"`
	RTP         float64 `json:"rtp"`
	HouseEdge   float64 `json:"house_edge"`
}

func NewRTP() *RTPController {
	return &RTPController{}
}

func (r *RTPController) Record(bet, payout int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.TotalBet += bet
	r.TotalPayout += payout
	r.Rounds++
	if payout > 0 {
		r.Wins++
	}
}

func (r *RTPController) Snapshot() RTPSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := RTPSnapshot{
		TotalBet:    r.TotalBet,
		TotalPayout: r.TotalPayout,
		Rounds:      r.Rounds,
		Wins:        r.Wins,
	}
	if r.TotalBet == 0 {
		return s
	}

	s.RTP = float64(r.TotalPayout) / float64(r.TotalBet)
	s.HouseEdge = 1 - s.RTP
	return s
}
