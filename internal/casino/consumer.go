package casino

import (
	"encoding/json"
	"fmt"

	"github.com/Ansocialov1337/my-crash-game/internal/event"
)

type Broadcaster interface {
	BroadcastJSON(v interface{})
}

// RegisterConsumers hooks the side effects of a settled round onto the bus.
// Money has already moved by the time these run.
func RegisterConsumers(bus *event.Bus, audit Auditor, ws Broadcaster, board *Leaderboard, rtp *RTPController) {

	bus.Subscribe(event.EventRoundSettled, func(payload interface{}) {

		round, ok := payload.(*Round)
		if !ok {
			return
		}

		if board != nil {
			board.Record(round.PlayerID, round.Profit)
		}
		if rtp != nil {
			rtp.Record(round.Stake, round.Stake+round.Profit)
		}

		if audit != nil {
			meta, _ := json.Marshal(round)
			action := "crash_loss"
			if round.Win() {
				action = "crash_win"
			}
			audit.Log(round.PlayerID, action, string(meta))
		}

		if ws != nil {
			ws.BroadcastJSON(feedMessage{Type: "round_settled", Data: publicRound(*round)})
		}
	})

	bus.Subscribe(event.EventBetPlaced, func(payload interface{}) {

		sess, ok := payload.(*Session)
		if !ok {
			return
		}

		if audit != nil {
			audit.Log(sess.PlayerID, "crash_bet", fmt.Sprintf(`{"session_id":%q,"stake":%d}`, sess.ID, sess.Stake))
		}

		if ws != nil {
			ws.BroadcastJSON(feedMessage{Type: "bet_placed", Data: map[string]interface{}{
				"player_id": sess.PlayerID,
				"stake":     sess.Stake,
			}})
		}
	})
}

type feedMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// publicRound strips the session id before a round goes out on the public feed.
func publicRound(r Round) Round {
	r.SessionID = ""
	return r
}
