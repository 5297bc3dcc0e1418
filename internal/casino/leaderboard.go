package casino

import (
	"sort"
	"sync"
)

type LeaderboardEntry struct {
	UID    int64 `json:"uid"`
	Profit int64 `json:"profit"`
}

// Leaderboard ranks players by profit settled since the process started.
type Leaderboard struct {
	data map[int64]int64
	mu   sync.Mutex
}

func NewLeaderboard() *Leaderboard {
	return &Leaderboard{
		data: make(map[int64]int64),
	}
}

func (l *Leaderboard) Record(uid int64, profit int64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.data[uid] += profit
}

func (l *Leaderboard) Top(n int) []LeaderboardEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries := make([]LeaderboardEntry, 0, len(l.data))

	for uid, profit := range l.data {
		entries = append(entries, LeaderboardEntry{
			UID:    uid,
			Profit: profit,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Profit == entries[j].Profit {
			return entries[i].UID < entries[j].UID
		}
		return entries[i].Profit > entries[j].Profit
	})

	if n > 0 && len(entries) > n {
		return entries[:n]
	}

	return entries
}
