package casino

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Ansocialov1337/my-crash-game/internal/event"
	"github.com/Ansocialov1337/my-crash-game/internal/monitoring"
)

type Options struct {
	Risk *RiskEngine
	RNG  RandomSource
	Now  func() time.Time

	// NewID builds session ids; the registry still rejects duplicates.
	NewID func(playerID int64, at time.Time) string

	Logger *zap.Logger
	Events Publisher
	Audit  Auditor

	// MultiSession lets a player hold several open sessions at once.
	// When false a second bet is rejected with ErrSessionActive.
	MultiSession bool
}

// Service is the settlement engine. mu is held across ledger calls so a
// player's balance is never read stale and a session settles at most once.
type Service struct {
	mu sync.Mutex

	ledger   Ledger
	dist     *Distribution
	registry *Registry
	risk     *RiskEngine
	rng      RandomSource
	now      func() time.Time
	newID    func(int64, time.Time) string
	log      *zap.Logger
	events   Publisher
	audit    Auditor
	multi    bool
}

func NewService(ledger Ledger, dist *Distribution, opts Options) *Service {
	s := &Service{
		ledger:   ledger,
		dist:     dist,
		registry: NewRegistry(),
		risk:     opts.Risk,
		rng:      opts.RNG,
		now:      opts.Now,
		newID:    opts.NewID,
		log:      opts.Logger,
		events:   opts.Events,
		audit:    opts.Audit,
		multi:    opts.MultiSession,
	}
	if s.risk == nil {
		s.risk = NewRisk(1, 0)
	}
	if s.rng == nil {
		s.rng = DefaultRNG()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = newSessionID
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	return s
}

func newSessionID(playerID int64, at time.Time) string {
	suffix, _, _ := strings.Cut(uuid.NewString(), "-")
	return fmt.Sprintf("%d_%d_%s", playerID, at.UnixMilli(), suffix)
}

// PlaceBet debits the stake, draws a crash point and opens a session.
// The session only becomes visible after the debit succeeded.
func (s *Service) PlaceBet(ctx context.Context, playerID int64, stake int64) (*BetResult, error) {
	if err := s.risk.Validate(stake); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.multi {
		if _, ok := s.registry.FirstForPlayer(playerID); ok {
			return nil, ErrSessionActive
		}
	}

	balance, err := s.ledger.GetBalance(ctx, playerID)
	if err != nil {
		return nil, gatewayErr("get_balance", err)
	}
	if stake > balance {
		return nil, ErrInsufficientFunds
	}

	balance, err = s.ledger.Debit(ctx, playerID, stake)
	if err != nil {
		return nil, gatewayErr("debit", err)
	}

	now := s.now()
	sess := Session{
		ID:         s.newID(playerID, now),
		PlayerID:   playerID,
		Stake:      stake,
		CrashPoint: s.dist.Sample(s.rng),
		CreatedAt:  now,
	}

	if err := s.registry.Insert(sess); err != nil {
		if _, rerr := s.ledger.Credit(context.WithoutCancel(ctx), playerID, stake); rerr != nil {
			s.reconcile("refund", sess, 0, rerr)
		}
		return nil, err
	}

	monitoring.BetsPlaced.Inc()
	monitoring.ActiveSessions.Set(float64(s.registry.Len()))
	if s.events != nil {
		placed := sess
		s.events.Publish(event.EventBetPlaced, &placed)
	}

	s.log.Info("bet placed",
		zap.Int64("player_id", playerID),
		zap.String("session_id", sess.ID),
		zap.Int64("stake", stake),
		zap.Float64("crash_point", sess.CrashPoint),
	)

	return &BetResult{
		SessionID:  sess.ID,
		CrashPoint: sess.CrashPoint,
		Balance:    balance,
	}, nil
}

// Cashout settles the player's session at the claimed multiplier. A claim
// above the crash point settles as a loss and returns ErrCrashed. Either way
// the session is gone afterwards, so a repeated call gets ErrNoActiveSession.
func (s *Service) Cashout(ctx context.Context, req CashoutRequest) (*CashoutResult, error) {
	m := req.Multiplier
	if math.IsNaN(m) || math.IsInf(m, 0) || m < 1 {
		return nil, ErrInvalidMultiplier
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.lookup(req)
	if !ok {
		return nil, ErrNoActiveSession
	}
	sess, err := s.registry.Remove(sess.ID)
	if err != nil {
		return nil, ErrNoActiveSession
	}

	// past this point the session is claimed; finish even if the caller goes away
	ctx = context.WithoutCancel(ctx)

	if m > sess.CrashPoint {
		round := s.lossRound(sess)
		if err := s.ledger.RecordRound(ctx, round); err != nil {
			s.reconcile("record_round", sess, m, err)
			return nil, gatewayErr("record_round", err)
		}
		s.settled(round)
		return nil, ErrCrashed
	}

	winnings := decimal.NewFromInt(sess.Stake).
		Mul(decimal.NewFromFloat(m)).
		Floor().
		IntPart()
	profit := winnings - sess.Stake

	balance, err := s.ledger.Credit(ctx, sess.PlayerID, winnings)
	if err != nil {
		s.reconcile("credit", sess, m, err)
		return nil, gatewayErr("credit", err)
	}

	cashout := m
	round := Round{
		SessionID:    sess.ID,
		PlayerID:     sess.PlayerID,
		Stake:        sess.Stake,
		CrashPoint:   sess.CrashPoint,
		CashoutPoint: &cashout,
		Profit:       profit,
		SettledAt:    s.now(),
	}
	if err := s.ledger.RecordRound(ctx, round); err != nil {
		s.reconcile("record_round", sess, m, err)
		return nil, gatewayErr("record_round", err)
	}
	s.settled(round)

	return &CashoutResult{
		SessionID:  sess.ID,
		Winnings:   winnings,
		Profit:     profit,
		Balance:    balance,
		Multiplier: m,
		CrashPoint: sess.CrashPoint,
	}, nil
}

// ExpireSessions settles every session older than maxAge as a loss.
func (s *Service) ExpireSessions(ctx context.Context, maxAge time.Duration) (int, error) {
	if maxAge <= 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx = context.WithoutCancel(ctx)
	var expired int
	var firstErr error
	for _, sess := range s.registry.Expired(s.now().Add(-maxAge)) {
		if _, err := s.registry.Remove(sess.ID); err != nil {
			continue
		}
		round := s.lossRound(sess)
		if err := s.ledger.RecordRound(ctx, round); err != nil {
			s.reconcile("expire", sess, 0, err)
			if firstErr == nil {
				firstErr = gatewayErr("record_round", err)
			}
			continue
		}
		s.settled(round)
		expired++
	}
	return expired, firstErr
}

// Sessions lists open sessions, oldest first.
func (s *Service) Sessions() []Session {
	return s.registry.List()
}

func (s *Service) Distribution() *Distribution { return s.dist }

func (s *Service) lookup(req CashoutRequest) (Session, bool) {
	if req.SessionID == "" {
		return s.registry.FirstForPlayer(req.PlayerID)
	}
	sess, ok := s.registry.Get(req.SessionID)
	if !ok || sess.PlayerID != req.PlayerID {
		return Session{}, false
	}
	return sess, true
}

func (s *Service) lossRound(sess Session) Round {
	return Round{
		SessionID:  sess.ID,
		PlayerID:   sess.PlayerID,
		Stake:      sess.Stake,
		CrashPoint: sess.CrashPoint,
		Profit:     -sess.Stake,
		SettledAt:  s.now(),
	}
}

func (s *Service) settled(round Round) {
	outcome := "loss"
	if round.Win() {
		outcome = "win"
	}
	monitoring.Settlements.WithLabelValues(outcome).Inc()
	monitoring.ActiveSessions.Set(float64(s.registry.Len()))

	if s.events != nil {
		s.events.Publish(event.EventRoundSettled, &round)
	}

	s.log.Info("round settled",
		zap.Int64("player_id", round.PlayerID),
		zap.String("session_id", round.SessionID),
		zap.String("outcome", outcome),
		zap.Int64("profit", round.Profit),
	)
}

// reconcile records a settlement the ledger only partly applied. Nothing is
// compensated automatically.
func (s *Service) reconcile(op string, sess Session, multiplier float64, err error) {
	monitoring.ReconcileRequired.WithLabelValues(op).Inc()

	s.log.Error("settlement requires manual reconciliation",
		zap.String("op", op),
		zap.String("session_id", sess.ID),
		zap.Int64("player_id", sess.PlayerID),
		zap.Int64("stake", sess.Stake),
		zap.Float64("crash_point", sess.CrashPoint),
		zap.Float64("multiplier", multiplier),
		zap.Error(err),
	)

	if s.audit != nil {
		meta, _ := json.Marshal(map[string]interface{}{
			"op":         op,
			"session":    sess,
			"multiplier": multiplier,
			"error":      err.Error(),
		})
		s.audit.Log(sess.PlayerID, "reconcile_required", string(meta))
	}
}
