package casino

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"
)

type memLedger struct {
	mu       sync.Mutex
	balances map[int64]int64
	rounds   []Round

	failDebit  error
	failCredit error
	failRecord error
}

func newMemLedger(balances map[int64]int64) *memLedger {
	return &memLedger{balances: balances}
}

func (l *memLedger) GetBalance(_ context.Context, uid int64) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.balances[uid]
	if !ok {
		return 0, ErrPlayerNotFound
	}
	return b, nil
}

func (l *memLedger) Debit(_ context.Context, uid int64, amount int64) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failDebit != nil {
		return 0, l.failDebit
	}
	b, ok := l.balances[uid]
	if !ok {
		return 0, ErrPlayerNotFound
	}
	if b < amount {
		return 0, ErrInsufficientFunds
	}
	l.balances[uid] = b - amount
	return b - amount, nil
}

func (l *memLedger) Credit(_ context.Context, uid int64, amount int64) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failCredit != nil {
		return 0, l.failCredit
	}
	l.balances[uid] += amount
	return l.balances[uid], nil
}

func (l *memLedger) RecordRound(_ context.Context, r Round) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failRecord != nil {
		return l.failRecord
	}
	l.rounds = append(l.rounds, r)
	return nil
}

func (l *memLedger) balance(uid int64) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[uid]
}

type auditEntry struct {
	uid    int64
	action string
}

type memAudit struct {
	mu      sync.Mutex
	entries []auditEntry
}

func (a *memAudit) Log(uid int64, action string, _ string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, auditEntry{uid, action})
}

// fixedDistribution always yields crash.
func fixedDistribution(t *testing.T, crash float64) *Distribution {
	t.Helper()
	d, err := NewDistribution([]Tier{{Name: "fixed", Probability: 1, Min: crash - 0.01, Max: crash}})
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func newTestService(t *testing.T, ledger *memLedger, crash float64, opts Options) *Service {
	t.Helper()
	if opts.RNG == nil {
		opts.RNG = &seqRNG{vals: []float64{0}}
	}
	if opts.Risk == nil {
		opts.Risk = NewRisk(1, 1_000_000)
	}
	return NewService(ledger, fixedDistribution(t, crash), opts)
}

func TestCashoutWinScenario(t *testing.T) {
	ctx := context.Background()
	ledger := newMemLedger(map[int64]int64{1: 1000})
	svc := newTestService(t, ledger, 2.50, Options{})

	bet, err := svc.PlaceBet(ctx, 1, 100)
	if err != nil {
		t.Fatalf("PlaceBet: %v", err)
	}
	if bet.CrashPoint != 2.50 || bet.Balance != 900 || bet.SessionID == "" {
		t.Fatalf("unexpected bet %+v", bet)
	}

	res, err := svc.Cashout(ctx, CashoutRequest{PlayerID: 1, Multiplier: 2.00})
	if err != nil {
		t.Fatalf("Cashout: %v", err)
	}
	if res.Winnings != 200 || res.Profit != 100 || res.Balance != 1100 || res.Multiplier != 2.00 {
		t.Fatalf("unexpected result %+v", res)
	}

	if len(ledger.rounds) != 1 {
		t.Fatalf("expected one recorded round, got %d", len(ledger.rounds))
	}
	r := ledger.rounds[0]
	if r.CashoutPoint == nil || *r.CashoutPoint != 2.00 || r.Profit != 100 || r.CrashPoint != 2.50 {
		t.Fatalf("unexpected round %+v", r)
	}
}

func TestCashoutLossScenario(t *testing.T) {
	ctx := context.Background()
	ledger := newMemLedger(map[int64]int64{1: 1000})
	svc := newTestService(t, ledger, 2.50, Options{})

	if _, err := svc.PlaceBet(ctx, 1, 100); err != nil {
		t.Fatalf("PlaceBet: %v", err)
	}

	_, err := svc.Cashout(ctx, CashoutRequest{PlayerID: 1, Multiplier: 3.00})
	if !errors.Is(err, ErrCrashed) {
		t.Fatalf("expected ErrCrashed, got %v", err)
	}
	if PublicMessage(err) != "crash already occurred" {
		t.Fatalf("unexpected message %q", PublicMessage(err))
	}
	if b := ledger.balance(1); b != 900 {
		t.Fatalf("expected balance 900, got %d", b)
	}
	if n := len(svc.Sessions()); n != 0 {
		t.Fatalf("expected no session left, got %d", n)
	}
	r := ledger.rounds[0]
	if r.CashoutPoint != nil || r.Profit != -100 {
		t.Fatalf("unexpected loss round %+v", r)
	}
}

func TestCashoutBoundary(t *testing.T) {
	ctx := context.Background()

	ledger := newMemLedger(map[int64]int64{1: 1000})
	svc := newTestService(t, ledger, 2.50, Options{})
	svc.PlaceBet(ctx, 1, 100)
	res, err := svc.Cashout(ctx, CashoutRequest{PlayerID: 1, Multiplier: 2.50})
	if err != nil {
		t.Fatalf("claim equal to crash point must win: %v", err)
	}
	if res.Winnings != 250 {
		t.Fatalf("expected 250, got %d", res.Winnings)
	}

	svc.PlaceBet(ctx, 1, 100)
	if _, err := svc.Cashout(ctx, CashoutRequest{PlayerID: 1, Multiplier: 2.51}); !errors.Is(err, ErrCrashed) {
		t.Fatalf("claim one step above crash point must lose, got %v", err)
	}
}

func TestCashoutExactlyOnce(t *testing.T) {
	ctx := context.Background()
	for _, m := range []float64{1.5, 4.0} {
		ledger := newMemLedger(map[int64]int64{1: 1000})
		svc := newTestService(t, ledger, 2.50, Options{})
		svc.PlaceBet(ctx, 1, 100)

		_, first := svc.Cashout(ctx, CashoutRequest{PlayerID: 1, Multiplier: m})
		if first != nil && !errors.Is(first, ErrCrashed) {
			t.Fatalf("m=%v: first cashout: %v", m, first)
		}
		_, second := svc.Cashout(ctx, CashoutRequest{PlayerID: 1, Multiplier: m})
		if !errors.Is(second, ErrNoActiveSession) {
			t.Fatalf("m=%v: expected ErrNoActiveSession on retry, got %v", m, second)
		}
		if len(ledger.rounds) != 1 {
			t.Fatalf("m=%v: expected one round, got %d", m, len(ledger.rounds))
		}
	}
}

func TestCashoutConcurrent(t *testing.T) {
	ctx := context.Background()
	ledger := newMemLedger(map[int64]int64{1: 1000})
	svc := newTestService(t, ledger, 2.50, Options{})
	if _, err := svc.PlaceBet(ctx, 1, 100); err != nil {
		t.Fatal(err)
	}

	const callers = 32
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := svc.Cashout(ctx, CashoutRequest{PlayerID: 1, Multiplier: 2.0})
			errs <- err
		}()
	}
	close(start)
	wg.Wait()
	close(errs)

	ok, none := 0, 0
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrNoActiveSession):
			none++
		default:
			t.Fatalf("unexpected error %v", err)
		}
	}
	if ok != 1 || none != callers-1 {
		t.Fatalf("expected 1 success and %d misses, got %d/%d", callers-1, ok, none)
	}
	if b := ledger.balance(1); b != 1100 {
		t.Fatalf("expected single payout, balance %d", b)
	}
}

func TestPlaceBetValidation(t *testing.T) {
	ctx := context.Background()
	ledger := newMemLedger(map[int64]int64{1: 1000})
	svc := newTestService(t, ledger, 2.0, Options{Risk: NewRisk(1, 500)})

	for _, stake := range []int64{0, -5, 501} {
		if _, err := svc.PlaceBet(ctx, 1, stake); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("stake %d: expected ErrInvalidInput, got %v", stake, err)
		}
	}

	svc = newTestService(t, ledger, 2.0, Options{})
	if _, err := svc.PlaceBet(ctx, 1, 1001); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if _, err := svc.PlaceBet(ctx, 2, 10); !errors.Is(err, ErrPlayerNotFound) {
		t.Fatalf("expected ErrPlayerNotFound, got %v", err)
	}
	if b := ledger.balance(1); b != 1000 {
		t.Fatalf("rejected bets must not move money, balance %d", b)
	}
	if len(svc.Sessions()) != 0 {
		t.Fatal("rejected bets must not open sessions")
	}
}

func TestInvalidMultiplier(t *testing.T) {
	ctx := context.Background()
	ledger := newMemLedger(map[int64]int64{1: 1000})
	svc := newTestService(t, ledger, 2.0, Options{})
	svc.PlaceBet(ctx, 1, 100)

	for _, m := range []float64{0, 0.99, -1, math.NaN(), math.Inf(1)} {
		if _, err := svc.Cashout(ctx, CashoutRequest{PlayerID: 1, Multiplier: m}); !errors.Is(err, ErrInvalidMultiplier) {
			t.Fatalf("m=%v: expected ErrInvalidMultiplier, got %v", m, err)
		}
	}
	if len(svc.Sessions()) != 1 {
		t.Fatal("invalid claims must leave the session open")
	}
}

func TestSingleSessionPolicy(t *testing.T) {
	ctx := context.Background()
	ledger := newMemLedger(map[int64]int64{1: 1000})
	svc := newTestService(t, ledger, 2.0, Options{})

	if _, err := svc.PlaceBet(ctx, 1, 100); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.PlaceBet(ctx, 1, 100); !errors.Is(err, ErrSessionActive) {
		t.Fatalf("expected ErrSessionActive, got %v", err)
	}
	if b := ledger.balance(1); b != 900 {
		t.Fatalf("second bet must not debit, balance %d", b)
	}
}

func TestMultiSessionPolicy(t *testing.T) {
	ctx := context.Background()
	ledger := newMemLedger(map[int64]int64{1: 1000})
	now := time.Unix(1_700_000_000, 0)
	svc := newTestService(t, ledger, 2.0, Options{
		MultiSession: true,
		Now: func() time.Time {
			now = now.Add(time.Millisecond)
			return now
		},
	})

	first, err := svc.PlaceBet(ctx, 1, 100)
	if err != nil {
		t.Fatal(err)
	}
	second, err := svc.PlaceBet(ctx, 1, 200)
	if err != nil {
		t.Fatalf("second bet: %v", err)
	}

	res, err := svc.Cashout(ctx, CashoutRequest{PlayerID: 1, SessionID: second.SessionID, Multiplier: 1.5})
	if err != nil {
		t.Fatalf("cashout by id: %v", err)
	}
	if res.SessionID != second.SessionID || res.Winnings != 300 {
		t.Fatalf("unexpected result %+v", res)
	}

	// someone else's session id is not found for this player
	if _, err := svc.Cashout(ctx, CashoutRequest{PlayerID: 2, SessionID: first.SessionID, Multiplier: 1.5}); !errors.Is(err, ErrNoActiveSession) {
		t.Fatalf("expected ErrNoActiveSession, got %v", err)
	}

	res, err = svc.Cashout(ctx, CashoutRequest{PlayerID: 1, Multiplier: 1.0})
	if err != nil || res.SessionID != first.SessionID {
		t.Fatalf("expected oldest session to settle, got %+v %v", res, err)
	}
}

func TestMoneyConservation(t *testing.T) {
	ctx := context.Background()
	const initial = 100000
	ledger := newMemLedger(map[int64]int64{1: initial})
	dist, err := NewDistribution(DefaultTiers())
	if err != nil {
		t.Fatal(err)
	}
	rng := NewSeededRNG(7)
	svc := NewService(ledger, dist, Options{RNG: rng})

	claims := NewSeededRNG(99)
	var lost, won int64
	for i := 0; i < 500; i++ {
		stake := int64(1 + i%50)
		if _, err := svc.PlaceBet(ctx, 1, stake); err != nil {
			t.Fatalf("bet %d: %v", i, err)
		}
		m := math.Round((1+claims.Float64()*4)*100) / 100
		res, err := svc.Cashout(ctx, CashoutRequest{PlayerID: 1, Multiplier: m})
		switch {
		case err == nil:
			won += res.Winnings
		case errors.Is(err, ErrCrashed):
			lost += stake
		default:
			t.Fatalf("cashout %d: %v", i, err)
		}
	}

	var staked int64
	for _, r := range ledger.rounds {
		staked += r.Stake
	}
	want := initial - staked + won
	if got := ledger.balance(1); got != want {
		t.Fatalf("balance %d, want %d", got, want)
	}
	if lost == 0 || won == 0 {
		t.Fatalf("sequence should contain wins and losses (won=%d lost=%d)", won, lost)
	}
}

func TestWinningsUseExactDecimal(t *testing.T) {
	ctx := context.Background()
	ledger := newMemLedger(map[int64]int64{1: 1000})
	svc := newTestService(t, ledger, 5.0, Options{})
	svc.PlaceBet(ctx, 1, 100)

	// 100 * 2.01 is 200.99999999999997 in float64
	res, err := svc.Cashout(ctx, CashoutRequest{PlayerID: 1, Multiplier: 2.01})
	if err != nil {
		t.Fatal(err)
	}
	if res.Winnings != 201 || res.Profit != 101 {
		t.Fatalf("expected 201/101, got %d/%d", res.Winnings, res.Profit)
	}
}

func TestDuplicateSessionRefunds(t *testing.T) {
	ctx := context.Background()
	ledger := newMemLedger(map[int64]int64{1: 1000})
	svc := newTestService(t, ledger, 2.0, Options{
		MultiSession: true,
		NewID:        func(int64, time.Time) string { return "same" },
	})

	if _, err := svc.PlaceBet(ctx, 1, 100); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.PlaceBet(ctx, 1, 100); !errors.Is(err, ErrDuplicateSession) {
		t.Fatalf("expected ErrDuplicateSession, got %v", err)
	}
	if b := ledger.balance(1); b != 900 {
		t.Fatalf("duplicate bet must be refunded, balance %d", b)
	}
}

func TestGatewayFailureOnDebit(t *testing.T) {
	ctx := context.Background()
	ledger := newMemLedger(map[int64]int64{1: 1000})
	ledger.failDebit = errors.New("disk full")
	svc := newTestService(t, ledger, 2.0, Options{})

	_, err := svc.PlaceBet(ctx, 1, 100)
	if !errors.Is(err, ErrGatewayFailure) {
		t.Fatalf("expected ErrGatewayFailure, got %v", err)
	}
	var gerr *GatewayError
	if !errors.As(err, &gerr) || gerr.Op != "debit" || gerr.Err.Error() != "disk full" {
		t.Fatalf("gateway error must carry the ledger failure, got %v", err)
	}
	if len(svc.Sessions()) != 0 {
		t.Fatal("failed debit must not open a session")
	}
}

func TestGatewayFailureOnCreditIsReported(t *testing.T) {
	ctx := context.Background()
	ledger := newMemLedger(map[int64]int64{1: 1000})
	audit := &memAudit{}
	svc := newTestService(t, ledger, 2.0, Options{Audit: audit})

	if _, err := svc.PlaceBet(ctx, 1, 100); err != nil {
		t.Fatal(err)
	}
	ledger.failCredit = errors.New("connection reset")

	_, err := svc.Cashout(ctx, CashoutRequest{PlayerID: 1, Multiplier: 1.5})
	if !errors.Is(err, ErrGatewayFailure) {
		t.Fatalf("expected ErrGatewayFailure, got %v", err)
	}
	if PublicMessage(err) != "internal error" {
		t.Fatalf("gateway failures must not leak details, got %q", PublicMessage(err))
	}

	// no double settlement on retry
	ledger.failCredit = nil
	if _, err := svc.Cashout(ctx, CashoutRequest{PlayerID: 1, Multiplier: 1.5}); !errors.Is(err, ErrNoActiveSession) {
		t.Fatalf("expected ErrNoActiveSession after partial failure, got %v", err)
	}

	if len(audit.entries) != 1 || audit.entries[0].action != "reconcile_required" {
		t.Fatalf("expected a reconcile_required audit entry, got %+v", audit.entries)
	}
}

func TestExpireSessions(t *testing.T) {
	ctx := context.Background()
	ledger := newMemLedger(map[int64]int64{1: 1000, 2: 1000})
	now := time.Unix(1_700_000_000, 0)
	svc := newTestService(t, ledger, 2.0, Options{Now: func() time.Time { return now }})

	svc.PlaceBet(ctx, 1, 100)
	now = now.Add(10 * time.Minute)
	svc.PlaceBet(ctx, 2, 50)

	if n, err := svc.ExpireSessions(ctx, 0); n != 0 || err != nil {
		t.Fatalf("zero max age disables expiry, got %d %v", n, err)
	}

	n, err := svc.ExpireSessions(ctx, 5*time.Minute)
	if err != nil || n != 1 {
		t.Fatalf("expected one expired session, got %d %v", n, err)
	}
	if _, err := svc.Cashout(ctx, CashoutRequest{PlayerID: 1, Multiplier: 1.1}); !errors.Is(err, ErrNoActiveSession) {
		t.Fatalf("expired session must be gone, got %v", err)
	}
	if _, err := svc.Cashout(ctx, CashoutRequest{PlayerID: 2, Multiplier: 1.1}); err != nil {
		t.Fatalf("fresh session must survive expiry: %v", err)
	}
	if r := ledger.rounds[0]; r.PlayerID != 1 || r.CashoutPoint != nil || r.Profit != -100 {
		t.Fatalf("expired session must settle as a loss, got %+v", r)
	}
	if b := ledger.balance(1); b != 900 {
		t.Fatalf("expired stake is lost, balance %d", b)
	}
}

func TestSessionIDsUnique(t *testing.T) {
	at := time.Unix(1_700_000_000, 0)
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := newSessionID(1, at)
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
	if id := newSessionID(42, at); !strings.HasPrefix(id, "42_") {
		t.Fatalf("id %s should start with the player id", id)
	}
}
