package round

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vertibet/crash-services/internal/gamesvc/fair"
	"github.com/vertibet/crash-services/internal/gamesvc/models"
)

// Emitter publishes round events to the real-time transport. Payloads carry
// safe data only; the crash point and server seed appear exclusively in the
// crash event, after the round is over.
type Emitter interface {
	EmitRoundState(s SafeState)
	EmitTick(s SafeState)
	EmitBetPlaced(e BetEvent)
	EmitCashout(e CashoutEvent)
	EmitCrash(e CrashEvent)
}

// Settler applies the financial side of crash bets through the settlement
// pipeline: stake debit on placement, payout credit on cashout, loss record
// at crash.
type Settler interface {
	PlaceRoundBet(ctx context.Context, p RoundBetParams) (*models.Bet, error)
	CashoutRoundBet(ctx context.Context, p RoundCashoutParams) (*models.Bet, error)
	SettleRoundLoss(ctx context.Context, betID uuid.UUID) error
}

// Archiver persists finished rounds with their revealed seeds.
type Archiver interface {
	ArchiveRound(ctx context.Context, a *models.RoundArchive) error
}

// RoundBetParams is handed to the settler when a bet enters the round.
type RoundBetParams struct {
	UserID      int64
	TenantID    int64
	Stake       decimal.Decimal
	AutoCashout decimal.Decimal
	Sequence    int64
	SeedHash    string
}

// RoundCashoutParams is handed to the settler when a bet cashes out.
type RoundCashoutParams struct {
	BetID      uuid.UUID
	UserID     int64
	TenantID   int64
	Stake      decimal.Decimal
	Multiplier decimal.Decimal
}

type BetEvent struct {
	Sequence int64     `json:"sequence"`
	BetID    uuid.UUID `json:"bet_id"`
	UserID   int64     `json:"user_id"`
	Stake    string    `json:"stake"`
}

type CashoutEvent struct {
	Sequence   int64     `json:"sequence"`
	BetID      uuid.UUID `json:"bet_id"`
	UserID     int64     `json:"user_id"`
	Multiplier string    `json:"multiplier"`
	Payout     string    `json:"payout"`
}

// CrashEvent reveals the round: crash point plus the seed behind it.
type CrashEvent struct {
	Sequence       int64  `json:"sequence"`
	CrashPoint     string `json:"crash_point"`
	ServerSeed     string `json:"server_seed"`
	ServerSeedHash string `json:"server_seed_hash"`
}

// Config tunes the round lifecycle. Zero fields fall back to defaults.
type Config struct {
	BetWindow     time.Duration // waiting state duration
	TickInterval  time.Duration
	CrashPause    time.Duration // crashed state display duration
	GrowthRate    float64       // multiplier e-fold rate per second
	MaxMultiplier float64
	HouseEdge     float64
	MasterSeed    string // rotating master seed; per-round seeds derive from it
	ClientSeed    string // public client seed for shared rounds
	StoreTimeout  time.Duration
}

func (c *Config) defaults() {
	if c.BetWindow <= 0 {
		c.BetWindow = 6 * time.Second
	}
	if c.TickInterval <= 0 {
		c.TickInterval = 100 * time.Millisecond
	}
	if c.CrashPause <= 0 {
		c.CrashPause = 4 * time.Second
	}
	if c.GrowthRate <= 0 {
		c.GrowthRate = 0.06
	}
	if c.MaxMultiplier <= 0 {
		c.MaxMultiplier = 10000
	}
	if c.HouseEdge <= 0 {
		c.HouseEdge = 0.04
	}
	if c.ClientSeed == "" {
		c.ClientSeed = "crash-public"
	}
	if c.StoreTimeout <= 0 {
		c.StoreTimeout = 5 * time.Second
	}
}

// BetRequest is a place-bet command from a player connection.
type BetRequest struct {
	UserID      int64
	TenantID    int64
	Stake       decimal.Decimal
	AutoCashout decimal.Decimal
}

type placeBetCmd struct {
	req  BetRequest
	resp chan betResult
}

type cashoutCmd struct {
	userID int64
	resp   chan betResult
}

type stateCmd struct {
	resp chan SafeState
}

type betResult struct {
	bet *models.Bet
	err error
}

// Engine drives the round state machine. All round state is confined to the
// run goroutine; the exported methods only exchange commands with it.
type Engine struct {
	cfg      Config
	emitter  Emitter
	settler  Settler
	archiver Archiver

	cmds  chan interface{}
	quit  chan struct{}
	done  chan struct{}
	round *Round
	seq   int64
}

func NewEngine(cfg Config, emitter Emitter, settler Settler, archiver Archiver) *Engine {
	cfg.defaults()
	return &Engine{
		cfg:      cfg,
		emitter:  emitter,
		settler:  settler,
		archiver: archiver,
		cmds:     make(chan interface{}),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// SetEmitter installs the event emitter. The broker needs the engine to route
// player commands and the engine needs the broker to emit events, so wiring
// happens in two steps. Must be called before Start.
func (e *Engine) SetEmitter(emitter Emitter) {
	e.emitter = emitter
}

// Start launches the engine goroutine and opens the first betting window.
func (e *Engine) Start() {
	go e.run()
}

// Stop terminates the engine after the current command finishes.
func (e *Engine) Stop() {
	close(e.quit)
	<-e.done
}

func (e *Engine) run() {
	defer close(e.done)

	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()

	e.startRound(time.Now())

	for {
		select {
		case <-e.quit:
			return
		case cmd := <-e.cmds:
			e.handle(cmd)
		case t := <-ticker.C:
			e.step(t)
		}
	}
}

// PlaceBet submits a bet for the current waiting round. The stake is debited
// atomically before the bet joins the round.
func (e *Engine) PlaceBet(ctx context.Context, req BetRequest) (*models.Bet, error) {
	cmd := placeBetCmd{req: req, resp: make(chan betResult, 1)}
	return e.send(ctx, cmd, cmd.resp)
}

// Cashout cashes the user's bet out at the current multiplier. Validated
// against authoritative round state at commit time: a cashout arriving after
// the crash tick is rejected outright.
func (e *Engine) Cashout(ctx context.Context, userID int64) (*models.Bet, error) {
	cmd := cashoutCmd{userID: userID, resp: make(chan betResult, 1)}
	return e.send(ctx, cmd, cmd.resp)
}

// CurrentState returns the safe snapshot of the live round.
func (e *Engine) CurrentState(ctx context.Context) (SafeState, error) {
	cmd := stateCmd{resp: make(chan SafeState, 1)}
	select {
	case e.cmds <- cmd:
	case <-e.quit:
		return SafeState{}, ErrEngineStopped
	case <-ctx.Done():
		return SafeState{}, ctx.Err()
	}
	select {
	case s := <-cmd.resp:
		return s, nil
	case <-ctx.Done():
		return SafeState{}, ctx.Err()
	}
}

func (e *Engine) send(ctx context.Context, cmd interface{}, resp chan betResult) (*models.Bet, error) {
	select {
	case e.cmds <- cmd:
	case <-e.quit:
		return nil, ErrEngineStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case r := <-resp:
		return r.bet, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (e *Engine) handle(cmd interface{}) {
	switch c := cmd.(type) {
	case placeBetCmd:
		bet, err := e.handlePlaceBet(c.req)
		c.resp <- betResult{bet: bet, err: err}
	case cashoutCmd:
		bet, err := e.handleCashout(c.userID)
		c.resp <- betResult{bet: bet, err: err}
	case stateCmd:
		c.resp <- e.round.safeState()
	default:
		log.Errorf("round engine: unknown command %T", cmd)
	}
}

func (e *Engine) handlePlaceBet(req BetRequest) (*models.Bet, error) {
	if e.round.State != StateWaiting {
		return nil, ErrBetsClosed
	}
	if _, ok := e.round.Bets[req.UserID]; ok {
		return nil, ErrAlreadyBet
	}

	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.StoreTimeout)
	defer cancel()

	bet, err := e.settler.PlaceRoundBet(ctx, RoundBetParams{
		UserID:      req.UserID,
		TenantID:    req.TenantID,
		Stake:       req.Stake,
		AutoCashout: req.AutoCashout,
		Sequence:    e.round.Sequence,
		SeedHash:    e.round.ServerSeedHash,
	})
	if err != nil {
		return nil, err
	}

	e.round.Bets[req.UserID] = &Bet{
		ID:          bet.ID,
		UserID:      req.UserID,
		TenantID:    req.TenantID,
		Stake:       req.Stake,
		AutoCashout: req.AutoCashout,
	}

	e.emitter.EmitBetPlaced(BetEvent{
		Sequence: e.round.Sequence,
		BetID:    bet.ID,
		UserID:   req.UserID,
		Stake:    req.Stake.StringFixed(2),
	})

	return bet, nil
}

func (e *Engine) handleCashout(userID int64) (*models.Bet, error) {
	if e.round.State != StateRunning {
		return nil, ErrCashoutClosed
	}

	rb, ok := e.round.Bets[userID]
	if !ok {
		return nil, ErrNoBet
	}
	if rb.CashedOut {
		return nil, ErrAlreadyCashed
	}

	return e.cashoutBet(rb, e.round.Multiplier)
}

func (e *Engine) cashoutBet(rb *Bet, multiplier decimal.Decimal) (*models.Bet, error) {
	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.StoreTimeout)
	defer cancel()

	bet, err := e.settler.CashoutRoundBet(ctx, RoundCashoutParams{
		BetID:      rb.ID,
		UserID:     rb.UserID,
		TenantID:   rb.TenantID,
		Stake:      rb.Stake,
		Multiplier: multiplier,
	})
	if err != nil {
		return nil, err
	}

	rb.CashedOut = true
	rb.CashoutAt = multiplier

	e.emitter.EmitCashout(CashoutEvent{
		Sequence:   e.round.Sequence,
		BetID:      rb.ID,
		UserID:     rb.UserID,
		Multiplier: multiplier.StringFixed(2),
		Payout:     bet.Payout.StringFixed(2),
	})

	return bet, nil
}

// step advances the state machine on one tick.
func (e *Engine) step(now time.Time) {
	switch e.round.State {
	case StateWaiting:
		if now.Sub(e.round.stateSince) >= e.cfg.BetWindow {
			e.startRunning(now)
		}
	case StateRunning:
		e.advance(now)
	case StateCrashed:
		if now.Sub(e.round.stateSince) >= e.cfg.CrashPause {
			e.startRound(now)
		}
	}
}

func (e *Engine) startRunning(now time.Time) {
	e.round.State = StateRunning
	e.round.StartedAt = now
	e.round.stateSince = now
	e.round.Multiplier = decimal.NewFromInt(1)
	e.emitter.EmitRoundState(e.round.safeState())
}

// advance moves the multiplier along the growth curve, fires auto-cashouts
// and detects the crash.
func (e *Engine) advance(now time.Time) {
	m := e.multiplierAt(now.Sub(e.round.StartedAt))

	crashed := m.GreaterThanOrEqual(e.round.CrashPoint)
	if crashed {
		m = e.round.CrashPoint
	}
	e.round.Multiplier = m

	// Auto-cashouts fire at their target, which in continuous time happened
	// before the crash commits. A target at or above the crash point loses.
	for _, rb := range e.round.Bets {
		if rb.CashedOut || rb.AutoCashout.IsZero() {
			continue
		}
		if rb.AutoCashout.LessThanOrEqual(m) && rb.AutoCashout.LessThan(e.round.CrashPoint) {
			if _, err := e.cashoutBet(rb, rb.AutoCashout); err != nil {
				log.Errorf("round %d: auto cashout bet %s: %v", e.round.Sequence, rb.ID, err)
			}
		}
	}

	if crashed {
		e.crash(now)
		return
	}

	e.emitter.EmitTick(e.round.safeState())
}

func (e *Engine) crash(now time.Time) {
	e.round.State = StateCrashed
	e.round.stateSince = now

	// every bet still standing is lost
	for _, rb := range e.round.Bets {
		if rb.CashedOut {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), e.cfg.StoreTimeout)
		if err := e.settler.SettleRoundLoss(ctx, rb.ID); err != nil {
			log.Errorf("round %d: settle loss bet %s: %v", e.round.Sequence, rb.ID, err)
		}
		cancel()
	}

	e.emitter.EmitCrash(CrashEvent{
		Sequence:       e.round.Sequence,
		CrashPoint:     e.round.CrashPoint.StringFixed(2),
		ServerSeed:     e.round.ServerSeed,
		ServerSeedHash: e.round.ServerSeedHash,
	})

	if e.archiver != nil {
		ctx, cancel := context.WithTimeout(context.Background(), e.cfg.StoreTimeout)
		err := e.archiver.ArchiveRound(ctx, &models.RoundArchive{
			ID:             e.round.ID,
			Sequence:       e.round.Sequence,
			CrashPoint:     e.round.CrashPoint,
			ServerSeed:     e.round.ServerSeed,
			ServerSeedHash: e.round.ServerSeedHash,
			StartedAt:      e.round.StartedAt,
			CrashedAt:      now,
		})
		cancel()
		if err != nil {
			log.Errorf("round %d: archive: %v", e.round.Sequence, err)
		}
	}
}

// startRound opens the next betting window with a fresh derived seed and a
// crash point fixed for the whole round.
func (e *Engine) startRound(now time.Time) {
	e.seq++

	serverSeed := fair.DeriveRoundSeed(e.cfg.MasterSeed, e.seq)
	r := fair.Draw(serverSeed, e.cfg.ClientSeed, e.seq)

	e.round = &Round{
		ID:             uuid.New(),
		Sequence:       e.seq,
		State:          StateWaiting,
		ServerSeed:     serverSeed,
		ServerSeedHash: fair.HashSeed(serverSeed),
		CrashPoint:     fair.CrashPoint(r, e.cfg.HouseEdge, e.cfg.MaxMultiplier),
		Multiplier:     decimal.NewFromInt(1),
		Bets:           make(map[int64]*Bet),
		stateSince:     now,
	}

	e.emitter.EmitRoundState(e.round.safeState())
}

// multiplierAt is the growth curve: 1.00 * e^(rate*t), floored to 2 decimals.
func (e *Engine) multiplierAt(elapsed time.Duration) decimal.Decimal {
	m := math.Exp(e.cfg.GrowthRate * elapsed.Seconds())
	if m > e.cfg.MaxMultiplier {
		m = e.cfg.MaxMultiplier
	}
	d := decimal.NewFromFloat(m).RoundFloor(2)
	if d.LessThan(decimal.NewFromInt(1)) {
		d = decimal.NewFromInt(1)
	}
	return d
}
