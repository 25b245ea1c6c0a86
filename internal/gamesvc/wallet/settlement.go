// Package wallet is the settlement pipeline: the single place where a wager
// becomes money movement. Every financial effect of a bet (stake debit,
// payout credit, bet row, ledger rows, daily risk counter) is applied as one
// atomic unit by the backing store, or not at all.
package wallet

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vertibet/crash-services/internal/gamesvc/fair"
	"github.com/vertibet/crash-services/internal/gamesvc/games"
	"github.com/vertibet/crash-services/internal/gamesvc/models"
	"github.com/vertibet/crash-services/internal/gamesvc/round"
	"github.com/vertibet/crash-services/internal/gamesvc/tenant"
)

// Store is the transactional persistence the pipeline settles against.
// Settle and CashoutBet are all-or-nothing: a partial failure must leave no
// trace. The daily payout counter is advanced with an atomic conditional
// increment inside the same transaction, never a read-modify-write.
type Store interface {
	GetWallet(ctx context.Context, userID, tenantID int64, currency string) (*models.Wallet, error)
	Settle(ctx context.Context, p SettleParams) (*SettleResult, error)
	CashoutBet(ctx context.Context, p CashoutParams) (*SettleResult, error)
	MarkBetLost(ctx context.Context, betID uuid.UUID) error
}

// SeedStore hands out provably-fair draws: one strictly increasing nonce per
// call against the user's active seed, created lazily on first wager.
type SeedStore interface {
	NextNonce(ctx context.Context, userID int64) (*models.RoundSeed, error)
}

// SettleParams describes one complete wager settlement.
type SettleParams struct {
	UserID   int64
	TenantID int64
	Currency string
	Bet      *models.Bet
	// Limits the store enforces atomically; resolved (or defaulted) by the
	// caller so the store needs no config lookup inside the transaction.
	MaxPayoutPerDay decimal.Decimal
}

// CashoutParams credits the payout of an open crash bet.
type CashoutParams struct {
	BetID           uuid.UUID
	UserID          int64
	TenantID        int64
	Currency        string
	Multiplier      decimal.Decimal
	Payout          decimal.Decimal
	MaxPayoutPerDay decimal.Decimal
}

// SettleResult is the persisted wager plus the wallet balance after it.
type SettleResult struct {
	Bet          *models.Bet
	Balance      decimal.Decimal
	Transactions []*models.LedgerTransaction
}

// WagerRequest is a discrete-game wager as it arrives from a connection.
type WagerRequest struct {
	UserID   int64
	TenantID int64
	GameType string
	Stake    decimal.Decimal
	Params   games.Params
}

// WagerResult is what the player gets back: outcome, new balance and the
// fairness material needed to verify the draw later.
type WagerResult struct {
	Bet            *models.Bet
	Outcome        *games.Outcome
	Balance        decimal.Decimal
	ServerSeedHash string
	ClientSeed     string
	Nonce          int64
}

// Service validates and applies wagers. It also implements round.Settler for
// the crash engine.
type Service struct {
	store    Store
	seeds    SeedStore
	tenants  *tenant.Resolver
	limiter  *RateLimiter
	currency string
}

func NewService(store Store, seeds SeedStore, tenants *tenant.Resolver, limiter *RateLimiter, currency string) *Service {
	return &Service{
		store:    store,
		seeds:    seeds,
		tenants:  tenants,
		limiter:  limiter,
		currency: currency,
	}
}

// Balance returns the current wallet balance.
func (s *Service) Balance(ctx context.Context, userID, tenantID int64) (decimal.Decimal, error) {
	w, err := s.store.GetWallet(ctx, userID, tenantID, s.currency)
	if err != nil {
		return decimal.Zero, err
	}
	return w.Balance, nil
}

// PlaceWager runs a discrete-game wager end to end: rate limit, tenant
// config, fairness draw, resolver, then the atomic settlement. Any rejection
// leaves the wallet untouched.
func (s *Service) PlaceWager(ctx context.Context, req WagerRequest) (*WagerResult, error) {
	if !req.Stake.IsPositive() {
		return nil, &ValidationError{Reason: "stake must be positive"}
	}
	if !games.IsDiscrete(req.GameType) {
		return nil, &ValidationError{Reason: "unknown game type " + req.GameType}
	}

	if !s.limiter.Allow(req.UserID) {
		return nil, ErrRateLimited
	}

	cfg, err := s.tenants.Resolve(ctx, req.TenantID, req.GameType)
	if err != nil {
		return nil, err
	}
	if req.Stake.GreaterThan(cfg.MaxBetAmount) {
		return nil, &ValidationError{Reason: "stake exceeds tenant max bet " + cfg.MaxBetAmount.StringFixed(2)}
	}

	seed, err := s.seeds.NextNonce(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	draw := func(suffix string) float64 {
		if suffix == "" {
			return fair.Draw(seed.ServerSeed, seed.ClientSeed, seed.Nonce)
		}
		return fair.Draw(seed.ServerSeed, seed.ClientSeed, seed.Nonce, suffix)
	}

	outcome, err := games.Resolve(req.GameType, req.Stake, req.Params, games.Config{HouseEdge: cfg.HouseEdge}, draw)
	if err != nil {
		return nil, &ValidationError{Reason: err.Error()}
	}

	// risk caps apply to the payout only; a rejection aborts the whole wager
	if outcome.Payout.IsPositive() && outcome.Payout.GreaterThan(cfg.MaxPayoutPerBet) {
		return nil, &RiskLimitError{Scope: RiskScopePerBet, Limit: cfg.MaxPayoutPerBet, Requested: outcome.Payout}
	}

	now := time.Now().UTC()
	bet := &models.Bet{
		ID:             uuid.New(),
		UserID:         req.UserID,
		TenantID:       req.TenantID,
		GameType:       req.GameType,
		Stake:          req.Stake,
		Multiplier:     outcome.Multiplier,
		Payout:         outcome.Payout,
		Profit:         outcome.Profit,
		IsWin:          outcome.IsWin,
		Status:         models.BetStatusSettled,
		ResultPayload:  outcome.Payload,
		ServerSeedHash: seed.ServerSeedHash,
		ClientSeed:     seed.ClientSeed,
		Nonce:          seed.Nonce,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	res, err := s.store.Settle(ctx, SettleParams{
		UserID:          req.UserID,
		TenantID:        req.TenantID,
		Currency:        s.currency,
		Bet:             bet,
		MaxPayoutPerDay: cfg.MaxPayoutPerDay,
	})
	if err != nil {
		return nil, err
	}

	return &WagerResult{
		Bet:            res.Bet,
		Outcome:        outcome,
		Balance:        res.Balance,
		ServerSeedHash: seed.ServerSeedHash,
		ClientSeed:     seed.ClientSeed,
		Nonce:          seed.Nonce,
	}, nil
}

// PlaceRoundBet debits the stake for a crash bet. The bet stays open until
// cashout or crash.
func (s *Service) PlaceRoundBet(ctx context.Context, p round.RoundBetParams) (*models.Bet, error) {
	if !p.Stake.IsPositive() {
		return nil, &ValidationError{Reason: "stake must be positive"}
	}

	if !s.limiter.Allow(p.UserID) {
		return nil, ErrRateLimited
	}

	cfg, err := s.tenants.Resolve(ctx, p.TenantID, games.GameCrash)
	if err != nil {
		return nil, err
	}
	if p.Stake.GreaterThan(cfg.MaxBetAmount) {
		return nil, &ValidationError{Reason: "stake exceeds tenant max bet " + cfg.MaxBetAmount.StringFixed(2)}
	}

	now := time.Now().UTC()
	bet := &models.Bet{
		ID:             uuid.New(),
		UserID:         p.UserID,
		TenantID:       p.TenantID,
		GameType:       games.GameCrash,
		Stake:          p.Stake,
		Status:         models.BetStatusOpen,
		RoundSequence:  p.Sequence,
		AutoCashout:    p.AutoCashout,
		ServerSeedHash: p.SeedHash,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	res, err := s.store.Settle(ctx, SettleParams{
		UserID:   p.UserID,
		TenantID: p.TenantID,
		Currency: s.currency,
		Bet:      bet,
	})
	if err != nil {
		return nil, err
	}
	return res.Bet, nil
}

// CashoutRoundBet credits the payout of a running crash bet at the given
// multiplier, enforcing the tenant's payout caps.
func (s *Service) CashoutRoundBet(ctx context.Context, p round.RoundCashoutParams) (*models.Bet, error) {
	cfg, err := s.tenants.Resolve(ctx, p.TenantID, games.GameCrash)
	if err != nil {
		return nil, err
	}

	// multiplier is already at 2 decimals; one floor keeps the payout at cents
	payout := p.Stake.Mul(p.Multiplier).RoundFloor(2)
	if payout.GreaterThan(cfg.MaxPayoutPerBet) {
		return nil, &RiskLimitError{Scope: RiskScopePerBet, Limit: cfg.MaxPayoutPerBet, Requested: payout}
	}

	res, err := s.store.CashoutBet(ctx, CashoutParams{
		BetID:           p.BetID,
		UserID:          p.UserID,
		TenantID:        p.TenantID,
		Currency:        s.currency,
		Multiplier:      p.Multiplier,
		Payout:          payout,
		MaxPayoutPerDay: cfg.MaxPayoutPerDay,
	})
	if err != nil {
		return nil, err
	}
	return res.Bet, nil
}

// SettleRoundLoss finalizes a crash bet that rode into the crash. No money
// moves; the stake was taken at placement.
func (s *Service) SettleRoundLoss(ctx context.Context, betID uuid.UUID) error {
	return s.store.MarkBetLost(ctx, betID)
}
