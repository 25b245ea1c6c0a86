// Package tenant resolves per-tenant house edge and risk limits through a
// TTL cache with explicit invalidation. The admin path must call Invalidate
// synchronously after any config write; eviction is a correctness operation
// here, not best effort.
package tenant

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vertibet/crash-services/internal/gamesvc/models"
)

// Conservative defaults, used when a tenant has no explicit configuration or
// when the loader fails. Defaults never loosen caps a tenant has stored.
var (
	DefaultHouseEdge       = 0.04
	DefaultMaxBetAmount    = decimal.NewFromInt(1000)
	DefaultMaxPayoutPerBet = decimal.NewFromInt(10000)
	DefaultMaxPayoutPerDay = decimal.NewFromInt(100000)
)

const DefaultTTL = 5 * time.Minute

// Config is the resolved view the settlement pipeline consumes.
type Config struct {
	HouseEdge       float64
	MaxBetAmount    decimal.Decimal
	MaxPayoutPerBet decimal.Decimal
	MaxPayoutPerDay decimal.Decimal
}

// Loader reads tenant configuration from storage. Implementations return
// (nil, nil) when the tenant has no explicit row.
type Loader interface {
	GameConfig(ctx context.Context, tenantID int64, gameType string) (*models.TenantGameConfig, error)
	RiskLimit(ctx context.Context, tenantID int64) (*models.TenantRiskLimit, error)
}

type cacheKey struct {
	tenantID int64
	gameType string
}

type entry struct {
	cfg       Config
	expiresAt time.Time
}

// Resolver caches Config per (tenant, game) with a TTL.
type Resolver struct {
	mu      sync.Mutex
	loader  Loader
	ttl     time.Duration
	entries map[cacheKey]entry
	now     func() time.Time
}

func NewResolver(loader Loader, ttl time.Duration) *Resolver {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Resolver{
		loader:  loader,
		ttl:     ttl,
		entries: make(map[cacheKey]entry),
		now:     time.Now,
	}
}

// Resolve returns the tenant's config for a game, from cache when fresh.
// A loader failure falls back to the documented defaults rather than
// blocking play; the failure is not cached so the next call retries.
func (r *Resolver) Resolve(ctx context.Context, tenantID int64, gameType string) (Config, error) {
	key := cacheKey{tenantID: tenantID, gameType: gameType}

	r.mu.Lock()
	if e, ok := r.entries[key]; ok && r.now().Before(e.expiresAt) {
		r.mu.Unlock()
		return e.cfg, nil
	}
	r.mu.Unlock()

	cfg, err := r.load(ctx, tenantID, gameType)
	if err != nil {
		log.Warnf("tenant %d config load failed, using defaults: %v", tenantID, err)
		return defaults(), nil
	}

	r.mu.Lock()
	r.entries[key] = entry{cfg: cfg, expiresAt: r.now().Add(r.ttl)}
	r.mu.Unlock()

	return cfg, nil
}

// Invalidate evicts every cached entry for the tenant. Called synchronously
// by the admin path after a config write; stale edge or limits must not
// survive an update for the TTL window.
func (r *Resolver) Invalidate(tenantID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key := range r.entries {
		if key.tenantID == tenantID {
			delete(r.entries, key)
		}
	}
}

func (r *Resolver) load(ctx context.Context, tenantID int64, gameType string) (Config, error) {
	cfg := defaults()

	gc, err := r.loader.GameConfig(ctx, tenantID, gameType)
	if err != nil {
		return Config{}, err
	}
	if gc != nil {
		cfg.HouseEdge = gc.HouseEdge
	}

	rl, err := r.loader.RiskLimit(ctx, tenantID)
	if err != nil {
		return Config{}, err
	}
	if rl != nil && rl.Active {
		cfg.MaxBetAmount = rl.MaxBetAmount
		cfg.MaxPayoutPerBet = rl.MaxPayoutPerBet
		cfg.MaxPayoutPerDay = rl.MaxPayoutPerDay
	}

	return cfg, nil
}

func defaults() Config {
	return Config{
		HouseEdge:       DefaultHouseEdge,
		MaxBetAmount:    DefaultMaxBetAmount,
		MaxPayoutPerBet: DefaultMaxPayoutPerBet,
		MaxPayoutPerDay: DefaultMaxPayoutPerDay,
	}
}
