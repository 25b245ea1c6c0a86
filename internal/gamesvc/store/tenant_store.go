package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/vertibet/crash-services/internal/gamesvc/models"
)

// TenantStore reads and writes per-tenant configuration. It is the loader
// behind the tenant resolver's cache; the admin handlers write through it and
// then invalidate the cache.
type TenantStore struct {
	db *pgxpool.Pool
}

func NewTenantStore(db *pgxpool.Pool) *TenantStore {
	return &TenantStore{db: db}
}

func (s *TenantStore) GameConfig(ctx context.Context, tenantID int64, gameType string) (*models.TenantGameConfig, error) {
	cfg := &models.TenantGameConfig{}
	err := s.db.QueryRow(ctx, `
		SELECT tenant_id, game_type, house_edge, updated_at
		FROM tenant_game_configs
		WHERE tenant_id = $1 AND game_type = $2
	`, tenantID, gameType).Scan(
		&cfg.TenantID,
		&cfg.GameType,
		&cfg.HouseEdge,
		&cfg.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // no explicit config, caller falls back to defaults
		}
		return nil, fmt.Errorf("failed to get tenant game config: %w", err)
	}
	return cfg, nil
}

func (s *TenantStore) RiskLimit(ctx context.Context, tenantID int64) (*models.TenantRiskLimit, error) {
	rl := &models.TenantRiskLimit{}
	err := s.db.QueryRow(ctx, `
		SELECT tenant_id, max_bet_amount, max_payout_per_bet, max_payout_per_day,
		       daily_payout_used, last_reset_date, active, updated_at
		FROM tenant_risk_limits
		WHERE tenant_id = $1
	`, tenantID).Scan(
		&rl.TenantID,
		&rl.MaxBetAmount,
		&rl.MaxPayoutPerBet,
		&rl.MaxPayoutPerDay,
		&rl.DailyPayoutUsed,
		&rl.LastResetDate,
		&rl.Active,
		&rl.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get tenant risk limit: %w", err)
	}
	return rl, nil
}

func (s *TenantStore) UpsertGameConfig(ctx context.Context, tenantID int64, gameType string, houseEdge float64) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO tenant_game_configs (tenant_id, game_type, house_edge, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (tenant_id, game_type)
		DO UPDATE SET house_edge = EXCLUDED.house_edge, updated_at = NOW()
	`, tenantID, gameType, houseEdge)
	if err != nil {
		return fmt.Errorf("failed to upsert tenant game config: %w", err)
	}
	return nil
}

func (s *TenantStore) UpsertRiskLimit(ctx context.Context, tenantID int64, maxBet, perBet, perDay decimal.Decimal) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO tenant_risk_limits (tenant_id, max_bet_amount, max_payout_per_bet, max_payout_per_day, daily_payout_used, last_reset_date, active, updated_at)
		VALUES ($1, $2, $3, $4, 0, CURRENT_DATE, true, NOW())
		ON CONFLICT (tenant_id)
		DO UPDATE SET max_bet_amount = EXCLUDED.max_bet_amount,
		              max_payout_per_bet = EXCLUDED.max_payout_per_bet,
		              max_payout_per_day = EXCLUDED.max_payout_per_day,
		              active = true,
		              updated_at = NOW()
	`, tenantID, maxBet, perBet, perDay)
	if err != nil {
		return fmt.Errorf("failed to upsert tenant risk limit: %w", err)
	}
	return nil
}
