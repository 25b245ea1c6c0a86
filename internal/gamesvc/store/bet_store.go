package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vertibet/crash-services/internal/gamesvc/models"
)

// BetStore reads bet history. Writes go through WalletStore, inside the
// settlement transaction.
type BetStore struct {
	db *pgxpool.Pool
}

func NewBetStore(db *pgxpool.Pool) *BetStore {
	return &BetStore{db: db}
}

// ListByUser returns the user's newest bets first.
func (s *BetStore) ListByUser(ctx context.Context, userID, tenantID int64, limit int) ([]*models.Bet, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, tenant_id, game_type, stake, multiplier, payout, profit,
		       is_win, status, result_payload, round_sequence, auto_cashout,
		       server_seed_hash, client_seed, nonce, created_at, updated_at
		FROM bets
		WHERE user_id = $1 AND tenant_id = $2
		ORDER BY created_at DESC
		LIMIT $3
	`, userID, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list bets: %w", err)
	}
	defer rows.Close()

	var out []*models.Bet
	for rows.Next() {
		b := &models.Bet{}
		err := rows.Scan(
			&b.ID,
			&b.UserID,
			&b.TenantID,
			&b.GameType,
			&b.Stake,
			&b.Multiplier,
			&b.Payout,
			&b.Profit,
			&b.IsWin,
			&b.Status,
			&b.ResultPayload,
			&b.RoundSequence,
			&b.AutoCashout,
			&b.ServerSeedHash,
			&b.ClientSeed,
			&b.Nonce,
			&b.CreatedAt,
			&b.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bet: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
