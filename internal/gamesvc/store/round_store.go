package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vertibet/crash-services/internal/gamesvc/models"
)

// RoundStore archives finished crash rounds. Archived rounds carry the
// revealed server seed, so anyone can recompute the crash point.
type RoundStore struct {
	db *pgxpool.Pool
}

func NewRoundStore(db *pgxpool.Pool) *RoundStore {
	return &RoundStore{db: db}
}

func (s *RoundStore) ArchiveRound(ctx context.Context, a *models.RoundArchive) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO round_archives (id, sequence, crash_point, server_seed, server_seed_hash, started_at, crashed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (sequence) DO NOTHING
	`, a.ID, a.Sequence, a.CrashPoint, a.ServerSeed, a.ServerSeedHash, a.StartedAt, a.CrashedAt)
	if err != nil {
		return fmt.Errorf("failed to archive round: %w", err)
	}
	return nil
}

func (s *RoundStore) GetBySequence(ctx context.Context, sequence int64) (*models.RoundArchive, error) {
	a := &models.RoundArchive{}
	err := s.db.QueryRow(ctx, `
		SELECT id, sequence, crash_point, server_seed, server_seed_hash, started_at, crashed_at
		FROM round_archives
		WHERE sequence = $1
	`, sequence).Scan(
		&a.ID,
		&a.Sequence,
		&a.CrashPoint,
		&a.ServerSeed,
		&a.ServerSeedHash,
		&a.StartedAt,
		&a.CrashedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get round: %w", err)
	}
	return a, nil
}

// ListRecent returns the newest rounds first, for the round history feed.
func (s *RoundStore) ListRecent(ctx context.Context, limit int) ([]*models.RoundArchive, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, sequence, crash_point, server_seed, server_seed_hash, started_at, crashed_at
		FROM round_archives
		ORDER BY sequence DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list rounds: %w", err)
	}
	defer rows.Close()

	var out []*models.RoundArchive
	for rows.Next() {
		a := &models.RoundArchive{}
		err := rows.Scan(
			&a.ID,
			&a.Sequence,
			&a.CrashPoint,
			&a.ServerSeed,
			&a.ServerSeedHash,
			&a.StartedAt,
			&a.CrashedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan round: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
