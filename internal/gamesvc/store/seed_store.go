package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vertibet/crash-services/internal/gamesvc/fair"
	"github.com/vertibet/crash-services/internal/gamesvc/models"
)

const defaultClientSeed = "player-seed"

// SeedStore manages per-user provably-fair seed pairs. A user has at most one
// active seed; the nonce advances in the database so draws stay strictly
// ordered even across service instances.
type SeedStore struct {
	db *pgxpool.Pool
}

func NewSeedStore(db *pgxpool.Pool) *SeedStore {
	return &SeedStore{db: db}
}

// NextNonce advances and returns the user's active seed, creating one on
// first use. The nonce is consumed even if the wager it feeds later fails;
// gaps are acceptable, reuse is not.
func (s *SeedStore) NextNonce(ctx context.Context, userID int64) (*models.RoundSeed, error) {
	seed, err := s.advance(ctx, userID)
	if err == nil {
		return seed, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	if _, err := s.create(ctx, userID, defaultClientSeed); err != nil {
		return nil, err
	}
	return s.advance(ctx, userID)
}

// GetActiveSeed returns the user's current seed pair, creating one if needed.
// The caller must not expose ServerSeed while the seed is active.
func (s *SeedStore) GetActiveSeed(ctx context.Context, userID int64) (*models.RoundSeed, error) {
	seed := &models.RoundSeed{}
	err := s.db.QueryRow(ctx, `
		SELECT id, user_id, server_seed, server_seed_hash, client_seed, nonce, active, revealed_at, created_at, updated_at
		FROM round_seeds
		WHERE user_id = $1 AND active
	`, userID).Scan(
		&seed.ID,
		&seed.UserID,
		&seed.ServerSeed,
		&seed.ServerSeedHash,
		&seed.ClientSeed,
		&seed.Nonce,
		&seed.Active,
		&seed.RevealedAt,
		&seed.CreatedAt,
		&seed.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return s.create(ctx, userID, defaultClientSeed)
		}
		return nil, fmt.Errorf("failed to get active seed: %w", err)
	}
	return seed, nil
}

// RotateSeed retires the active seed, revealing its server seed, and installs
// a fresh pair with the given client seed. Returns the revealed old seed and
// the new one.
func (s *SeedStore) RotateSeed(ctx context.Context, userID int64, clientSeed string) (*models.RoundSeed, *models.RoundSeed, error) {
	if clientSeed == "" {
		clientSeed = defaultClientSeed
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	old := &models.RoundSeed{}
	err = tx.QueryRow(ctx, `
		UPDATE round_seeds
		SET active = false, revealed_at = NOW(), updated_at = NOW()
		WHERE user_id = $1 AND active
		RETURNING id, user_id, server_seed, server_seed_hash, client_seed, nonce, active, revealed_at, created_at, updated_at
	`, userID).Scan(
		&old.ID,
		&old.UserID,
		&old.ServerSeed,
		&old.ServerSeedHash,
		&old.ClientSeed,
		&old.Nonce,
		&old.Active,
		&old.RevealedAt,
		&old.CreatedAt,
		&old.UpdatedAt,
	)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, fmt.Errorf("failed to retire seed: %w", err)
	}
	if errors.Is(err, pgx.ErrNoRows) {
		old = nil
	}

	next, err := insertSeed(ctx, tx, userID, clientSeed)
	if err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("commit rotate: %w", err)
	}

	return old, next, nil
}

func (s *SeedStore) advance(ctx context.Context, userID int64) (*models.RoundSeed, error) {
	seed := &models.RoundSeed{}
	err := s.db.QueryRow(ctx, `
		UPDATE round_seeds
		SET nonce = nonce + 1, updated_at = NOW()
		WHERE user_id = $1 AND active
		RETURNING id, user_id, server_seed, server_seed_hash, client_seed, nonce, active, revealed_at, created_at, updated_at
	`, userID).Scan(
		&seed.ID,
		&seed.UserID,
		&seed.ServerSeed,
		&seed.ServerSeedHash,
		&seed.ClientSeed,
		&seed.Nonce,
		&seed.Active,
		&seed.RevealedAt,
		&seed.CreatedAt,
		&seed.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to advance nonce: %w", err)
	}
	return seed, nil
}

func (s *SeedStore) create(ctx context.Context, userID int64, clientSeed string) (*models.RoundSeed, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	seed, err := insertSeed(ctx, tx, userID, clientSeed)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit seed: %w", err)
	}
	return seed, nil
}

func insertSeed(ctx context.Context, tx pgx.Tx, userID int64, clientSeed string) (*models.RoundSeed, error) {
	serverSeed, err := fair.NewServerSeed()
	if err != nil {
		return nil, fmt.Errorf("failed to generate server seed: %w", err)
	}

	now := time.Now().UTC()
	seed := &models.RoundSeed{
		UserID:         userID,
		ServerSeed:     serverSeed,
		ServerSeedHash: fair.HashSeed(serverSeed),
		ClientSeed:     clientSeed,
		Nonce:          0,
		Active:         true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO round_seeds (user_id, server_seed, server_seed_hash, client_seed, nonce, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, true, $6, $7)
		RETURNING id
	`, seed.UserID, seed.ServerSeed, seed.ServerSeedHash, seed.ClientSeed, seed.Nonce, seed.CreatedAt, seed.UpdatedAt).Scan(&seed.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert seed: %w", err)
	}

	return seed, nil
}
