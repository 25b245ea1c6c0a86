package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/vertibet/crash-services/internal/gamesvc/models"
	"github.com/vertibet/crash-services/internal/gamesvc/wallet"
)

// WalletStore applies settlements against Postgres. Every settlement runs in
// a single transaction with the wallet row locked FOR UPDATE, so concurrent
// wagers on the same wallet serialize and the ledger chain stays contiguous.
type WalletStore struct {
	db *pgxpool.Pool
}

func NewWalletStore(db *pgxpool.Pool) *WalletStore {
	return &WalletStore{db: db}
}

func (s *WalletStore) GetWallet(ctx context.Context, userID, tenantID int64, currency string) (*models.Wallet, error) {
	query := `
		SELECT id, user_id, tenant_id, currency, balance, created_at, updated_at
		FROM wallets
		WHERE user_id = $1 AND tenant_id = $2 AND currency = $3
	`

	w := &models.Wallet{}
	err := s.db.QueryRow(ctx, query, userID, tenantID, currency).Scan(
		&w.ID,
		&w.UserID,
		&w.TenantID,
		&w.Currency,
		&w.Balance,
		&w.CreatedAt,
		&w.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, wallet.ErrWalletNotFound
		}
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}

	return w, nil
}

// Settle persists a wager atomically: wallet lock, balance check, daily risk
// counter, bet row, ledger rows, balance update. Any failure rolls the whole
// thing back.
func (s *WalletStore) Settle(ctx context.Context, p wallet.SettleParams) (*wallet.SettleResult, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	w, err := lockWallet(ctx, tx, p.UserID, p.TenantID, p.Currency)
	if err != nil {
		return nil, err
	}

	bet := p.Bet
	if bet.Stake.GreaterThan(w.Balance) {
		return nil, wallet.ErrInsufficientBalance
	}

	if bet.Payout.IsPositive() && p.MaxPayoutPerDay.IsPositive() {
		if err := consumeDailyPayout(ctx, tx, p.TenantID, bet.Payout, p.MaxPayoutPerDay); err != nil {
			return nil, err
		}
	}

	if err := insertBet(ctx, tx, bet); err != nil {
		return nil, err
	}

	balance := w.Balance
	txns := make([]*models.LedgerTransaction, 0, 2)

	stakeTxn, balance, err := insertLedger(ctx, tx, w.ID, bet.ID, models.LedgerTypeStake, bet.Stake.Neg(), balance)
	if err != nil {
		return nil, err
	}
	txns = append(txns, stakeTxn)

	if bet.Payout.IsPositive() {
		var payoutTxn *models.LedgerTransaction
		payoutTxn, balance, err = insertLedger(ctx, tx, w.ID, bet.ID, models.LedgerTypePayout, bet.Payout, balance)
		if err != nil {
			return nil, err
		}
		txns = append(txns, payoutTxn)
	}

	if err := updateWalletBalance(ctx, tx, w.ID, balance); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit settle: %w", err)
	}

	return &wallet.SettleResult{Bet: bet, Balance: balance, Transactions: txns}, nil
}

// CashoutBet credits the payout of an open bet and closes it. The bet row is
// locked first so a duplicate cashout finds it already closed and fails.
func (s *WalletStore) CashoutBet(ctx context.Context, p wallet.CashoutParams) (*wallet.SettleResult, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	bet := &models.Bet{}
	err = tx.QueryRow(ctx, `
		SELECT id, user_id, tenant_id, game_type, stake, status, round_sequence,
		       auto_cashout, server_seed_hash, created_at
		FROM bets
		WHERE id = $1 AND user_id = $2 AND status = $3
		FOR UPDATE
	`, p.BetID, p.UserID, models.BetStatusOpen).Scan(
		&bet.ID,
		&bet.UserID,
		&bet.TenantID,
		&bet.GameType,
		&bet.Stake,
		&bet.Status,
		&bet.RoundSequence,
		&bet.AutoCashout,
		&bet.ServerSeedHash,
		&bet.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, wallet.ErrBetNotOpen
		}
		return nil, fmt.Errorf("failed to lock bet: %w", err)
	}

	w, err := lockWallet(ctx, tx, p.UserID, p.TenantID, p.Currency)
	if err != nil {
		return nil, err
	}

	if p.MaxPayoutPerDay.IsPositive() {
		if err := consumeDailyPayout(ctx, tx, p.TenantID, p.Payout, p.MaxPayoutPerDay); err != nil {
			return nil, err
		}
	}

	bet.Multiplier = p.Multiplier
	bet.Payout = p.Payout
	bet.Profit = p.Payout.Sub(bet.Stake)
	bet.IsWin = true
	bet.Status = models.BetStatusCashedOut
	bet.UpdatedAt = time.Now().UTC()

	_, err = tx.Exec(ctx, `
		UPDATE bets
		SET multiplier = $2, payout = $3, profit = $4, is_win = true,
		    status = $5, updated_at = $6
		WHERE id = $1
	`, bet.ID, bet.Multiplier, bet.Payout, bet.Profit, bet.Status, bet.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to close bet: %w", err)
	}

	payoutTxn, balance, err := insertLedger(ctx, tx, w.ID, bet.ID, models.LedgerTypePayout, p.Payout, w.Balance)
	if err != nil {
		return nil, err
	}

	if err := updateWalletBalance(ctx, tx, w.ID, balance); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit cashout: %w", err)
	}

	return &wallet.SettleResult{
		Bet:          bet,
		Balance:      balance,
		Transactions: []*models.LedgerTransaction{payoutTxn},
	}, nil
}

// MarkBetLost closes an open bet with no payout. The stake was taken at
// placement, so no money moves. Idempotent: a bet already closed is left alone.
func (s *WalletStore) MarkBetLost(ctx context.Context, betID uuid.UUID) error {
	_, err := s.db.Exec(ctx, `
		UPDATE bets
		SET status = $2, is_win = false, payout = 0, profit = -stake, updated_at = $3
		WHERE id = $1 AND status = $4
	`, betID, models.BetStatusLost, time.Now().UTC(), models.BetStatusOpen)
	if err != nil {
		return fmt.Errorf("failed to mark bet lost: %w", err)
	}
	return nil
}

func lockWallet(ctx context.Context, tx pgx.Tx, userID, tenantID int64, currency string) (*models.Wallet, error) {
	w := &models.Wallet{}
	err := tx.QueryRow(ctx, `
		SELECT id, user_id, tenant_id, currency, balance, created_at, updated_at
		FROM wallets
		WHERE user_id = $1 AND tenant_id = $2 AND currency = $3
		FOR UPDATE
	`, userID, tenantID, currency).Scan(
		&w.ID,
		&w.UserID,
		&w.TenantID,
		&w.Currency,
		&w.Balance,
		&w.CreatedAt,
		&w.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, wallet.ErrWalletNotFound
		}
		return nil, fmt.Errorf("failed to lock wallet: %w", err)
	}
	return w, nil
}

// consumeDailyPayout advances the tenant's daily payout counter with a
// conditional increment. The WHERE clause is the cap check, so concurrent
// settlements can never push the counter past the limit.
func consumeDailyPayout(ctx context.Context, tx pgx.Tx, tenantID int64, payout, maxPerDay decimal.Decimal) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO tenant_risk_limits (tenant_id, daily_payout_used, last_reset_date)
		VALUES ($1, 0, CURRENT_DATE)
		ON CONFLICT (tenant_id) DO NOTHING
	`, tenantID)
	if err != nil {
		return fmt.Errorf("failed to provision risk limit: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE tenant_risk_limits
		SET daily_payout_used = 0, last_reset_date = CURRENT_DATE, updated_at = NOW()
		WHERE tenant_id = $1 AND last_reset_date < CURRENT_DATE
	`, tenantID)
	if err != nil {
		return fmt.Errorf("failed to reset daily payout: %w", err)
	}

	var used decimal.Decimal
	err = tx.QueryRow(ctx, `
		UPDATE tenant_risk_limits
		SET daily_payout_used = daily_payout_used + $2, updated_at = NOW()
		WHERE tenant_id = $1 AND daily_payout_used + $2 <= $3
		RETURNING daily_payout_used
	`, tenantID, payout, maxPerDay).Scan(&used)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &wallet.RiskLimitError{Scope: wallet.RiskScopePerDay, Limit: maxPerDay, Requested: payout}
		}
		return fmt.Errorf("failed to consume daily payout: %w", err)
	}

	return nil
}

func insertBet(ctx context.Context, tx pgx.Tx, b *models.Bet) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO bets (
			id, user_id, tenant_id, game_type, stake, multiplier, payout, profit,
			is_win, status, result_payload, round_sequence, auto_cashout,
			server_seed_hash, client_seed, nonce, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`, b.ID, b.UserID, b.TenantID, b.GameType, b.Stake, b.Multiplier, b.Payout, b.Profit,
		b.IsWin, b.Status, b.ResultPayload, b.RoundSequence, b.AutoCashout,
		b.ServerSeedHash, b.ClientSeed, b.Nonce, b.CreatedAt, b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert bet: %w", err)
	}
	return nil
}

func insertLedger(ctx context.Context, tx pgx.Tx, walletID int64, betID uuid.UUID, ttype string, amount, balanceBefore decimal.Decimal) (*models.LedgerTransaction, decimal.Decimal, error) {
	txn := &models.LedgerTransaction{
		ID:            uuid.New(),
		WalletID:      walletID,
		BetID:         betID,
		TType:         ttype,
		Amount:        amount,
		BalanceBefore: balanceBefore,
		BalanceAfter:  balanceBefore.Add(amount),
		CreatedAt:     time.Now().UTC(),
	}

	_, err := tx.Exec(ctx, `
		INSERT INTO ledger_transactions (id, wallet_id, bet_id, ttype, amount, balance_before, balance_after, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, txn.ID, txn.WalletID, txn.BetID, txn.TType, txn.Amount, txn.BalanceBefore, txn.BalanceAfter, txn.CreatedAt)
	if err != nil {
		return nil, decimal.Zero, fmt.Errorf("failed to insert ledger transaction: %w", err)
	}

	return txn, txn.BalanceAfter, nil
}

func updateWalletBalance(ctx context.Context, tx pgx.Tx, walletID int64, balance decimal.Decimal) error {
	_, err := tx.Exec(ctx, `
		UPDATE wallets SET balance = $2, updated_at = NOW() WHERE id = $1
	`, walletID, balance)
	if err != nil {
		return fmt.Errorf("failed to update wallet balance: %w", err)
	}
	return nil
}
