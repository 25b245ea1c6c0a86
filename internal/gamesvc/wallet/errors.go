package wallet

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Settlement failure taxonomy. Every rejection happens before any state
// change: a rejected wager never takes the stake.
var (
	ErrRateLimited         = errors.New("wallet: wagering too fast, retry shortly")
	ErrInsufficientBalance = errors.New("wallet: insufficient balance")
	ErrWalletNotFound      = errors.New("wallet: wallet not found")
	ErrBetNotOpen          = errors.New("wallet: bet not found or not open")
)

// RiskScope identifies which tenant cap a payout tripped.
type RiskScope string

const (
	RiskScopePerBet RiskScope = "per_bet"
	RiskScopePerDay RiskScope = "per_day"
)

// RiskLimitError rejects the entire wager when a payout would exceed a
// tenant cap. The whole operation aborts; the stake is never taken.
type RiskLimitError struct {
	Scope     RiskScope
	Limit     decimal.Decimal
	Requested decimal.Decimal
}

func (e *RiskLimitError) Error() string {
	return fmt.Sprintf("wallet: payout %s exceeds %s risk limit %s",
		e.Requested.StringFixed(2), e.Scope, e.Limit.StringFixed(2))
}

// ValidationError rejects a malformed wager before any switch of state.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "wallet: invalid wager: " + e.Reason
}
