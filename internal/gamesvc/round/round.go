// Package round owns the shared crash round. Exactly one engine goroutine
// serializes every mutation of the live round; player requests become
// commands on its channel, so a tick and a cashout can never interleave.
package round

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type State string

const (
	StateWaiting State = "waiting"
	StateRunning State = "running"
	StateCrashed State = "crashed"
)

// State-gating failures. These are rejections, never retried silently.
var (
	ErrBetsClosed    = errors.New("round: bets accepted only while waiting")
	ErrAlreadyBet    = errors.New("round: user already has a bet this round")
	ErrCashoutClosed = errors.New("round: cashout accepted only while running")
	ErrNoBet         = errors.New("round: no open bet for user")
	ErrAlreadyCashed = errors.New("round: bet already cashed out")
	ErrEngineStopped = errors.New("round: engine stopped")
)

// Bet is a live wager inside the current round. The stake has already been
// debited through the settlement pipeline by the time it appears here.
type Bet struct {
	ID          uuid.UUID
	UserID      int64
	TenantID    int64
	Stake       decimal.Decimal
	AutoCashout decimal.Decimal // zero disables auto cashout
	CashedOut   bool
	CashoutAt   decimal.Decimal
}

// Round is the authoritative state of one crash cycle. CrashPoint and
// ServerSeed are fixed at creation and stay hidden until the crash.
type Round struct {
	ID             uuid.UUID
	Sequence       int64
	State          State
	ServerSeed     string
	ServerSeedHash string
	CrashPoint     decimal.Decimal
	Multiplier     decimal.Decimal
	Bets           map[int64]*Bet
	StartedAt      time.Time
	stateSince     time.Time
}

// SafeState is the externally broadcast view of a round. It never carries the
// crash point or server seed before reveal.
type SafeState struct {
	Sequence       int64  `json:"sequence"`
	State          State  `json:"state"`
	Multiplier     string `json:"multiplier"`
	ServerSeedHash string `json:"server_seed_hash"`
	Players        int    `json:"players"`
}

func (r *Round) safeState() SafeState {
	return SafeState{
		Sequence:       r.Sequence,
		State:          r.State,
		Multiplier:     r.Multiplier.StringFixed(2),
		ServerSeedHash: r.ServerSeedHash,
		Players:        len(r.Bets),
	}
}
