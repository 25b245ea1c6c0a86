package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RoundArchive is a finished crash round with its seed revealed, kept for the
// public verification endpoint and round history.
type RoundArchive struct {
	ID             uuid.UUID       `json:"id"`
	Sequence       int64           `json:"sequence"`
	CrashPoint     decimal.Decimal `json:"crash_point"`
	ServerSeed     string          `json:"server_seed"`
	ServerSeedHash string          `json:"server_seed_hash"`
	StartedAt      time.Time       `json:"started_at"`
	CrashedAt      time.Time       `json:"crashed_at"`
}
