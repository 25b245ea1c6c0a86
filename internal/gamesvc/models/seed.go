package models

import "time"

// RoundSeed is a user's provably-fair seed pair. ServerSeed stays secret while
// the seed is active; rotating reveals it so past outcomes can be audited.
// Nonce strictly increases with every draw against the active seed.
type RoundSeed struct {
	ID             int64      `json:"id"`
	UserID         int64      `json:"user_id"`
	ServerSeed     string     `json:"-"`
	ServerSeedHash string     `json:"server_seed_hash"`
	ClientSeed     string     `json:"client_seed"`
	Nonce          int64      `json:"nonce"`
	Active         bool       `json:"active"`
	RevealedAt     *time.Time `json:"revealed_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Revealed returns a copy safe to hand to clients after rotation.
func (s *RoundSeed) Revealed() map[string]interface{} {
	return map[string]interface{}{
		"server_seed":      s.ServerSeed,
		"server_seed_hash": s.ServerSeedHash,
		"client_seed":      s.ClientSeed,
		"nonce":            s.Nonce,
	}
}
