// Package fair is the provably-fair outcome engine. Every game outcome is a
// pure function of (serverSeed, clientSeed, nonce); the server commits to the
// seed by publishing its SHA-256 hash before play and reveals the seed on
// rotation so players can recompute every draw.
package fair

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// DrawBits is the number of leading HMAC bits used for a draw. 52 bits keeps
// the full precision of a float64 mantissa, so draws are uniform in [0,1)
// with no rounding bias.
const DrawBits = 52

// HashSeed returns the hex SHA-256 commitment for a server seed.
func HashSeed(serverSeed string) string {
	sum := sha256.Sum256([]byte(serverSeed))
	return hex.EncodeToString(sum[:])
}

// VerifyCommit reports whether serverSeedHash is the commitment of serverSeed.
func VerifyCommit(serverSeed, serverSeedHash string) bool {
	return HashSeed(serverSeed) == serverSeedHash
}

// NewServerSeed generates a fresh 32-byte server seed, hex encoded.
func NewServerSeed() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate server seed: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Draw produces a uniform value in [0,1) from a keyed hash of
// "clientSeed:nonce[:suffix...]". Identical inputs always yield the identical
// value; this determinism is the load-bearing contract of the whole engine.
// Multi-draw games distinguish successive draws with suffixes.
func Draw(serverSeed, clientSeed string, nonce int64, suffix ...string) float64 {
	msg := fmt.Sprintf("%s:%d", clientSeed, nonce)
	if len(suffix) > 0 {
		msg += ":" + strings.Join(suffix, ":")
	}

	mac := hmac.New(sha256.New, []byte(serverSeed))
	mac.Write([]byte(msg))
	sum := mac.Sum(nil)

	// first 52 bits of the digest
	v := binary.BigEndian.Uint64(sum[:8]) >> (64 - DrawBits)
	return float64(v) / float64(uint64(1)<<DrawBits)
}

// DeriveRoundSeed derives the server seed for one shared crash round from the
// rotating master seed. The derivation is keyed so knowing one round's seed
// reveals nothing about the next.
func DeriveRoundSeed(masterSeed string, sequence int64) string {
	mac := hmac.New(sha256.New, []byte(masterSeed))
	fmt.Fprintf(mac, "round:%d", sequence)
	return hex.EncodeToString(mac.Sum(nil))
}

// CrashPoint maps a draw to a crash multiplier. A draw below houseEdge is an
// instant bust at 1.00; otherwise the curve (1-houseEdge)/(1-r) is clamped to
// [1.00, cap] and floored to exactly 2 decimals. The result is fixed at round
// creation and never recomputed.
func CrashPoint(r, houseEdge, cap float64) decimal.Decimal {
	if r < houseEdge {
		return decimal.NewFromInt(1)
	}

	m := (1 - houseEdge) / (1 - r)
	if m < 1 {
		m = 1
	}
	if m > cap {
		m = cap
	}
	return decimal.NewFromFloat(m).RoundFloor(2)
}
