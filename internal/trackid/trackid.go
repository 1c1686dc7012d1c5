// Package trackid derives tracking codes for bribe reports.
//
// A code is the first two and last two characters of the reporter's username
// followed by six digits sampled from the canonical text of a random UUID.
// Generation is checked against the report store and retried on collision a
// bounded number of times.
package trackid

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"

	"github.com/google/uuid"
)

const (
	// SuffixLen is the number of digits appended to the username prefix.
	SuffixLen = 6
	// DefaultMaxAttempts bounds collision retries when Generator.MaxAttempts is unset.
	DefaultMaxAttempts = 20
)

// ErrExhausted is returned when every attempt produced a code that is already in use.
var ErrExhausted = errors.New("tracking code attempts exhausted")

// ExistsFunc reports whether code is already used by a stored report.
type ExistsFunc func(ctx context.Context, code string) (bool, error)

// Generator produces tracking codes. The zero value is usable.
type Generator struct {
	// MaxAttempts caps the number of candidates checked per call.
	MaxAttempts int
	// NewSeed returns the UUID whose digits form the sampling pool.
	NewSeed func() uuid.UUID
	// Perm returns a random permutation of [0, n).
	Perm func(n int) []int
}

// New returns a Generator with the given attempt cap (DefaultMaxAttempts when <= 0).
func New(maxAttempts int) *Generator {
	return &Generator{MaxAttempts: maxAttempts}
}

func (g *Generator) attempts() int {
	if g.MaxAttempts <= 0 {
		return DefaultMaxAttempts
	}
	return g.MaxAttempts
}

func (g *Generator) seed() uuid.UUID {
	if g.NewSeed != nil {
		return g.NewSeed()
	}
	return uuid.New()
}

func (g *Generator) perm(n int) []int {
	if g.Perm != nil {
		return g.Perm(n)
	}
	return rand.Perm(n)
}

// Prefix returns the first two runes of username followed by its last two.
// The two halves may overlap ("abc" gives "abbc"); a single-rune username is
// used for both halves.
func Prefix(username string) string {
	r := []rune(username)
	if len(r) < 2 {
		return username + username
	}
	return string(r[:2]) + string(r[len(r)-2:])
}

// Digits keeps only the ASCII digits of s, in order.
func Digits(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// Suffix draws SuffixLen digits from pool without replacement, in random
// order. Pools shorter than SuffixLen are left-padded with zeros instead.
func (g *Generator) Suffix(pool string) string {
	if len(pool) < SuffixLen {
		return strings.Repeat("0", SuffixLen-len(pool)) + pool
	}
	idx := g.perm(len(pool))
	out := make([]byte, SuffixLen)
	for i := range out {
		out[i] = pool[idx[i]]
	}
	return string(out)
}

// Generate returns a code for username that exists reports as unused.
//
// Each retry samples a fresh suffix from the same pool. A pool with fewer than
// SuffixLen digits always pads to the same value, so it is replaced by the
// digits of a new UUID before retrying.
func (g *Generator) Generate(ctx context.Context, username string, exists ExistsFunc) (string, error) {
	prefix := Prefix(username)
	pool := Digits(g.seed().String())

	for i := 0; i < g.attempts(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if i > 0 && len(pool) < SuffixLen {
			pool = Digits(g.seed().String())
		}
		code := prefix + g.Suffix(pool)
		taken, err := exists(ctx, code)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
	}
	return "", ErrExhausted
}
