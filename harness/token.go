package harness

import "github.com/google/uuid"

// TokenGenerator produces run tokens.
type TokenGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 run tokens, so runs in a
// shared trace store list in creation order.
//
// Thread-safety: stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 as a hyphenated string. Panics if UUID
// generation fails (should never happen in practice).
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator always returns the same token. Scenarios pin a token this
// way so golden traces are byte-identical across runs.
type FixedGenerator struct {
	token string
}

// NewFixedGenerator creates a generator for the given token; an empty token
// defaults to "run-fixed".
func NewFixedGenerator(token string) *FixedGenerator {
	if token == "" {
		token = "run-fixed"
	}
	return &FixedGenerator{token: token}
}

// Generate returns the fixed token.
func (g *FixedGenerator) Generate() string {
	return g.token
}
