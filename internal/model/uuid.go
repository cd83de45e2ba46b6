package model

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// UUIDGenerator produces UUIDs for files, manifests and variables.
type UUIDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 identifiers.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
//
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// SequentialGenerator returns deterministic, well-formed UUIDs for tests:
// 00000000-0000-7000-8000-000000000001, ...-000000000002, ...
//
// Thread-safety: safe for concurrent use via internal mutex.
type SequentialGenerator struct {
	mu sync.Mutex
	n  int
}

// NewSequentialGenerator creates a generator whose first UUID ends in 1.
func NewSequentialGenerator() *SequentialGenerator {
	return &SequentialGenerator{}
}

// Generate returns the next identifier.
func (g *SequentialGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("00000000-0000-7000-8000-%012d", g.n)
}

// ValidUUID reports whether s parses as a UUID.
func ValidUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
