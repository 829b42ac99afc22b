// Package ident generates opaque identifiers for ledger records.
package ident

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Generator returns "<prefix>_<uuid>" identifiers, e.g. "entry_2b0c…".
type Generator struct{}

// New returns a random identifier generator.
func New() Generator { return Generator{} }

func (Generator) NewID(prefix string) string {
	if prefix == "" {
		return uuid.NewString()
	}
	return prefix + "_" + uuid.NewString()
}

// Sequence hands out predictable identifiers ("entry_1", "inc_2", ...).
// The counter is shared across prefixes. Safe for concurrent use.
type Sequence struct {
	mu   sync.Mutex
	next int
}

func (s *Sequence) NewID(prefix string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	return fmt.Sprintf("%s_%d", prefix, s.next)
}
