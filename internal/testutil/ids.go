// Package testutil provides deterministic identifiers and a shared fixture
// metamodel for tests across the module.
package testutil

import (
	"encoding/binary"
	"sync"

	"github.com/google/uuid"

	"github.com/modelkit/modelkit/internal/model"
)

// IDSequence hands out predictable identifiers for tests: version-7-shaped
// uuids whose trailing bytes count up from 1. Encoded fixtures and golden
// files stay byte-stable across runs.
//
// Thread-safe; Reset allows scenario reuse.
type IDSequence struct {
	mu sync.Mutex
	n  uint64
}

// NewIDSequence creates a sequence starting at 0; the first Next returns
// the ID ending in ...0001.
func NewIDSequence() *IDSequence {
	return &IDSequence{}
}

// Next returns the next identifier in the sequence.
func (s *IDSequence) Next() model.ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return SequenceID(s.n)
}

// Reset restarts the sequence at 0.
func (s *IDSequence) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n = 0
}

// SequenceID returns the nth deterministic identifier without consuming a
// sequence. SequenceID(1) == "00000000-0000-7000-8000-000000000001".
func SequenceID(n uint64) model.ID {
	var u uuid.UUID
	u[6] = 0x70 // version 7
	binary.BigEndian.PutUint64(u[8:], 0x8000000000000000|n) // variant bits + counter
	return model.ID(u)
}
