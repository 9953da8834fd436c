package model

import "github.com/google/uuid"

// ID is the stable 128-bit identity of a model object. It is assigned at
// construction and never changes; all entity equality and hashing derive
// from it. Freshly generated IDs are UUIDv7 so insertion-ordered objects
// sort roughly by creation time, which keeps encoded documents stable.
type ID uuid.UUID

// NilID is the zero ID, meaning "no object".
var NilID ID

// NewID returns a fresh identifier.
func NewID() ID {
	return ID(uuid.Must(uuid.NewV7()))
}

// ParseID parses the canonical uuid text form. Returns NilID and false for
// malformed input; decoders probe native ids with it and fall back to
// fresh ones.
func ParseID(s string) (ID, bool) {
	u, err := uuid.Parse(s)
	if err != nil {
		return NilID, false
	}
	return ID(u), true
}

// String returns the canonical uuid text form.
func (id ID) String() string {
	return uuid.UUID(id).String()
}

// IsNil reports whether id is the zero identifier.
func (id ID) IsNil() bool {
	return id == NilID
}
