// Package uuid generates the identifiers used for request ids and scratch
// graph names.
package uuid

import (
	"github.com/google/uuid"
)

// NewString returns a new V7 UUID string. V7 UUIDs are time-ordered, which
// keeps generated graph names sortable by creation time.
// Panics on error to maintain compatibility with google/uuid's NewString() method.
func NewString() string {
	return uuid.Must(uuid.NewV7()).String()
}

// NewURN returns a new V7 UUID as a urn:uuid: IRI, suitable as a graph name.
func NewURN() string {
	return uuid.Must(uuid.NewV7()).URN()
}
