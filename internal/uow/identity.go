package uow

import (
	"fmt"

	"github.com/roach88/entrepo/internal/ir"
)

// IdentityKey identifies one row of one entity type. ID is the canonical
// JSON of the identifier tuple, so equal tuples always produce equal keys
// and keys are usable as map keys.
type IdentityKey struct {
	Type string
	ID   string
}

// NewIdentityKey builds the key for an identifier tuple in key order.
// NULL components are rejected: a row without a full identifier has no
// identity.
func NewIdentityKey(typeName string, id []ir.IRValue) (IdentityKey, error) {
	if len(id) == 0 {
		return IdentityKey{}, fmt.Errorf("identity %s: empty identifier", typeName)
	}
	for i, v := range id {
		if ir.IsNull(v) {
			return IdentityKey{}, fmt.Errorf("identity %s: identifier component %d is NULL", typeName, i)
		}
	}
	s, err := ir.IdentityString(id)
	if err != nil {
		return IdentityKey{}, fmt.Errorf("identity %s: %w", typeName, err)
	}
	return IdentityKey{Type: typeName, ID: s}, nil
}

// String renders the key as Type#[id,...].
func (k IdentityKey) String() string {
	return k.Type + "#" + k.ID
}

// Digest returns a stable content hash of the key, used where a fixed-width
// handle is wanted (JSON output, scenario reports).
func (k IdentityKey) Digest() (string, error) {
	return ir.Digest(ir.DomainIdentity, ir.IRObject{
		"type": ir.IRString(k.Type),
		"id":   ir.IRString(k.ID),
	})
}
