package dynamics

import "errors"

var (
	// ErrInvalidBody indicates a body definition with non-finite or
	// negative parameters.
	ErrInvalidBody = errors.New("dynamics: invalid body definition")

	// ErrInvalidCollider indicates a collider without a shape or with an
	// invalid material.
	ErrInvalidCollider = errors.New("dynamics: invalid collider definition")

	// ErrInvalidJoint indicates a joint definition that cannot be solved.
	ErrInvalidJoint = errors.New("dynamics: invalid joint definition")
)
