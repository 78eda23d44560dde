package core

import "errors"

var (
	// ErrNotFound reports that an entity does not exist or does not belong to
	// the caller. Handlers map it to 404.
	ErrNotFound = errors.New("not found")

	// ErrMissingInput reports a required request field that is absent. Raised
	// before any remote call is made.
	ErrMissingInput = errors.New("missing input")

	// ErrSchemaMissing reports that the backing relation for an entity has not
	// been provisioned. Stores wrap the driver's "no such table" condition in
	// this sentinel so callers can log it with an actionable message.
	ErrSchemaMissing = errors.New("schema not provisioned")
)
