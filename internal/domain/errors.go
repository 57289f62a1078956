package domain

import "errors"

var (
	// ErrConnectivity is returned when the counter provider cannot be reached or rejects the credentials.
	ErrConnectivity = errors.New("connectivity failure")
	// ErrQuery indicates the per-entity counter query failed or returned no data.
	ErrQuery = errors.New("query failure")
	// ErrMissingCounter marks a mapped source counter absent on an entity record.
	ErrMissingCounter = errors.New("missing counter")
	// ErrConversion indicates a present counter value is not numeric.
	ErrConversion = errors.New("conversion failure")
	// ErrInvalidKind indicates an unsupported metric kind was supplied.
	ErrInvalidKind = errors.New("invalid metric kind")
)
