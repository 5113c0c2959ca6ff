// Package relayerrors provides the tagged-variant error taxonomy used across
// the admission pipeline: structural, cryptographic, schema, authority,
// temporal, revocation, and transport/storage failures.
package relayerrors

import "fmt"

// Kind is a coarse category for RelayErrors, matching the taxonomy in the
// error-handling design: each admission or verification rejection carries
// exactly one Kind.
type Kind int

const (
	Structural Kind = iota
	Cryptographic
	Schema
	Authority
	Temporal
	Revocation
	Transport
)

func (k Kind) String() string {
	switch k {
	case Structural:
		return "structural"
	case Cryptographic:
		return "cryptographic"
	case Schema:
		return "schema"
	case Authority:
		return "authority"
	case Temporal:
		return "temporal"
	case Revocation:
		return "revocation"
	case Transport:
		return "transport"
	default:
		return "unknown"
	}
}

// RelayError represents a rejection produced anywhere in the admission or
// verification pipeline.
type RelayError struct {
	Kind   Kind
	Detail string
}

func (e *RelayError) Error() string {
	return e.Detail
}

// New constructs a RelayError of the given kind.
func New(kind Kind, msg string, args ...interface{}) error {
	return &RelayError{Kind: kind, Detail: fmt.Sprintf(msg, args...)}
}

// Is tests whether err is a RelayError of the given kind.
func Is(err error, kind Kind) bool {
	re, ok := err.(*RelayError)
	if !ok {
		return false
	}
	return re.Kind == kind
}

func StructuralError(msg string, args ...interface{}) error {
	return New(Structural, msg, args...)
}

func CryptographicError(msg string, args ...interface{}) error {
	return New(Cryptographic, msg, args...)
}

func SchemaError(msg string, args ...interface{}) error {
	return New(Schema, msg, args...)
}

func AuthorityError(msg string, args ...interface{}) error {
	return New(Authority, msg, args...)
}

func TemporalError(msg string, args ...interface{}) error {
	return New(Temporal, msg, args...)
}

func RevocationError(msg string, args ...interface{}) error {
	return New(Revocation, msg, args...)
}

func TransportError(msg string, args ...interface{}) error {
	return New(Transport, msg, args...)
}

// Reason renders err as the wire-level admission reason string: RelayErrors
// render their Detail, anything else renders as a generic storage failure
// so internals never leak to clients.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	if re, ok := err.(*RelayError); ok {
		return "invalid: " + re.Detail
	}
	return "error: could not save event"
}
