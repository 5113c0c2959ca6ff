// Package eventvalidator performs the structural and cryptographic admission
// check every event, regardless of kind, must pass before anything else in
// the pipeline looks at it.
package eventvalidator

import (
	"github.com/chainrelay/chainrelay/core"
	"github.com/chainrelay/chainrelay/crypto"
	"github.com/chainrelay/chainrelay/relayerrors"
)

// Limits bounds structural checks against adversarial input: oversize
// content or an absurd number of tags is rejected before anything else
// looks at the event.
type Limits struct {
	MaxContentBytes int
	MaxTags         int
	MaxTagElements  int
}

// DefaultLimits are generous bounds suitable for production use.
var DefaultLimits = Limits{
	MaxContentBytes: 64 * 1024,
	MaxTags:         2000,
	MaxTagElements:  64,
}

func isHex(s string, n int) bool {
	if len(s) != n {
		return false
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		case r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}

// Validate checks an event's structural and cryptographic well-formedness,
// returning a *relayerrors.RelayError describing the first violation found,
// or nil if the event is valid.
func Validate(e *core.Event, limits Limits) error {
	if !isHex(e.ID, 64) {
		return relayerrors.StructuralError("id is not a 64-character hex string")
	}
	if !isHex(e.PubKey, 64) {
		return relayerrors.StructuralError("pubkey is not a 64-character hex string")
	}
	if !isHex(e.Sig, 128) {
		return relayerrors.StructuralError("sig is not a 128-character hex string")
	}
	if e.CreatedAt < 0 {
		return relayerrors.StructuralError("created_at must be a non-negative integer")
	}
	if e.Kind < 0 {
		return relayerrors.StructuralError("kind must be a non-negative integer")
	}
	if len(e.Tags) > limits.MaxTags {
		return relayerrors.StructuralError("too many tags")
	}
	for _, t := range e.Tags {
		if len(t) > limits.MaxTagElements {
			return relayerrors.StructuralError("tag has too many elements")
		}
	}
	if len(e.Content) > limits.MaxContentBytes {
		return relayerrors.StructuralError("content exceeds maximum size")
	}

	computedID, err := crypto.ID(e)
	if err != nil {
		return relayerrors.StructuralError("failed to compute canonical id: %s", err)
	}
	if computedID != e.ID {
		return relayerrors.CryptographicError("computed id does not match event id")
	}
	if !crypto.Verify(e.Sig, e.ID, e.PubKey) {
		return relayerrors.CryptographicError("signature does not verify")
	}
	return nil
}
