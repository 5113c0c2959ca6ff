package core

// GrantState is the observable lifecycle state of a credential grant,
// derived from a CredentialRecord and the current wall time. It is never
// itself persisted: it is always recomputed, per the design's "no
// in-memory state outside the store is required for correctness".
type GrantState string

const (
	StateActive  GrantState = "active"
	StateRenewed GrantState = "renewed"
	StateRevoked GrantState = "revoked"
	StateExpired GrantState = "expired"
)

// CredentialRecord is the store's denormalized projection of a Credential
// Grant event, kept current by admission, revocation, and renewal.
// ExpiresAt reflects any applied renewals; OriginalExpiresAt is the expiry
// the grant itself carried.
type CredentialRecord struct {
	Address           string
	Recipient         string
	Issuer            string
	Class             string
	SchemaAddress     string
	Issued            int64
	ExpiresAt         *int64
	OriginalExpiresAt *int64
	ChainRef          string

	Revoked       bool
	RevokedAt     int64
	RevokedReason string
}

// Renewed reports whether a renewal has moved the record's effective expiry
// away from the expiry the grant was issued with.
func (rec CredentialRecord) Renewed() bool {
	if rec.ExpiresAt == nil || rec.OriginalExpiresAt == nil {
		return (rec.ExpiresAt == nil) != (rec.OriginalExpiresAt == nil)
	}
	return *rec.ExpiresAt != *rec.OriginalExpiresAt
}

// DeriveState computes the lifecycle state of rec at the given wall time.
// Revocation dominates expiry, which dominates renewal. Callers should
// treat Active and Renewed as equivalent for authority purposes and use
// this function only for display and reporting.
func DeriveState(rec CredentialRecord, now int64) GrantState {
	if rec.Revoked {
		return StateRevoked
	}
	if rec.ExpiresAt != nil && *rec.ExpiresAt < now {
		return StateExpired
	}
	if rec.Renewed() {
		return StateRenewed
	}
	return StateActive
}
