package core

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func expiry(n int64) *int64 { return &n }

func TestDeriveStateOrdering(t *testing.T) {
	base := CredentialRecord{
		Issued:            1000,
		ExpiresAt:         expiry(5000),
		OriginalExpiresAt: expiry(5000),
	}

	require.Equal(t, StateActive, DeriveState(base, 2000))

	expired := base
	require.Equal(t, StateExpired, DeriveState(expired, 6000))

	renewed := base
	renewed.ExpiresAt = expiry(9000)
	require.Equal(t, StateRenewed, DeriveState(renewed, 6000))

	// Revocation dominates everything, including a still-future expiry.
	revoked := renewed
	revoked.Revoked = true
	require.Equal(t, StateRevoked, DeriveState(revoked, 6000))
}

func TestDeriveStatePerpetualGrantNeverExpires(t *testing.T) {
	rec := CredentialRecord{Issued: 1000}
	require.Equal(t, StateActive, DeriveState(rec, 1<<40))
}

func TestRenewedDetectsExpiryShift(t *testing.T) {
	rec := CredentialRecord{ExpiresAt: expiry(5000), OriginalExpiresAt: expiry(5000)}
	require.False(t, rec.Renewed())
	rec.ExpiresAt = expiry(9000)
	require.True(t, rec.Renewed())
}

func TestClassDefinitionHelpers(t *testing.T) {
	def := ClassDefinition{
		Name:     "Director",
		Scope:    []string{"instructor"},
		IssuedBy: []string{RootIssuer},
	}
	require.True(t, def.IssuedByRoot())
	require.True(t, def.InScope("instructor"))
	require.False(t, def.InScope("trainee"))
	require.False(t, def.Terminal())
	require.False(t, def.Allows("instructor"))

	terminal := ClassDefinition{Name: "Trainee", IssuedBy: []string{"instructor"}}
	require.True(t, terminal.Terminal())
	require.True(t, terminal.Allows("instructor"))
	require.False(t, terminal.IssuedByRoot())
}

func TestParseSchemaDocument(t *testing.T) {
	doc, err := ParseSchemaDocument(`{"classes":{"a":{"name":"A","issued_by":["root"],"expiry":{"max_days":30,"renewable":true}}}}`)
	require.NoError(t, err)
	require.Len(t, doc.Classes, 1)
	require.Equal(t, int64(30), *doc.Classes["a"].Expiry.MaxDays)
	require.True(t, doc.Classes["a"].Expiry.Renewable)

	_, err = ParseSchemaDocument("not json")
	require.Error(t, err)
}
