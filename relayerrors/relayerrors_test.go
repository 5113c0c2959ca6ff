package relayerrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsMatchesKind(t *testing.T) {
	err := SchemaError("class %q not found", "director")
	require.True(t, Is(err, Schema))
	require.False(t, Is(err, Structural))
	require.False(t, Is(errors.New("plain"), Schema))
	require.Equal(t, `class "director" not found`, err.Error())
}

func TestReasonRendering(t *testing.T) {
	require.Equal(t, "", Reason(nil))
	require.Equal(t, "invalid: signature does not verify", Reason(CryptographicError("signature does not verify")))
	require.Equal(t, "error: could not save event", Reason(errors.New("disk full")))
}

func TestKindStrings(t *testing.T) {
	for kind, want := range map[Kind]string{
		Structural:    "structural",
		Cryptographic: "cryptographic",
		Schema:        "schema",
		Authority:     "authority",
		Temporal:      "temporal",
		Revocation:    "revocation",
		Transport:     "transport",
	} {
		require.Equal(t, want, kind.String())
	}
	require.Equal(t, "unknown", Kind(99).String())
}
