// Package crypto implements the cryptographic primitives the event model
// depends on: canonical serialization, event-identifier computation, and
// BIP-340 Schnorr signature verification over secp256k1.
package crypto

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"

	"github.com/chainrelay/chainrelay/core"
)

// ID computes the lowercase-hex SHA-256 identifier of an event's canonical
// serialization.
func ID(e *core.Event) (string, error) {
	canon, err := e.CanonicalJSON()
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canon)
	return hex.EncodeToString(sum[:]), nil
}

// Verify checks a BIP-340 Schnorr signature over secp256k1. sigHex must be
// 128 hex characters (64 bytes), idHex 64 hex characters (32 bytes), and
// pubkeyHex 64 hex characters (32-byte x-only public key). Any decoding
// error or malformed input returns false rather than an error.
func Verify(sigHex, idHex, pubkeyHex string) bool {
	sigBytes, err := hex.DecodeString(sigHex)
	if err != nil || len(sigBytes) != schnorr.SignatureSize {
		return false
	}
	msgBytes, err := hex.DecodeString(idHex)
	if err != nil || len(msgBytes) != 32 {
		return false
	}
	pubkeyBytes, err := hex.DecodeString(pubkeyHex)
	if err != nil || len(pubkeyBytes) != 32 {
		return false
	}

	sig, err := schnorr.ParseSignature(sigBytes)
	if err != nil {
		return false
	}
	pubkey, err := schnorr.ParsePubKey(pubkeyBytes)
	if err != nil {
		return false
	}
	return sig.Verify(msgBytes, pubkey)
}
