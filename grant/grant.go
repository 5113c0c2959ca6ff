// Package grant implements the credential-grant admission validator: it
// checks a grant event's required tags, resolves its schema, and enforces
// per-class expiry bounds. It does not verify chain authority (see
// package verifier for that).
package grant

import (
	"strconv"

	"github.com/chainrelay/chainrelay/core"
	"github.com/chainrelay/chainrelay/relayerrors"
)

// SchemaResolver resolves a previously admitted and cached schema document
// by its composite address. Satisfied by sa.Store.
type SchemaResolver interface {
	ResolveSchema(addr string) (*core.SchemaDocument, bool)
}

// PerpetualExpiry is the literal string a grant's "expires" tag carries when
// the credential never expires.
const PerpetualExpiry = "perpetual"

// Tags holds the parsed, validated tag set of a Credential Grant event.
type Tags struct {
	DTag          string
	Recipient     string
	SchemaAddress string
	Class         string
	Issued        int64
	Perpetual     bool
	Expires       int64 // meaningful only when !Perpetual
	Chain         string
	HasChain      bool
}

// Validate performs the grant admission checks and returns the parsed tag
// set plus the resolved schema document and class definition.
func Validate(e *core.Event, resolver SchemaResolver) (*Tags, *core.SchemaDocument, *core.ClassDefinition, error) {
	d, ok := e.Tags.First("d")
	if !ok || d == "" {
		return nil, nil, nil, relayerrors.StructuralError("grant missing required d tag")
	}
	p, ok := e.Tags.First("p")
	if !ok || p == "" {
		return nil, nil, nil, relayerrors.StructuralError("grant missing required p tag")
	}
	a, ok := e.Tags.First("a")
	if !ok || a == "" {
		return nil, nil, nil, relayerrors.StructuralError("grant missing required a tag")
	}
	class, ok := e.Tags.First("class")
	if !ok || class == "" {
		return nil, nil, nil, relayerrors.StructuralError("grant missing required class tag")
	}
	issuedStr, ok := e.Tags.First("issued")
	if !ok {
		return nil, nil, nil, relayerrors.StructuralError("grant missing required issued tag")
	}
	issued, err := strconv.ParseInt(issuedStr, 10, 64)
	if err != nil {
		return nil, nil, nil, relayerrors.StructuralError("grant issued tag is not an integer")
	}
	expiresStr, ok := e.Tags.First("expires")
	if !ok {
		return nil, nil, nil, relayerrors.StructuralError("grant missing required expires tag")
	}
	chain, hasChain := e.Tags.First("chain")

	tags := &Tags{
		DTag:          d,
		Recipient:     p,
		SchemaAddress: a,
		Class:         class,
		Issued:        issued,
		Chain:         chain,
		HasChain:      hasChain,
	}
	if expiresStr == PerpetualExpiry {
		tags.Perpetual = true
	} else {
		expires, err := strconv.ParseInt(expiresStr, 10, 64)
		if err != nil {
			return nil, nil, nil, relayerrors.StructuralError("grant expires tag is not an integer or %q", PerpetualExpiry)
		}
		tags.Expires = expires
	}

	schema, ok := resolver.ResolveSchema(a)
	if !ok {
		return nil, nil, nil, relayerrors.SchemaError("schema not found: %s", a)
	}
	classDef, ok := schema.Classes[class]
	if !ok {
		return nil, nil, nil, relayerrors.SchemaError("class %q not found in schema", class)
	}

	if tags.Perpetual {
		if classDef.Expiry.MaxDays != nil {
			return nil, nil, nil, relayerrors.SchemaError("class %q does not permit perpetual grants", class)
		}
	} else if classDef.Expiry.MaxDays != nil {
		maxSeconds := *classDef.Expiry.MaxDays * 86400
		if tags.Expires-tags.Issued > maxSeconds {
			return nil, nil, nil, relayerrors.SchemaError("expires exceeds class %q max_days bound", class)
		}
	}

	addr, err := core.ParseAddress(a)
	if err != nil {
		return nil, nil, nil, relayerrors.StructuralError("grant a tag is not a valid address: %s", err)
	}
	// A chain tag on a root-issued grant is permitted and simply ignored;
	// only its absence on a non-root-issued grant is an error.
	isRootIssuer := classDef.IssuedByRoot() && e.PubKey == addr.PubKey
	if !isRootIssuer && !hasChain {
		return nil, nil, nil, relayerrors.StructuralError("non-root issuer grant missing required chain tag")
	}

	return tags, schema, &classDef, nil
}
