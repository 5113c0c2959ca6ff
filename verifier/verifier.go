// Package verifier implements the recursive (here, iterative) chain
// verifier: given a credential grant, it walks the grant's chain reference
// back to the schema's root authority, applying authority, scope,
// issuance-time, and revocation-cascade rules along the way.
package verifier

import (
	"fmt"
	"strconv"

	"github.com/chainrelay/chainrelay/core"
	"github.com/chainrelay/chainrelay/metrics"
)

// Outcome is the closed set of results Verify can produce.
type Outcome interface {
	isOutcome()
}

// Valid means the grant's chain resolves to the schema's root authority.
type Valid struct {
	ChainDepth int
}

// Invalid means some rule in the chain failed; Reason is a short,
// human-readable description safe to surface on the wire.
type Invalid struct {
	Reason string
}

// Expired means the grant's effective expiry has passed.
type Expired struct {
	At int64
}

// Revoked means the grant itself has been revoked. A cascading revocation
// of an ancestor produces Invalid, not Revoked.
type Revoked struct {
	At     int64
	Reason string
}

func (Valid) isOutcome()   {}
func (Invalid) isOutcome() {}
func (Expired) isOutcome() {}
func (Revoked) isOutcome() {}

// CredentialIndex is the subset of sa.Store the verifier depends on.
type CredentialIndex interface {
	CredentialByAddress(addr string) (*core.CredentialRecord, bool, error)
}

// SchemaResolver is the subset of sa.Store the verifier depends on to
// resolve a schema document by composite address.
type SchemaResolver interface {
	ResolveSchema(addr string) (*core.SchemaDocument, bool)
}

// MaxChainDepth is the absolute ceiling on chain walk depth: no
// verification reads more than this many upstream grants, regardless of
// configuration.
const MaxChainDepth = 5

// Verifier evaluates credential grant chains.
type Verifier struct {
	index    CredentialIndex
	schemas  SchemaResolver
	kinds    core.KindMapping
	maxDepth int
	scope    metrics.Scope
}

// New constructs a Verifier. maxDepth is clamped to MaxChainDepth if it
// exceeds it; a non-positive value uses MaxChainDepth.
func New(index CredentialIndex, schemas SchemaResolver, kinds core.KindMapping, maxDepth int, scope metrics.Scope) *Verifier {
	if maxDepth <= 0 || maxDepth > MaxChainDepth {
		maxDepth = MaxChainDepth
	}
	return &Verifier{index: index, schemas: schemas, kinds: kinds, maxDepth: maxDepth, scope: scope.NewScope("verifier")}
}

// Verify evaluates grant's chain of authority as of now (unix seconds).
// Rule order matters: the first applicable outcome wins.
func (v *Verifier) Verify(grant *core.Event, now int64) Outcome {
	outcome := v.verify(grant, now)
	switch o := outcome.(type) {
	case Valid:
		v.scope.Inc("outcomes.valid", 1)
		v.scope.SetInt("chain_depth", int64(o.ChainDepth))
	case Invalid:
		v.scope.Inc("outcomes.invalid", 1)
	case Expired:
		v.scope.Inc("outcomes.expired", 1)
	case Revoked:
		v.scope.Inc("outcomes.revoked", 1)
	}
	return outcome
}

func (v *Verifier) verify(grant *core.Event, now int64) Outcome {
	if grant.Kind != v.kinds.CredentialGrant {
		return Invalid{"event is not a credential grant"}
	}

	a, okA := grant.Tags.First("a")
	class, okClass := grant.Tags.First("class")
	issuedStr, okIssued := grant.Tags.First("issued")
	if !okA || !okClass || !okIssued {
		return Invalid{"missing required tags"}
	}
	issued, err := strconv.ParseInt(issuedStr, 10, 64)
	if err != nil {
		return Invalid{"issued tag is not an integer"}
	}

	addr := grant.Address()
	rec, found, err := v.index.CredentialByAddress(addr)
	if err != nil {
		return Invalid{"credential index lookup failed"}
	}
	if found && rec.Revoked {
		return Revoked{rec.RevokedAt, rec.RevokedReason}
	}

	var effectiveExpires *int64
	if found {
		effectiveExpires = rec.ExpiresAt
	} else if expiresStr, ok := grant.Tags.First("expires"); ok && expiresStr != "perpetual" {
		if n, err := strconv.ParseInt(expiresStr, 10, 64); err == nil {
			effectiveExpires = &n
		}
	}
	if effectiveExpires != nil && *effectiveExpires < now {
		return Expired{*effectiveExpires}
	}

	schema, ok := v.schemas.ResolveSchema(a)
	if !ok {
		return Invalid{"schema not found"}
	}
	classDef, ok := schema.Classes[class]
	if !ok {
		return Invalid{"class not found in schema"}
	}

	schemaAddr, err := core.ParseAddress(a)
	if err != nil {
		return Invalid{"invalid schema address"}
	}

	if classDef.IssuedByRoot() && grant.PubKey == schemaAddr.PubKey {
		return Valid{ChainDepth: 0}
	}

	chainRef, hasChain := grant.Tags.First("chain")
	if !hasChain {
		return Invalid{"non-root issuer without chain reference"}
	}

	return v.walk(walkState{
		issuerPK:       grant.PubKey,
		childIssued:    issued,
		childClass:     class,
		allowedIssuers: classDef.IssuedBy,
		chainRef:       chainRef,
		schemaAddr:     a,
		schema:         schema,
		rootPK:         schemaAddr.PubKey,
		depth:          1,
	})
}

type walkState struct {
	issuerPK       string
	childIssued    int64
	childClass     string
	allowedIssuers []string
	chainRef       string
	schemaAddr     string
	schema         *core.SchemaDocument
	rootPK         string
	depth          int
}

// walk iteratively follows the chain back to root, bounded by v.maxDepth
// and additionally guarded against cycles by tracking visited
// (issuer, d-tag) pairs.
func (v *Verifier) walk(st walkState) Outcome {
	visited := map[string]bool{}

	issuerPK := st.issuerPK
	childIssued := st.childIssued
	childClass := st.childClass
	allowedIssuers := st.allowedIssuers
	chainRef := st.chainRef
	depth := st.depth

	for {
		if depth > v.maxDepth {
			return Invalid{"chain too deep"}
		}

		addr, err := core.ParseAddress(chainRef)
		if err != nil || addr.Kind != v.kinds.CredentialGrant {
			return Invalid{"invalid chain reference"}
		}

		visitKey := addr.PubKey + "\x00" + addr.DTag
		if visited[visitKey] {
			return Invalid{"chain cycle detected"}
		}
		visited[visitKey] = true

		upstream, found, err := v.index.CredentialByAddress(chainRef)
		if err != nil {
			return Invalid{"credential index lookup failed"}
		}
		if !found {
			return Invalid{"issuer credential not found"}
		}
		if upstream.Recipient != issuerPK {
			return Invalid{"chain pubkey mismatch"}
		}
		if upstream.Class == "" {
			return Invalid{"issuer credential missing class"}
		}
		if upstream.SchemaAddress != st.schemaAddr {
			return Invalid{"chain references a grant under a different schema"}
		}
		upstreamClassDef, ok := st.schema.Classes[upstream.Class]
		if !ok {
			return Invalid{"issuer class not found in schema"}
		}
		if !contains(allowedIssuers, upstream.Class) {
			return Invalid{fmt.Sprintf("class %s not authorized to issue %s", upstream.Class, childClass)}
		}
		if !upstreamClassDef.InScope(childClass) {
			return Invalid{fmt.Sprintf("class %s lacks scope to issue %s", upstream.Class, childClass)}
		}
		if upstream.Issued > childIssued {
			return Invalid{"issuer credential issued after downstream"}
		}
		if upstream.ExpiresAt != nil && *upstream.ExpiresAt < childIssued {
			return Invalid{"issuer credential expired at issuance"}
		}
		if upstream.Revoked && upstreamClassDef.CascadeRevoke && upstream.RevokedAt <= childIssued {
			return Invalid{"issuer credential revoked (cascade)"}
		}

		if upstreamClassDef.IssuedByRoot() && upstream.Issuer == st.rootPK {
			return Valid{ChainDepth: depth}
		}

		if upstream.ChainRef == "" {
			return Invalid{"issuer credential missing its own chain reference"}
		}

		issuerPK = upstream.Issuer
		childIssued = upstream.Issued
		childClass = upstream.Class
		allowedIssuers = upstreamClassDef.IssuedBy
		chainRef = upstream.ChainRef
		depth++
	}
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
