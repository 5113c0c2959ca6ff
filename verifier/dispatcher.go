package verifier

import (
	"context"
	"fmt"

	"github.com/jmhodges/clock"
	"github.com/rs/zerolog"

	"github.com/chainrelay/chainrelay/core"
	"github.com/chainrelay/chainrelay/eventvalidator"
	"github.com/chainrelay/chainrelay/grant"
	"github.com/chainrelay/chainrelay/metrics"
	"github.com/chainrelay/chainrelay/relayerrors"
	"github.com/chainrelay/chainrelay/schemapolicy"
)

// Store is the subset of sa.Store the admission pipeline needs: schema
// resolution (for the grant validator and the verifier) plus persistence.
type Store interface {
	grant.SchemaResolver
	CredentialIndex
	Save(ctx context.Context, e *core.Event) (bool, error)
}

// Dispatcher is the admission pipeline: it runs the structural/cryptographic
// check on every event, then dispatches by kind to the schema validator, the
// grant validator plus chain verifier, or, for revocations and renewals, a
// required-tag check before the store. The author of a revocation or renewal
// is not checked against the grant it names, here or in the verifier: the
// store applies it to the credential index whoever signed it.
type Dispatcher struct {
	store    Store
	verifier *Verifier
	kinds    core.KindMapping
	clk      clock.Clock
	limits   eventvalidator.Limits
	log      zerolog.Logger
	scope    metrics.Scope
}

// NewDispatcher constructs a Dispatcher over store and verifier.
func NewDispatcher(store Store, v *Verifier, kinds core.KindMapping, clk clock.Clock, limits eventvalidator.Limits, log zerolog.Logger, scope metrics.Scope) *Dispatcher {
	return &Dispatcher{
		store:    store,
		verifier: v,
		kinds:    kinds,
		clk:      clk,
		limits:   limits,
		log:      log.With().Str("component", "dispatcher").Logger(),
		scope:    scope.NewScope("relay"),
	}
}

// Admit runs ev through the full admission pipeline and, if accepted,
// persists it. It returns the accepted flag and reason string the wire
// layer sends back verbatim in an OK message.
func (d *Dispatcher) Admit(ctx context.Context, ev *core.Event) (bool, string) {
	accepted, reason := d.admit(ctx, ev)
	if accepted {
		d.scope.Inc("events_accepted", 1)
	} else {
		d.scope.Inc("events_rejected", 1)
	}
	return accepted, reason
}

func (d *Dispatcher) admit(ctx context.Context, ev *core.Event) (bool, string) {
	if err := eventvalidator.Validate(ev, d.limits); err != nil {
		d.log.Warn().Str("id", ev.ID).Err(err).Msg("event rejected at structural validation")
		return false, relayerrors.Reason(err)
	}

	switch ev.Kind {
	case d.kinds.SchemaDefinition:
		if _, err := schemapolicy.Validate(ev); err != nil {
			d.log.Warn().Str("id", ev.ID).Err(err).Msg("schema definition rejected")
			return false, relayerrors.Reason(err)
		}
	case d.kinds.CredentialGrant:
		if _, _, _, err := grant.Validate(ev, d.store); err != nil {
			d.log.Warn().Str("id", ev.ID).Err(err).Msg("credential grant rejected at admission")
			return false, relayerrors.Reason(err)
		}
		outcome := d.verifier.Verify(ev, d.clk.Now().Unix())
		if _, ok := outcome.(Valid); !ok {
			reason := outcomeReason(outcome)
			d.log.Warn().Str("id", ev.ID).Str("outcome", reason).Msg("credential grant failed chain verification")
			return false, fmt.Sprintf("invalid: credential verification failed - %s", reason)
		}
	case d.kinds.Revocation:
		if _, ok := ev.Tags.First("a"); !ok {
			return false, relayerrors.Reason(relayerrors.StructuralError("revocation missing required a tag"))
		}
		if _, ok := ev.Tags.First("reason"); !ok {
			return false, relayerrors.Reason(relayerrors.StructuralError("revocation missing required reason tag"))
		}
	case d.kinds.Renewal:
		if _, ok := ev.Tags.First("a"); !ok {
			return false, relayerrors.Reason(relayerrors.StructuralError("renewal missing required a tag"))
		}
		if _, ok := ev.Tags.First("expires"); !ok {
			return false, relayerrors.Reason(relayerrors.StructuralError("renewal missing required expires tag"))
		}
	}

	accepted, err := d.store.Save(ctx, ev)
	if err != nil {
		d.log.Error().Str("id", ev.ID).Err(err).Msg("storage failure")
		return false, "error: could not save event"
	}
	if !accepted {
		return false, "error: could not save event"
	}
	return true, ""
}

func outcomeReason(o Outcome) string {
	switch v := o.(type) {
	case Invalid:
		return v.Reason
	case Expired:
		return fmt.Sprintf("expired at %d", v.At)
	case Revoked:
		return fmt.Sprintf("revoked at %d (%s)", v.At, v.Reason)
	default:
		return "unknown"
	}
}
