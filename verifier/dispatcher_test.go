package verifier

import (
	"context"
	"encoding/hex"
	"strings"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/jmhodges/clock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/chainrelay/chainrelay/core"
	"github.com/chainrelay/chainrelay/crypto"
	"github.com/chainrelay/chainrelay/eventvalidator"
	"github.com/chainrelay/chainrelay/metrics"
	"github.com/chainrelay/chainrelay/sa"
)

// signer wraps a secp256k1 keypair so tests can author fully valid events
// that survive the structural and cryptographic admission check.
type signer struct {
	priv   *secp256k1.PrivateKey
	PubHex string
}

func newSigner(t *testing.T) *signer {
	t.Helper()
	priv, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	return &signer{
		priv:   priv,
		PubHex: hex.EncodeToString(priv.PubKey().SerializeCompressed()[1:]),
	}
}

func (s *signer) event(t *testing.T, kind int, createdAt int64, tags core.Tags, content string) *core.Event {
	t.Helper()
	ev := &core.Event{
		PubKey:    s.PubHex,
		CreatedAt: createdAt,
		Kind:      kind,
		Tags:      tags,
		Content:   content,
	}
	id, err := crypto.ID(ev)
	require.NoError(t, err)
	ev.ID = id

	idBytes, err := hex.DecodeString(id)
	require.NoError(t, err)
	sig, err := schnorr.Sign(s.priv, idBytes)
	require.NoError(t, err)
	ev.Sig = hex.EncodeToString(sig.Serialize())
	return ev
}

func initPipeline(t *testing.T, now int64) (*Dispatcher, *Verifier, *sa.Store) {
	t.Helper()
	dbMap, err := sa.NewDbMap("sqlite3", ":memory:")
	require.NoError(t, err)
	require.NoError(t, sa.CreateTablesIfNotExists(dbMap))

	fc := clock.NewFake()
	fc.Set(time.Unix(now, 0))

	kinds := core.DefaultKindMapping
	store := sa.New(dbMap, fc, metrics.NewNoopScope(), zerolog.Nop(), kinds, 0)
	v := New(store, store, kinds, 5, metrics.NewNoopScope())
	d := NewDispatcher(store, v, kinds, fc, eventvalidator.DefaultLimits, zerolog.Nop(), metrics.NewNoopScope())
	return d, v, store
}

const academySchema = `{
	"classes": {
		"director":   {"name": "Director",   "scope": ["instructor"], "issued_by": ["root"],       "expiry": {"max_days": null, "renewable": true},  "cascade_revoke": true},
		"instructor": {"name": "Instructor", "scope": ["trainee"],    "issued_by": ["director"],   "expiry": {"max_days": null, "renewable": true},  "cascade_revoke": false},
		"trainee":    {"name": "Trainee",    "scope": [],             "issued_by": ["instructor"], "expiry": {"max_days": null, "renewable": false}, "cascade_revoke": false}
	}
}`

func TestAdmitFullDelegationChain(t *testing.T) {
	d, v, _ := initPipeline(t, 4000)
	ctx := context.Background()

	root := newSigner(t)
	director := newSigner(t)
	instructor := newSigner(t)
	trainee := newSigner(t)

	schemaEv := root.event(t, 30100, 500, core.Tags{{"d", "academy"}, {"name", "Academy"}}, academySchema)
	accepted, reason := d.Admit(ctx, schemaEv)
	require.True(t, accepted, reason)
	require.Empty(t, reason)
	schemaAddr := schemaEv.Address()

	directorGrant := root.event(t, 30101, 1000, core.Tags{
		{"d", "grant-director"}, {"p", director.PubHex}, {"a", schemaAddr},
		{"class", "director"}, {"issued", "1000"}, {"expires", "perpetual"},
	}, "")
	accepted, reason = d.Admit(ctx, directorGrant)
	require.True(t, accepted, reason)
	require.Equal(t, Valid{ChainDepth: 0}, v.Verify(directorGrant, 4000))

	instructorGrant := director.event(t, 30101, 2000, core.Tags{
		{"d", "grant-instructor"}, {"p", instructor.PubHex}, {"a", schemaAddr},
		{"class", "instructor"}, {"issued", "2000"}, {"expires", "perpetual"},
		{"chain", directorGrant.Address()},
	}, "")
	accepted, reason = d.Admit(ctx, instructorGrant)
	require.True(t, accepted, reason)
	require.Equal(t, Valid{ChainDepth: 1}, v.Verify(instructorGrant, 4000))

	traineeGrant := instructor.event(t, 30101, 3000, core.Tags{
		{"d", "grant-trainee"}, {"p", trainee.PubHex}, {"a", schemaAddr},
		{"class", "trainee"}, {"issued", "3000"}, {"expires", "perpetual"},
		{"chain", instructorGrant.Address()},
	}, "")
	accepted, reason = d.Admit(ctx, traineeGrant)
	require.True(t, accepted, reason)
	require.Equal(t, Valid{ChainDepth: 2}, v.Verify(traineeGrant, 4000))

	// A trainee holds a terminal credential; issuing another trainee must be
	// rejected before anything is persisted.
	bogus := trainee.event(t, 30101, 3500, core.Tags{
		{"d", "grant-bogus"}, {"p", newSigner(t).PubHex}, {"a", schemaAddr},
		{"class", "trainee"}, {"issued", "3500"}, {"expires", "perpetual"},
		{"chain", traineeGrant.Address()},
	}, "")
	accepted, reason = d.Admit(ctx, bogus)
	require.False(t, accepted)
	require.Contains(t, reason, "credential verification failed")

	// Revocation flips the trainee grant's observable outcome.
	revocation := root.event(t, 30102, 3800, core.Tags{
		{"a", traineeGrant.Address()}, {"reason", "misconduct"},
	}, "")
	accepted, reason = d.Admit(ctx, revocation)
	require.True(t, accepted, reason)
	require.Equal(t, Revoked{At: 3800, Reason: "misconduct"}, v.Verify(traineeGrant, 4000))
}

func TestAdmitRejectsGrantBeforeSchema(t *testing.T) {
	d, _, _ := initPipeline(t, 4000)
	root := newSigner(t)

	orphan := root.event(t, 30101, 1000, core.Tags{
		{"d", "grant-1"}, {"p", newSigner(t).PubHex},
		{"a", core.Address(30100, root.PubHex, "missing")},
		{"class", "director"}, {"issued", "1000"}, {"expires", "perpetual"},
	}, "")
	accepted, reason := d.Admit(context.Background(), orphan)
	require.False(t, accepted)
	require.True(t, strings.HasPrefix(reason, "invalid:"), reason)
	require.Contains(t, reason, "schema not found")
}

func TestAdmitRejectsMalformedSchema(t *testing.T) {
	d, _, _ := initPipeline(t, 4000)
	root := newSigner(t)

	bad := root.event(t, 30100, 500, core.Tags{{"d", "broken"}, {"name", "Broken"}},
		`{"classes":{"a":{"name":"A","scope":["ghost"],"issued_by":["root"]}}}`)
	accepted, reason := d.Admit(context.Background(), bad)
	require.False(t, accepted)
	require.Contains(t, reason, "ghost")
}

func TestAdmitRejectsTamperedEvent(t *testing.T) {
	d, _, _ := initPipeline(t, 4000)
	root := newSigner(t)

	ev := root.event(t, 1, 1000, nil, "original")
	ev.Content = "tampered"
	accepted, reason := d.Admit(context.Background(), ev)
	require.False(t, accepted)
	require.True(t, strings.HasPrefix(reason, "invalid:"), reason)
}

func TestAdmitRevocationRequiresTags(t *testing.T) {
	d, _, _ := initPipeline(t, 4000)
	root := newSigner(t)

	noReason := root.event(t, 30102, 1000, core.Tags{{"a", "30101:pk:grant"}}, "")
	accepted, reason := d.Admit(context.Background(), noReason)
	require.False(t, accepted)
	require.Contains(t, reason, "reason")
}
