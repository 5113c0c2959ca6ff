package grant

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chainrelay/chainrelay/core"
)

type fakeResolver struct {
	docs map[string]*core.SchemaDocument
}

func (f fakeResolver) ResolveSchema(addr string) (*core.SchemaDocument, bool) {
	doc, ok := f.docs[addr]
	return doc, ok
}

func maxDays(n int64) *int64 { return &n }

func testSchema() (*fakeResolver, string) {
	addr := core.Address(30100, "root-pubkey", "cert-authority")
	return &fakeResolver{docs: map[string]*core.SchemaDocument{
		addr: {
			Classes: map[string]core.ClassDefinition{
				"intermediate": {Name: "Intermediate", Scope: []string{"leaf"}, IssuedBy: []string{"root"}, Expiry: core.ExpiryPolicy{MaxDays: maxDays(365)}},
				"leaf":         {Name: "Leaf", IssuedBy: []string{"intermediate"}, Expiry: core.ExpiryPolicy{MaxDays: maxDays(30)}},
				"perpetual":    {Name: "Perpetual", IssuedBy: []string{"root"}},
			},
		},
	}}, addr
}

func rootGrant(schemaAddr string, class string, issued, expires int64) *core.Event {
	return &core.Event{
		PubKey: "root-pubkey",
		Kind:   30101,
		Tags: core.Tags{
			{"d", "grant-1"},
			{"p", "recipient-pubkey"},
			{"a", schemaAddr},
			{"class", class},
			{"issued", strconv.FormatInt(issued, 10)},
			{"expires", strconv.FormatInt(expires, 10)},
		},
	}
}

func TestValidateAcceptsRootIssuedGrant(t *testing.T) {
	resolver, addr := testSchema()
	ev := rootGrant(addr, "intermediate", 1000, 1000+364*86400)
	tags, _, classDef, err := Validate(ev, resolver)
	require.NoError(t, err)
	require.Equal(t, "recipient-pubkey", tags.Recipient)
	require.Equal(t, "Intermediate", classDef.Name)
}

func TestValidateRejectsMissingChainForNonRootIssuer(t *testing.T) {
	resolver, addr := testSchema()
	ev := rootGrant(addr, "leaf", 1000, 2000)
	ev.PubKey = "intermediate-pubkey"
	_, _, _, err := Validate(ev, resolver)
	require.Error(t, err)
}

func TestValidateAcceptsNonRootIssuerWithChain(t *testing.T) {
	resolver, addr := testSchema()
	ev := rootGrant(addr, "leaf", 1000, 1000+29*86400)
	ev.PubKey = "intermediate-pubkey"
	ev.Tags = append(ev.Tags, core.Tag{"chain", core.Address(30101, "intermediate-pubkey", "grant-0")})
	_, _, _, err := Validate(ev, resolver)
	require.NoError(t, err)
}

func TestValidateRejectsExpiryExceedingMaxDays(t *testing.T) {
	resolver, addr := testSchema()
	ev := rootGrant(addr, "intermediate", 1000, 1000+400*86400)
	_, _, _, err := Validate(ev, resolver)
	require.Error(t, err)
}

func TestValidateRejectsPerpetualWhenMaxDaysSet(t *testing.T) {
	resolver, addr := testSchema()
	ev := &core.Event{
		PubKey: "root-pubkey",
		Kind:   30101,
		Tags: core.Tags{
			{"d", "grant-1"}, {"p", "recipient-pubkey"}, {"a", addr},
			{"class", "intermediate"}, {"issued", "1000"}, {"expires", PerpetualExpiry},
		},
	}
	_, _, _, err := Validate(ev, resolver)
	require.Error(t, err)
}

func TestValidateAcceptsPerpetualWhenAllowed(t *testing.T) {
	resolver, addr := testSchema()
	ev := &core.Event{
		PubKey: "root-pubkey",
		Kind:   30101,
		Tags: core.Tags{
			{"d", "grant-1"}, {"p", "recipient-pubkey"}, {"a", addr},
			{"class", "perpetual"}, {"issued", "1000"}, {"expires", PerpetualExpiry},
		},
	}
	tags, _, _, err := Validate(ev, resolver)
	require.NoError(t, err)
	require.True(t, tags.Perpetual)
}

func TestValidateRejectsUnknownSchema(t *testing.T) {
	resolver, _ := testSchema()
	ev := rootGrant("30100:ghost:x", "intermediate", 1000, 2000)
	_, _, _, err := Validate(ev, resolver)
	require.Error(t, err)
}

func TestValidateRejectsMissingRequiredTags(t *testing.T) {
	resolver, addr := testSchema()
	ev := &core.Event{PubKey: "root-pubkey", Kind: 30101, Tags: core.Tags{{"a", addr}}}
	_, _, _, err := Validate(ev, resolver)
	require.Error(t, err)
}
