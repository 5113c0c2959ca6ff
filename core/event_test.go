package core

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseAddressRoundTrip(t *testing.T) {
	addr := Address(30101, "pubkey-hex", "grant-1")
	parsed, err := ParseAddress(addr)
	require.NoError(t, err)
	require.Equal(t, 30101, parsed.Kind)
	require.Equal(t, "pubkey-hex", parsed.PubKey)
	require.Equal(t, "grant-1", parsed.DTag)
}

func TestParseAddressKeepsColonsInDTag(t *testing.T) {
	parsed, err := ParseAddress("30100:pk:namespace:v2:final")
	require.NoError(t, err)
	require.Equal(t, "namespace:v2:final", parsed.DTag)
}

func TestParseAddressRejectsMalformed(t *testing.T) {
	_, err := ParseAddress("not-an-address")
	require.Error(t, err)
	_, err = ParseAddress("abc:pk:d")
	require.Error(t, err)
}

func TestCanonicalJSONShape(t *testing.T) {
	ev := &Event{
		PubKey:    "ab",
		CreatedAt: 42,
		Kind:      1,
		Tags:      Tags{{"d", "x"}, {"p", "recipient"}},
		Content:   `say "hi"`,
	}
	canon, err := ev.CanonicalJSON()
	require.NoError(t, err)
	require.Equal(t, `[0,"ab",42,1,[["d","x"],["p","recipient"]],"say \"hi\""]`, string(canon))
}

func TestCanonicalJSONEmptyTags(t *testing.T) {
	ev := &Event{PubKey: "ab", CreatedAt: 1, Kind: 0, Content: ""}
	canon, err := ev.CanonicalJSON()
	require.NoError(t, err)
	require.Equal(t, `[0,"ab",1,0,[],""]`, string(canon))
}

func TestReplaceableKindRanges(t *testing.T) {
	require.True(t, IsReplaceable(0))
	require.True(t, IsReplaceable(3))
	require.True(t, IsReplaceable(10000))
	require.True(t, IsReplaceable(19999))
	require.False(t, IsReplaceable(1))
	require.False(t, IsReplaceable(30101))

	require.True(t, IsParameterizedReplaceable(30000))
	require.True(t, IsParameterizedReplaceable(39999))
	require.False(t, IsParameterizedReplaceable(29999))
	require.False(t, IsParameterizedReplaceable(40000))
}

func TestTagsFirstAndAll(t *testing.T) {
	tags := Tags{{"e", "id-1"}, {"p", "pk-1"}, {"e", "id-2"}, {"empty"}}
	v, ok := tags.First("e")
	require.True(t, ok)
	require.Equal(t, "id-1", v)
	require.Equal(t, []string{"id-1", "id-2"}, tags.All("e"))
	_, ok = tags.First("missing")
	require.False(t, ok)
}
