package relaywire

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chainrelay/chainrelay/core"
)

func grantEvent() *core.Event {
	return &core.Event{
		ID:        "id-1",
		PubKey:    "issuer-pk",
		CreatedAt: 2000,
		Kind:      30101,
		Tags: core.Tags{
			{"d", "g1"},
			{"p", "recipient-pk"},
			{"a", "30100:root-pk:authority"},
		},
	}
}

func i64(n int64) *int64 { return &n }

func TestMatchesIntersectsFields(t *testing.T) {
	ev := grantEvent()
	require.True(t, matches(clientFilter{}, ev))
	require.True(t, matches(clientFilter{Kinds: []int{30101}, Authors: []string{"issuer-pk"}}, ev))
	require.False(t, matches(clientFilter{Kinds: []int{30101}, Authors: []string{"someone-else"}}, ev))
}

func TestMatchesUnionsWithinField(t *testing.T) {
	ev := grantEvent()
	require.True(t, matches(clientFilter{Kinds: []int{1, 30101}}, ev))
	require.False(t, matches(clientFilter{Kinds: []int{1, 2}}, ev))
}

func TestMatchesTagFields(t *testing.T) {
	ev := grantEvent()
	require.True(t, matches(clientFilter{PTag: []string{"recipient-pk"}}, ev))
	require.True(t, matches(clientFilter{ATag: []string{"30100:root-pk:authority"}}, ev))
	require.True(t, matches(clientFilter{DTag: []string{"g1"}}, ev))
	require.False(t, matches(clientFilter{PTag: []string{"other-pk"}}, ev))
	require.False(t, matches(clientFilter{ETag: []string{"some-id"}}, ev))
}

func TestMatchesTimeWindow(t *testing.T) {
	ev := grantEvent()
	require.True(t, matches(clientFilter{Since: i64(1000), Until: i64(3000)}, ev))
	require.False(t, matches(clientFilter{Since: i64(2500)}, ev))
	require.False(t, matches(clientFilter{Until: i64(1500)}, ev))
}

func TestToStoreFilterCopiesEveryField(t *testing.T) {
	cf := clientFilter{
		IDs:     []string{"id-1"},
		Authors: []string{"pk"},
		Kinds:   []int{30101},
		ETag:    []string{"e1"},
		PTag:    []string{"p1"},
		ATag:    []string{"a1"},
		DTag:    []string{"d1"},
		Since:   i64(1),
		Until:   i64(2),
		Limit:   7,
	}
	sf := toStoreFilter(cf)
	require.Equal(t, cf.IDs, sf.IDs)
	require.Equal(t, cf.Authors, sf.Authors)
	require.Equal(t, cf.Kinds, sf.Kinds)
	require.Equal(t, cf.ETag, sf.ETag)
	require.Equal(t, cf.PTag, sf.PTag)
	require.Equal(t, cf.ATag, sf.ATag)
	require.Equal(t, cf.DTag, sf.DTag)
	require.Equal(t, cf.Since, sf.Since)
	require.Equal(t, cf.Until, sf.Until)
	require.Equal(t, cf.Limit, sf.Limit)
}
