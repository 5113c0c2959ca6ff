package relaywire

import (
	"strings"

	"github.com/chainrelay/chainrelay/core"
	"github.com/chainrelay/chainrelay/sa"
)

// toStoreFilter converts a wire filter into the store's query filter, used
// to serve the initial backlog a REQ asks for.
func toStoreFilter(f clientFilter) sa.Filter {
	return sa.Filter{
		IDs:     f.IDs,
		Authors: f.Authors,
		Kinds:   f.Kinds,
		ETag:    f.ETag,
		PTag:    f.PTag,
		ATag:    f.ATag,
		DTag:    f.DTag,
		Since:   f.Since,
		Until:   f.Until,
		Limit:   f.Limit,
	}
}

// matches reports whether ev satisfies every populated field of f, used for
// live fan-out of newly accepted events to open subscriptions. It is the
// in-memory twin of sa.Store.Query's SQL predicate and must stay consistent
// with it.
func matches(f clientFilter, ev *core.Event) bool {
	if len(f.IDs) > 0 && !containsStr(f.IDs, ev.ID) {
		return false
	}
	if len(f.Authors) > 0 && !containsStr(f.Authors, ev.PubKey) {
		return false
	}
	if len(f.Kinds) > 0 && !containsInt(f.Kinds, ev.Kind) {
		return false
	}
	if len(f.ATag) > 0 {
		a, ok := ev.Tags.First("a")
		if !ok || !containsStr(f.ATag, a) {
			return false
		}
	}
	if len(f.DTag) > 0 {
		d, ok := ev.Tags.First("d")
		if !ok || !containsStr(f.DTag, d) {
			return false
		}
	}
	if len(f.ETag) > 0 && !anyTagMatches(ev, "e", f.ETag) {
		return false
	}
	if len(f.PTag) > 0 && !anyTagMatches(ev, "p", f.PTag) {
		return false
	}
	if f.Since != nil && ev.CreatedAt < *f.Since {
		return false
	}
	if f.Until != nil && ev.CreatedAt > *f.Until {
		return false
	}
	return true
}

func anyTagMatches(ev *core.Event, name string, values []string) bool {
	for _, v := range ev.Tags.All(name) {
		if containsStr(values, v) {
			return true
		}
	}
	return false
}

func containsStr(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func containsInt(list []int, v int) bool {
	for _, n := range list {
		if n == v {
			return true
		}
	}
	return false
}

// normalizeSubID trims the subscription id the way the rest of the wire
// layer expects; ids are otherwise opaque client-chosen strings.
func normalizeSubID(id string) string {
	return strings.TrimSpace(id)
}
