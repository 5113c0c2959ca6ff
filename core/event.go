// Package core defines the wire-level event model shared by every other
// package in this repository: the generic event envelope, tags, and the
// composite addresses used to cross-reference events.
package core

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Tag is a single ordered sequence of strings; its first element is
// conventionally its name (e.g. "d", "p", "a", "chain").
type Tag []string

// Name returns the tag's first element, or "" if the tag is empty.
func (t Tag) Name() string {
	if len(t) == 0 {
		return ""
	}
	return t[0]
}

// Value returns the tag's second element, or "" if it has none.
func (t Tag) Value() string {
	if len(t) < 2 {
		return ""
	}
	return t[1]
}

// Tags is an ordered sequence of Tag.
type Tags []Tag

// First returns the value of the first tag with the given name, and whether
// one was found.
func (ts Tags) First(name string) (string, bool) {
	for _, t := range ts {
		if t.Name() == name {
			return t.Value(), true
		}
	}
	return "", false
}

// All returns the values of every tag with the given name, in order.
func (ts Tags) All(name string) []string {
	var out []string
	for _, t := range ts {
		if t.Name() == name {
			out = append(out, t.Value())
		}
	}
	return out
}

// Event is the generic, immutable record described in the data model: every
// schema definition, credential grant, revocation, and renewal is an Event
// distinguished only by Kind and the tags/content it carries.
type Event struct {
	ID        string `json:"id"`
	PubKey    string `json:"pubkey"`
	CreatedAt int64  `json:"created_at"`
	Kind      int    `json:"kind"`
	Tags      Tags   `json:"tags"`
	Content   string `json:"content"`
	Sig       string `json:"sig"`
}

// Replaceable kinds per the host ecosystem's generic replaceable-event
// convention: profile metadata (0), contact lists (3), and the
// application-specific replaceable range.
const (
	KindProfileMetadata = 0
	KindContactList     = 3
	KindDeletion        = 5

	replaceableRangeStart = 10000
	replaceableRangeEnd   = 19999

	ParamReplaceableRangeStart = 30000
	ParamReplaceableRangeEnd   = 39999
)

// IsReplaceable reports whether events of this kind are replaced in place by
// a later event from the same author (no "d" tag distinguishes instances).
func IsReplaceable(kind int) bool {
	return kind == KindProfileMetadata || kind == KindContactList ||
		(kind >= replaceableRangeStart && kind <= replaceableRangeEnd)
}

// IsParameterizedReplaceable reports whether events of this kind are
// replaced in place by a later event from the same author sharing the same
// "d" tag.
func IsParameterizedReplaceable(kind int) bool {
	return kind >= ParamReplaceableRangeStart && kind <= ParamReplaceableRangeEnd
}

// DTag returns the event's "d" tag value, defaulting to "" (the convention
// for parameterized-replaceable events with no explicit identifier).
func (e *Event) DTag() string {
	v, _ := e.Tags.First("d")
	return v
}

// Address returns the composite address "<kind>:<author>:<d-tag>" for
// parameterized-replaceable events this event represents.
func (e *Event) Address() string {
	return Address(e.Kind, e.PubKey, e.DTag())
}

// Address formats a composite address from its components. The d-tag tail
// is taken verbatim and may itself contain colons.
func Address(kind int, pubkey, dTag string) string {
	return fmt.Sprintf("%d:%s:%s", kind, pubkey, dTag)
}

// ParsedAddress is a composite address split into its components.
type ParsedAddress struct {
	Kind   int
	PubKey string
	DTag   string
}

// ParseAddress splits a composite address of the form "<kind>:<pubkey>:<d>".
// The tail after the second colon is taken verbatim, so it may itself
// contain colons.
func ParseAddress(addr string) (ParsedAddress, error) {
	parts := strings.SplitN(addr, ":", 3)
	if len(parts) != 3 {
		return ParsedAddress{}, fmt.Errorf("malformed address %q", addr)
	}
	kind, err := strconv.Atoi(parts[0])
	if err != nil {
		return ParsedAddress{}, fmt.Errorf("malformed address %q: non-numeric kind", addr)
	}
	return ParsedAddress{Kind: kind, PubKey: parts[1], DTag: parts[2]}, nil
}

// CanonicalArray returns the six-element array this event's id and signature
// are computed over: [0, pubkey, created_at, kind, tags, content].
func (e *Event) CanonicalArray() []interface{} {
	tags := make([][]string, len(e.Tags))
	for i, t := range e.Tags {
		tags[i] = []string(t)
	}
	return []interface{}{0, e.PubKey, e.CreatedAt, e.Kind, tags, e.Content}
}

// CanonicalJSON marshals the event's canonical array with minimal
// whitespace, preserving tag order.
func (e *Event) CanonicalJSON() ([]byte, error) {
	return json.Marshal(e.CanonicalArray())
}
