// Package schemapolicy validates that a Schema Definition event's content
// document is internally consistent before the store caches it.
package schemapolicy

import (
	"strings"

	"github.com/chainrelay/chainrelay/core"
	"github.com/chainrelay/chainrelay/relayerrors"
)

// Validate checks a Schema Definition event and its parsed content document,
// returning the first violation found or nil.
func Validate(e *core.Event) (*core.SchemaDocument, error) {
	if _, ok := e.Tags.First("d"); !ok {
		return nil, relayerrors.StructuralError("schema definition missing required d tag")
	}
	if _, ok := e.Tags.First("name"); !ok {
		return nil, relayerrors.StructuralError("schema definition missing required name tag")
	}

	doc, err := core.ParseSchemaDocument(e.Content)
	if err != nil {
		return nil, relayerrors.SchemaError("schema content is not valid JSON: %s", err)
	}
	if len(doc.Classes) == 0 {
		return nil, relayerrors.SchemaError("schema must define at least one class")
	}

	for id, class := range doc.Classes {
		// A class id must never be confusable with a composite address
		// component, so colons are forbidden.
		if id == "" || strings.Contains(id, ":") {
			return nil, relayerrors.SchemaError("class id %q is malformed: must be non-empty and contain no colons", id)
		}
		if id == core.RootIssuer {
			return nil, relayerrors.SchemaError("class id %q is reserved", core.RootIssuer)
		}
		if class.Name == "" {
			return nil, relayerrors.SchemaError("class %q missing required name field", id)
		}
		for _, scopeClass := range class.Scope {
			if _, ok := doc.Classes[scopeClass]; !ok {
				return nil, relayerrors.SchemaError("class %q scope references unknown class %q", id, scopeClass)
			}
		}
		if len(class.IssuedBy) == 0 {
			return nil, relayerrors.SchemaError("class %q must specify issued_by", id)
		}
		for _, issuer := range class.IssuedBy {
			if issuer == core.RootIssuer {
				continue
			}
			if _, ok := doc.Classes[issuer]; !ok {
				return nil, relayerrors.SchemaError("class %q issued_by references unknown class %q", id, issuer)
			}
		}
		if class.Expiry.MaxDays != nil && *class.Expiry.MaxDays < 0 {
			return nil, relayerrors.SchemaError("class %q has negative expiry.max_days", id)
		}
	}
	return doc, nil
}
