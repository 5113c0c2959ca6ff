package sa

import (
	"fmt"
	"strings"

	"github.com/chainrelay/chainrelay/core"
)

// Filter is a subscription filter: results match the union of listed
// values within a field, intersected across fields.
type Filter struct {
	IDs     []string
	Authors []string
	Kinds   []int
	ETag    []string
	PTag    []string
	ATag    []string
	DTag    []string
	Since   *int64
	Until   *int64
	Limit   int
}

// Query returns events matching f, newest-first by created_at, bounded by
// f.Limit (default 500), excluding events whose expiration tag has passed.
func (s *Store) Query(f Filter) ([]*core.Event, error) {
	var clauses []string
	var args []interface{}

	addIn := func(col string, values []string) {
		if len(values) == 0 {
			return
		}
		placeholders := make([]string, len(values))
		for i, v := range values {
			placeholders[i] = "?"
			args = append(args, v)
		}
		clauses = append(clauses, fmt.Sprintf("%s IN (%s)", col, strings.Join(placeholders, ",")))
	}

	addIn("id", f.IDs)
	addIn("pubkey", f.Authors)
	if len(f.Kinds) > 0 {
		placeholders := make([]string, len(f.Kinds))
		for i, k := range f.Kinds {
			placeholders[i] = "?"
			args = append(args, k)
		}
		clauses = append(clauses, fmt.Sprintf("kind IN (%s)", strings.Join(placeholders, ",")))
	}
	// #a and #d are promoted to columns, so exact matching is cheap.
	addIn("a_tag", f.ATag)
	addIn("d_tag", f.DTag)
	// #e and #p are not promoted; match via substring over the serialized
	// tag array.
	addTagSubstring := func(name string, values []string) {
		if len(values) == 0 {
			return
		}
		var ors []string
		for _, v := range values {
			ors = append(ors, "tags_json LIKE ?")
			args = append(args, "%[\""+name+"\",\""+v+"\"%")
		}
		clauses = append(clauses, "("+strings.Join(ors, " OR ")+")")
	}
	addTagSubstring("e", f.ETag)
	addTagSubstring("p", f.PTag)

	if f.Since != nil {
		clauses = append(clauses, "created_at >= ?")
		args = append(args, *f.Since)
	}
	if f.Until != nil {
		clauses = append(clauses, "created_at <= ?")
		args = append(args, *f.Until)
	}

	now := s.clk.Now().Unix()
	clauses = append(clauses, "(expiration_tag IS NULL OR expiration_tag >= ?)")
	args = append(args, now)

	limit := f.Limit
	if limit <= 0 {
		limit = s.defaultLimit
	}

	query := "SELECT * FROM events"
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, limit)

	var models []eventModel
	_, err := s.dbMap.Select(&models, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	out := make([]*core.Event, 0, len(models))
	for i := range models {
		ev, err := models[i].toEvent()
		if err != nil {
			return nil, fmt.Errorf("decoding event %s: %w", models[i].ID, err)
		}
		out = append(out, ev)
	}
	return out, nil
}
