// Package sa implements the event store: durable, indexed persistence of
// events with replaceable-event semantics, a credential index, and a schema
// cache.
package sa

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmhodges/clock"
	"github.com/rs/zerolog"
	"gopkg.in/go-gorp/gorp.v2"

	"github.com/chainrelay/chainrelay/core"
	"github.com/chainrelay/chainrelay/metrics"
)

// Store is the durable, indexed event store. All state-mutating operations
// on a single event commit atomically in one gorp transaction: readers
// observe either the full effect of an insert plus its side effects, or
// none of it.
type Store struct {
	dbMap        *gorp.DbMap
	clk          clock.Clock
	scope        metrics.Scope
	log          zerolog.Logger
	kinds        core.KindMapping
	defaultLimit int
}

// DefaultQueryLimit bounds query results when a filter names no limit of
// its own.
const DefaultQueryLimit = 500

// New constructs a Store over an already-opened dbMap. defaultLimit bounds
// query results for filters that carry no limit; a non-positive value uses
// DefaultQueryLimit.
func New(dbMap *gorp.DbMap, clk clock.Clock, scope metrics.Scope, log zerolog.Logger, kinds core.KindMapping, defaultLimit int) *Store {
	if defaultLimit <= 0 {
		defaultLimit = DefaultQueryLimit
	}
	return &Store{
		dbMap:        dbMap,
		clk:          clk,
		scope:        scope.NewScope("store"),
		log:          log.With().Str("component", "store").Logger(),
		kinds:        kinds,
		defaultLimit: defaultLimit,
	}
}

// Save persists e, applying replaceable-event removal, the credential
// index, schema cache, and revocation/renewal side effects. It returns
// (true, nil) if the event is now durably stored — including the idempotent
// case where it already was — and (false, nil) if a post-condition
// violation (e.g. a concurrent insert of the same id) prevented acceptance.
func (s *Store) Save(ctx context.Context, e *core.Event) (bool, error) {
	var existing eventModel
	err := s.dbMap.SelectOne(&existing, "SELECT id FROM events WHERE id = ?", e.ID)
	if err == nil {
		return true, nil
	}
	if err != sql.ErrNoRows {
		s.scope.Inc("errors", 1)
		return false, fmt.Errorf("checking for existing event: %w", err)
	}

	tx, err := s.dbMap.Begin()
	if err != nil {
		return false, fmt.Errorf("beginning transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if core.IsReplaceable(e.Kind) {
		if _, err := tx.Exec(
			"DELETE FROM events WHERE kind = ? AND pubkey = ? AND (created_at < ? OR (created_at = ? AND id > ?))",
			e.Kind, e.PubKey, e.CreatedAt, e.CreatedAt, e.ID,
		); err != nil {
			return false, fmt.Errorf("removing superseded events: %w", err)
		}
		n, err := tx.SelectInt("SELECT COUNT(*) FROM events WHERE kind = ? AND pubkey = ?", e.Kind, e.PubKey)
		if err != nil {
			return false, fmt.Errorf("checking for superseding event: %w", err)
		}
		if n > 0 {
			// A same-key event with greater (created_at, id) precedence
			// survived the delete, so the incoming event arrives already
			// superseded. Treat it like a duplicate.
			s.scope.Inc("superseded", 1)
			return true, nil
		}
	} else if core.IsParameterizedReplaceable(e.Kind) {
		d := e.DTag()
		if _, err := tx.Exec(
			"DELETE FROM events WHERE kind = ? AND pubkey = ? AND d_tag = ? AND (created_at < ? OR (created_at = ? AND id > ?))",
			e.Kind, e.PubKey, d, e.CreatedAt, e.CreatedAt, e.ID,
		); err != nil {
			return false, fmt.Errorf("removing superseded events: %w", err)
		}
		n, err := tx.SelectInt("SELECT COUNT(*) FROM events WHERE kind = ? AND pubkey = ? AND d_tag = ?", e.Kind, e.PubKey, d)
		if err != nil {
			return false, fmt.Errorf("checking for superseding event: %w", err)
		}
		if n > 0 {
			s.scope.Inc("superseded", 1)
			return true, nil
		}
	}

	model, err := toEventModel(e)
	if err != nil {
		return false, fmt.Errorf("encoding event: %w", err)
	}
	if err := tx.Insert(model); err != nil {
		s.scope.Inc("rejected", 1)
		return false, nil
	}

	switch {
	case e.Kind == s.kinds.CredentialGrant:
		if err := s.upsertCredential(tx, e); err != nil {
			return false, fmt.Errorf("indexing credential grant: %w", err)
		}
	case e.Kind == s.kinds.SchemaDefinition:
		if err := s.cacheSchema(tx, e); err != nil {
			return false, fmt.Errorf("caching schema: %w", err)
		}
	case e.Kind == s.kinds.Revocation:
		if err := s.applyRevocation(tx, e); err != nil {
			return false, fmt.Errorf("applying revocation: %w", err)
		}
	case e.Kind == s.kinds.Renewal:
		if err := s.applyRenewal(tx, e); err != nil {
			return false, fmt.Errorf("applying renewal: %w", err)
		}
	case e.Kind == core.KindDeletion:
		if err := s.applyDeletion(tx, e); err != nil {
			return false, fmt.Errorf("applying deletion: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("committing: %w", err)
	}
	committed = true
	s.scope.Inc("accepted", 1)
	return true, nil
}

func (s *Store) upsertCredential(tx SqlExecutor, e *core.Event) error {
	p, _ := e.Tags.First("p")
	a, _ := e.Tags.First("a")
	class, _ := e.Tags.First("class")
	issuedStr, _ := e.Tags.First("issued")
	expiresStr, _ := e.Tags.First("expires")
	chain, _ := e.Tags.First("chain")

	issued := parseInt64(issuedStr)
	var expiresAt *int64
	if expiresStr != "perpetual" {
		v := parseInt64(expiresStr)
		expiresAt = &v
	}

	addr := e.Address()
	var existing credentialModel
	err := tx.SelectOne(&existing, "SELECT * FROM credentials WHERE address = ?", addr)
	model := &credentialModel{
		Address:       addr,
		EventID:       e.ID,
		Recipient:     p,
		Issuer:        e.PubKey,
		Class:         class,
		SchemaAddress: a,
		Issued:        issued,
		ExpiresAt:     expiresAt,
		OriginalExp:   expiresAt,
		ChainRef:      chain,
	}
	if err == sql.ErrNoRows {
		return tx.Insert(model)
	}
	if err != nil {
		return err
	}
	model.Revoked = existing.Revoked
	model.RevokedAt = existing.RevokedAt
	model.RevokedReason = existing.RevokedReason
	_, err = tx.Update(model)
	return err
}

func (s *Store) cacheSchema(tx SqlExecutor, e *core.Event) error {
	addr := e.Address()
	var existing schemaCacheModel
	err := tx.SelectOne(&existing, "SELECT * FROM schema_cache WHERE address = ?", addr)
	model := &schemaCacheModel{Address: addr, ContentJSON: e.Content, EventID: e.ID}
	if err == sql.ErrNoRows {
		return tx.Insert(model)
	}
	if err != nil {
		return err
	}
	_, err = tx.Update(model)
	return err
}

func (s *Store) applyRevocation(tx SqlExecutor, e *core.Event) error {
	a, ok := e.Tags.First("a")
	if !ok {
		return nil
	}
	addr, err := core.ParseAddress(a)
	if err != nil || addr.Kind != s.kinds.CredentialGrant {
		return nil
	}
	reason, _ := e.Tags.First("reason")

	var model credentialModel
	err = tx.SelectOne(&model, "SELECT * FROM credentials WHERE address = ?", a)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return err
	}
	if model.Revoked {
		return nil
	}
	model.Revoked = true
	model.RevokedAt = e.CreatedAt
	model.RevokedReason = reason
	_, err = tx.Update(&model)
	return err
}

func (s *Store) applyRenewal(tx SqlExecutor, e *core.Event) error {
	a, ok := e.Tags.First("a")
	if !ok {
		return nil
	}
	expiresStr, ok := e.Tags.First("expires")
	if !ok || expiresStr == "perpetual" {
		return nil
	}
	newExpires := parseInt64(expiresStr)

	var model credentialModel
	err := tx.SelectOne(&model, "SELECT * FROM credentials WHERE address = ?", a)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return err
	}
	if model.Revoked {
		return nil
	}
	if !s.classRenewable(tx, model.SchemaAddress, model.Class) {
		s.log.Debug().Str("address", model.Address).Msg("ignoring renewal of non-renewable class")
		return nil
	}
	model.ExpiresAt = &newExpires
	_, err = tx.Update(&model)
	return err
}

// classRenewable reports whether the class of an indexed grant permits
// renewal. Unresolvable schemas and unknown classes count as non-renewable:
// a renewal never extends a grant the relay can no longer interpret.
func (s *Store) classRenewable(q OneSelector, schemaAddr, class string) bool {
	var model schemaCacheModel
	if err := q.SelectOne(&model, "SELECT * FROM schema_cache WHERE address = ?", schemaAddr); err != nil {
		return false
	}
	doc, err := core.ParseSchemaDocument(model.ContentJSON)
	if err != nil {
		return false
	}
	def, ok := doc.Classes[class]
	return ok && def.Expiry.Renewable
}

// applyDeletion removes the events a deletion's e tags name, but only those
// authored by the deletion's own author.
func (s *Store) applyDeletion(tx SqlExecutor, e *core.Event) error {
	for _, id := range e.Tags.All("e") {
		if id == "" {
			continue
		}
		if _, err := tx.Exec("DELETE FROM events WHERE id = ? AND pubkey = ?", id, e.PubKey); err != nil {
			return err
		}
	}
	return nil
}

func parseInt64(s string) int64 {
	var n int64
	_, _ = fmt.Sscanf(s, "%d", &n)
	return n
}

// Get retrieves an event by id.
func (s *Store) Get(id string) (*core.Event, bool, error) {
	var model eventModel
	err := s.dbMap.SelectOne(&model, "SELECT * FROM events WHERE id = ?", id)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	ev, err := model.toEvent()
	if err != nil {
		return nil, false, err
	}
	return ev, true, nil
}

// ResolveSchema implements grant.SchemaResolver and verifier.SchemaResolver.
func (s *Store) ResolveSchema(addr string) (*core.SchemaDocument, bool) {
	var model schemaCacheModel
	err := s.dbMap.SelectOne(&model, "SELECT * FROM schema_cache WHERE address = ?", addr)
	if err != nil {
		return nil, false
	}
	doc, err := core.ParseSchemaDocument(model.ContentJSON)
	if err != nil {
		return nil, false
	}
	return doc, true
}

// CredentialByAddress looks up the credential index row for a grant's
// composite address.
func (s *Store) CredentialByAddress(addr string) (*core.CredentialRecord, bool, error) {
	var model credentialModel
	err := s.dbMap.SelectOne(&model, "SELECT * FROM credentials WHERE address = ?", addr)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	rec := model.toRecord()
	return &rec, true, nil
}

// CredentialsByRecipient, CredentialsByIssuer, CredentialsBySchema, and
// CredentialsByClass are the credential-index lookups.
func (s *Store) CredentialsByRecipient(pubkey string) ([]core.CredentialRecord, error) {
	return s.credentialsWhere("recipient = ?", pubkey)
}

func (s *Store) CredentialsByIssuer(pubkey string) ([]core.CredentialRecord, error) {
	return s.credentialsWhere("issuer = ?", pubkey)
}

func (s *Store) CredentialsBySchema(schemaAddr string) ([]core.CredentialRecord, error) {
	return s.credentialsWhere("schema_address = ?", schemaAddr)
}

func (s *Store) CredentialsByClass(class string) ([]core.CredentialRecord, error) {
	return s.credentialsWhere("class = ?", class)
}

func (s *Store) credentialsWhere(clause string, arg interface{}) ([]core.CredentialRecord, error) {
	var models []credentialModel
	_, err := s.dbMap.Select(&models, "SELECT * FROM credentials WHERE "+clause, arg)
	if err != nil {
		return nil, err
	}
	out := make([]core.CredentialRecord, len(models))
	for i := range models {
		out[i] = models[i].toRecord()
	}
	return out, nil
}
