package sa

import (
	"encoding/json"
	"strconv"

	"github.com/chainrelay/chainrelay/core"
)

// eventModel is the gorp-mapped row for the primary events table. Tags are
// stored as their canonical JSON array-of-arrays so the original event can
// be reconstructed exactly; d_tag, a_tag, and expiration_tag are promoted
// to columns for indexed lookup.
type eventModel struct {
	ID            string `db:"id"`
	PubKey        string `db:"pubkey"`
	CreatedAt     int64  `db:"created_at"`
	Kind          int    `db:"kind"`
	TagsJSON      string `db:"tags_json"`
	Content       string `db:"content"`
	Sig           string `db:"sig"`
	DTag          string `db:"d_tag"`
	ATag          string `db:"a_tag"`
	ExpirationTag *int64 `db:"expiration_tag"`
}

func toEventModel(e *core.Event) (*eventModel, error) {
	tagsJSON, err := json.Marshal(e.Tags)
	if err != nil {
		return nil, err
	}
	d, _ := e.Tags.First("d")
	a, _ := e.Tags.First("a")
	var expiration *int64
	if v, ok := e.Tags.First("expiration"); ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			expiration = &n
		}
	}
	return &eventModel{
		ID:            e.ID,
		PubKey:        e.PubKey,
		CreatedAt:     e.CreatedAt,
		Kind:          e.Kind,
		TagsJSON:      string(tagsJSON),
		Content:       e.Content,
		Sig:           e.Sig,
		DTag:          d,
		ATag:          a,
		ExpirationTag: expiration,
	}, nil
}

func (m *eventModel) toEvent() (*core.Event, error) {
	var tags core.Tags
	if err := json.Unmarshal([]byte(m.TagsJSON), &tags); err != nil {
		return nil, err
	}
	return &core.Event{
		ID:        m.ID,
		PubKey:    m.PubKey,
		CreatedAt: m.CreatedAt,
		Kind:      m.Kind,
		Tags:      tags,
		Content:   m.Content,
		Sig:       m.Sig,
	}, nil
}

// credentialModel is the gorp-mapped row for the credential index: one row
// per admitted Credential Grant, kept current by revocation and renewal
// side effects.
type credentialModel struct {
	Address       string `db:"address"`
	EventID       string `db:"event_id"`
	Recipient     string `db:"recipient"`
	Issuer        string `db:"issuer"`
	Class         string `db:"class"`
	SchemaAddress string `db:"schema_address"`
	Issued        int64  `db:"issued"`
	ExpiresAt     *int64 `db:"expires_at"`
	OriginalExp   *int64 `db:"original_expires_at"`
	ChainRef      string `db:"chain_ref"`
	Revoked       bool   `db:"revoked"`
	RevokedAt     int64  `db:"revoked_at"`
	RevokedReason string `db:"revoked_reason"`
}

func (m *credentialModel) toRecord() core.CredentialRecord {
	return core.CredentialRecord{
		Address:           m.Address,
		Recipient:         m.Recipient,
		Issuer:            m.Issuer,
		Class:             m.Class,
		SchemaAddress:     m.SchemaAddress,
		Issued:            m.Issued,
		ExpiresAt:         m.ExpiresAt,
		OriginalExpiresAt: m.OriginalExp,
		ChainRef:          m.ChainRef,
		Revoked:           m.Revoked,
		RevokedAt:         m.RevokedAt,
		RevokedReason:     m.RevokedReason,
	}
}

// schemaCacheModel is the gorp-mapped row for the schema cache: one row per
// admitted Schema Definition, keyed by composite address, holding the
// parsed content document so repeated grant admission doesn't reparse it.
type schemaCacheModel struct {
	Address     string `db:"address"`
	ContentJSON string `db:"content_json"`
	EventID     string `db:"event_id"`
}
