package core

// KindMapping is the configuration-driven assignment of numeric kinds to
// the four credential-subsystem event roles. The mapping is configuration,
// not protocol: any four distinct kinds in the parameterized-replaceable
// range work, as long as a deployment keeps one consistent mapping.
type KindMapping struct {
	SchemaDefinition int
	CredentialGrant  int
	Revocation       int
	Renewal          int
}

// DefaultKindMapping is the mapping used by the sample config and by tests:
// 30100-30103.
var DefaultKindMapping = KindMapping{
	SchemaDefinition: 30100,
	CredentialGrant:  30101,
	Revocation:       30102,
	Renewal:          30103,
}
