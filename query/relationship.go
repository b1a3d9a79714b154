package query

// RelationshipConfig names the joined collection and how it relates to its parent.
type RelationshipConfig struct {
	// Type is ScopeHasMany or ScopeBelongsTo.
	Type       Scope
	Collection string
}

// Relationship builds the clause of a joined collection. It supports the same
// filters and joins as Builder but performs no I/O.
type Relationship struct {
	clauseBuilder[*Relationship]
	cfg RelationshipConfig
}

func NewRelationship(cfg RelationshipConfig) *Relationship {
	r := &Relationship{cfg: cfg}
	r.self = r
	r.clause = &CollectionClause{}
	return r
}

func (r *Relationship) Config() RelationshipConfig {
	return r.cfg
}

// Query returns {"query": {<type>: {<collection>: clause}}}. The clause is not
// copied.
func (r *Relationship) Query() Request {
	return newRequest(r.cfg.Type, r.cfg.Collection, r.clause)
}

// Clause returns the joined collection's clause without copying it.
func (r *Relationship) Clause() *CollectionClause {
	return r.clause
}
