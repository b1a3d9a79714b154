package query

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
)

// Direction is the sort direction. It is sent to the server verbatim.
type Direction string

const (
	Asc       Direction = "asc"
	AscUpper  Direction = "ASC"
	Desc      Direction = "desc"
	DescUpper Direction = "DESC"
)

// Action is the terminal operation a query asks the server to perform.
type Action string

const (
	ActionDelete     Action = "delete"
	ActionCount      Action = "count"
	ActionExists     Action = "exists"
	ActionList       Action = "list"
	ActionFetch      Action = "fetch"
	ActionFetchFirst Action = "fetchFirst"
	ActionUpdate     Action = "update"
)

// Scope names the top-level key a clause lives under.
type Scope string

const (
	ScopeFrom      Scope = "from"
	ScopeHasMany   Scope = "hasMany"
	ScopeBelongsTo Scope = "belongsTo"
)

// Condition is a single [field, operator, value] filter triple.
type Condition struct {
	Field    string
	Operator Operator
	Value    any
}

func (c Condition) MarshalJSON() ([]byte, error) {
	return marshal([3]any{c.Field, c.Operator, c.Value})
}

func (c *Condition) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 3 {
		return fmt.Errorf("condition must have 3 elements, got %d", len(raw))
	}

	var field, op string
	if err := json.Unmarshal(raw[0], &field); err != nil {
		return fmt.Errorf("condition field: %w", err)
	}
	if err := json.Unmarshal(raw[1], &op); err != nil {
		return fmt.Errorf("condition operator: %w", err)
	}

	var value any
	if err := json.Unmarshal(raw[2], &value); err != nil {
		return fmt.Errorf("condition value: %w", err)
	}

	*c = Condition{Field: field, Operator: Operator(op), Value: value}
	return nil
}

// CollectionClause holds everything requested from one collection. Field order
// is the order keys appear on the wire.
type CollectionClause struct {
	Select    []string                     `json:"select,omitzero"`
	Hidden    []string                     `json:"hidden,omitzero"`
	Where     []Condition                  `json:"where,omitempty"`
	OrWhere   []Condition                  `json:"orWhere,omitempty"`
	OrderBy   string                       `json:"orderBy,omitempty"`
	Sort      Direction                    `json:"sort,omitempty"`
	GroupBy   []string                     `json:"groupBy,omitzero"`
	Having    *Condition                   `json:"having,omitempty"`
	Limit     *int                         `json:"limit,omitempty"`
	Skip      *int                         `json:"skip,omitempty"`
	Do        Action                       `json:"do,omitempty"`
	ListBy    string                       `json:"listBy,omitempty"`
	Set       any                          `json:"set,omitempty"`
	HasMany   map[string]*CollectionClause `json:"hasMany,omitempty"`
	BelongsTo map[string]*CollectionClause `json:"belongsTo,omitempty"`
}

// Clone returns a deep copy of the clause. Condition values and the update
// payload are shared.
func (c *CollectionClause) Clone() *CollectionClause {
	if c == nil {
		return nil
	}

	out := *c
	out.Select = slices.Clone(c.Select)
	out.Hidden = slices.Clone(c.Hidden)
	out.Where = slices.Clone(c.Where)
	out.OrWhere = slices.Clone(c.OrWhere)
	out.GroupBy = slices.Clone(c.GroupBy)
	if c.Having != nil {
		h := *c.Having
		out.Having = &h
	}
	if c.Limit != nil {
		n := *c.Limit
		out.Limit = &n
	}
	if c.Skip != nil {
		n := *c.Skip
		out.Skip = &n
	}
	out.HasMany = cloneJoins(c.HasMany)
	out.BelongsTo = cloneJoins(c.BelongsTo)

	return &out
}

func cloneJoins(joins map[string]*CollectionClause) map[string]*CollectionClause {
	if joins == nil {
		return nil
	}
	out := maps.Clone(joins)
	for name, clause := range out {
		out[name] = clause.Clone()
	}
	return out
}

// join stores fragment under name in the hasMany or belongsTo map, replacing
// any earlier join of the same name.
func (c *CollectionClause) join(scope Scope, name string, fragment *CollectionClause) {
	switch scope {
	case ScopeHasMany:
		if c.HasMany == nil {
			c.HasMany = make(map[string]*CollectionClause)
		}
		c.HasMany[name] = fragment
	case ScopeBelongsTo:
		if c.BelongsTo == nil {
			c.BelongsTo = make(map[string]*CollectionClause)
		}
		c.BelongsTo[name] = fragment
	}
}

// Clauses maps a collection name to its clause.
type Clauses map[string]*CollectionClause

// Request is the body sent to the server:
//
//	{"query": {"from": {"users": {...}}}}
type Request struct {
	Query map[Scope]Clauses `json:"query"`
}

func newRequest(scope Scope, collection string, clause *CollectionClause) Request {
	return Request{Query: map[Scope]Clauses{scope: {collection: clause}}}
}

// Collection returns the single collection name and clause under scope.
// ok is false unless exactly one collection is present.
func (r Request) Collection(scope Scope) (string, *CollectionClause, bool) {
	clauses := r.Query[scope]
	if len(clauses) != 1 {
		return "", nil, false
	}
	for name, clause := range clauses {
		return name, clause, true
	}
	return "", nil, false
}
