package query

import "fmt"

// clauseBuilder holds the chain operations shared by Builder and
// Relationship. Every method mutates the clause in place and returns self so
// calls can be chained on the concrete builder type.
type clauseBuilder[B any] struct {
	self   B
	clause *CollectionClause
	err    error
}

func (c *clauseBuilder[B]) fail(err error) {
	if c.err == nil && err != nil {
		c.err = err
	}
}

// Err returns the first invalid operator/value pair seen by the builder or any
// of its joins.
func (c *clauseBuilder[B]) Err() error {
	return c.err
}

// Select replaces the list of fields to return. An empty call is sent as [].
func (c *clauseBuilder[B]) Select(fields ...string) B {
	c.clause.Select = append([]string{}, fields...)
	return c.self
}

// Hidden replaces the list of fields to leave out of the result.
func (c *clauseBuilder[B]) Hidden(fields ...string) B {
	c.clause.Hidden = append([]string{}, fields...)
	return c.self
}

// Where appends an AND condition.
func (c *clauseBuilder[B]) Where(field string, op Operator, value any) B {
	c.check("where", field, op, value)
	c.clause.Where = append(c.clause.Where, Condition{Field: field, Operator: op, Value: value})
	return c.self
}

// OrWhere appends an OR condition.
func (c *clauseBuilder[B]) OrWhere(field string, op Operator, value any) B {
	c.check("orWhere", field, op, value)
	c.clause.OrWhere = append(c.clause.OrWhere, Condition{Field: field, Operator: op, Value: value})
	return c.self
}

// OrderBy sets the order field and its direction.
func (c *clauseBuilder[B]) OrderBy(field string, dir Direction) B {
	c.clause.OrderBy = field
	return c.Sort(dir)
}

func (c *clauseBuilder[B]) Sort(dir Direction) B {
	c.clause.Sort = dir
	return c.self
}

// GroupBy replaces the grouping fields.
func (c *clauseBuilder[B]) GroupBy(fields ...string) B {
	c.clause.GroupBy = append([]string{}, fields...)
	return c.self
}

// Having sets the group filter. Unlike Where it does not accumulate: each call
// replaces the previous condition, which is sent as a single triple.
func (c *clauseBuilder[B]) Having(field string, op Operator, value any) B {
	c.check("having", field, op, value)
	c.clause.Having = &Condition{Field: field, Operator: op, Value: value}
	return c.self
}

func (c *clauseBuilder[B]) Limit(n int) B {
	c.clause.Limit = &n
	return c.self
}

func (c *clauseBuilder[B]) Skip(n int) B {
	c.clause.Skip = &n
	return c.self
}

// HasMany joins a one-to-many relation. configure runs before HasMany returns
// and may add filters or further joins to the child. Joining the same
// collection twice keeps only the last fragment.
func (c *clauseBuilder[B]) HasMany(collection string, configure func(*Relationship)) B {
	return c.join(ScopeHasMany, collection, configure)
}

// BelongsTo joins the owning side of a relation. See HasMany.
func (c *clauseBuilder[B]) BelongsTo(collection string, configure func(*Relationship)) B {
	return c.join(ScopeBelongsTo, collection, configure)
}

func (c *clauseBuilder[B]) join(scope Scope, collection string, configure func(*Relationship)) B {
	child := NewRelationship(RelationshipConfig{Type: scope, Collection: collection})
	if configure != nil {
		configure(child)
	}

	if child.err != nil {
		c.fail(fmt.Errorf("%s %q: %w", scope, collection, child.err))
	}

	c.clause.join(scope, collection, child.clause)
	return c.self
}

func (c *clauseBuilder[B]) check(clause, field string, op Operator, value any) {
	if err := op.Check(value); err != nil {
		c.fail(fmt.Errorf("%s %q: %w", clause, field, err))
	}
}
