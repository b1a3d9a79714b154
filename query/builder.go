package query

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/thisisjab/docquery/fault"
)

// Submitter sends a finished query and returns the part of the response that
// belongs to collection.
type Submitter interface {
	Submit(ctx context.Context, collection string, req Request) (json.RawMessage, error)
}

// Builder assembles a query against one collection. Chain methods mutate the
// builder and return it; a terminal method (Fetch, Count, Update, ...) sends
// the query. A Builder must not be shared between goroutines, use Clone to
// branch off an independent copy.
type Builder struct {
	clauseBuilder[*Builder]
	collection string
	submitter  Submitter
}

func NewBuilder(collection string, submitter Submitter) *Builder {
	b := &Builder{collection: collection, submitter: submitter}
	b.self = b
	b.clause = &CollectionClause{}
	return b
}

func (b *Builder) Collection() string {
	return b.collection
}

// Query returns the wire form of the query built so far. The clause is not copied.
func (b *Builder) Query() Request {
	return newRequest(ScopeFrom, b.collection, b.clause)
}

// Clone returns a builder with a deep copy of the current clause that submits
// through the same Submitter.
func (b *Builder) Clone() *Builder {
	c := NewBuilder(b.collection, b.submitter)
	c.clause = b.clause.Clone()
	c.err = b.err
	return c
}

// Delete removes the matching documents.
func (b *Builder) Delete(ctx context.Context) (json.RawMessage, error) {
	b.clause.Do = ActionDelete
	return b.persist(ctx)
}

// Count returns the number of matching documents.
func (b *Builder) Count(ctx context.Context) (json.RawMessage, error) {
	b.clause.Do = ActionCount
	return b.persist(ctx)
}

// Exists reports whether any document matches.
func (b *Builder) Exists(ctx context.Context) (json.RawMessage, error) {
	b.clause.Do = ActionExists
	return b.persist(ctx)
}

// List plucks values from the matching documents, keyed by property when one
// is given.
func (b *Builder) List(ctx context.Context, property ...string) ([]json.RawMessage, error) {
	b.clause.Do = ActionList
	if len(property) > 0 && property[0] != "" {
		b.clause.ListBy = property[0]
	}

	raw, err := b.persist(ctx)
	if err != nil {
		return nil, err
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fault.New(fault.DecodeCode, fmt.Sprintf("list result for %q is not an array", b.collection)).WithOriginal(err)
	}

	return items, nil
}

// Fetch returns the matching documents.
func (b *Builder) Fetch(ctx context.Context) (json.RawMessage, error) {
	b.clause.Do = ActionFetch
	return b.persist(ctx)
}

// FetchFirst returns the first matching document.
func (b *Builder) FetchFirst(ctx context.Context) (json.RawMessage, error) {
	b.clause.Do = ActionFetchFirst
	return b.persist(ctx)
}

// Update applies data to the matching documents.
func (b *Builder) Update(ctx context.Context, data any) (json.RawMessage, error) {
	b.clause.Set = data
	b.clause.Do = ActionUpdate
	return b.persist(ctx)
}

func (b *Builder) persist(ctx context.Context) (json.RawMessage, error) {
	if b.err != nil {
		return nil, b.err
	}

	if b.submitter == nil {
		return nil, errors.New("query builder has no submitter")
	}

	return b.submitter.Submit(ctx, b.collection, b.Query())
}
