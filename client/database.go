package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/thisisjab/docquery/entity"
	"github.com/thisisjab/docquery/fault"
	"github.com/thisisjab/docquery/query"
)

// Recorder receives a record of every request the client sends.
type Recorder interface {
	Record(ctx context.Context, records ...entity.RequestRecord)
}

// Transformer rewrites a query result after it has been unwrapped.
type Transformer interface {
	Transform(collection string, result json.RawMessage) (json.RawMessage, error)
}

type Option func(*Database)

func WithHTTPClient(c *http.Client) Option {
	return func(db *Database) { db.http = c }
}

// WithTokenSource replaces Config.Token with a token that may change over time.
func WithTokenSource(ts TokenSource) Option {
	return func(db *Database) { db.tokens = ts }
}

func WithRecorder(r Recorder) Option {
	return func(db *Database) { db.recorder = r }
}

func WithTransformer(t Transformer) Option {
	return func(db *Database) { db.transformer = t }
}

// Database is the entry point of the SDK. It is safe for concurrent use; the
// builders it returns are not.
type Database struct {
	cfg         Config
	logger      *slog.Logger
	http        *http.Client
	tokens      TokenSource
	recorder    Recorder
	transformer Transformer
	collections *CollectionBuilder
}

func New(cfg Config, logger *slog.Logger, opts ...Option) (*Database, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fault.New(fault.BadInputCode, "invalid client config").WithOriginal(err)
	}

	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	db := &Database{
		cfg:    cfg,
		logger: logger,
		http:   &http.Client{Timeout: cfg.Timeout},
		tokens: StaticToken(cfg.Token),
	}

	for _, opt := range opts {
		opt(db)
	}

	db.collections = &CollectionBuilder{db: db}

	return db, nil
}

func (db *Database) Config() Config {
	return db.cfg
}

// Query returns the collection builder bound to this database. The same
// instance is returned on every call.
func (db *Database) Query() *CollectionBuilder {
	return db.collections
}

// Insert prepares a single document write. Options default to an empty object.
func (db *Database) Insert(data any, options ...InsertOptions) *DocumentBuilder {
	return newDocumentBuilder(db, DocumentSingle, data, options)
}

// InsertMany prepares a batch write. data must be a slice or array.
func (db *Database) InsertMany(data any, options ...InsertOptions) *DocumentBuilder {
	d := newDocumentBuilder(db, DocumentBatch, data, options)
	if !isList(data) {
		d.err = fault.New(fault.BadInputCode, fmt.Sprintf("insertMany expects a slice or array, got %T", data))
	}
	return d
}

// Submit posts req to the endpoint and returns the response field named after
// collection. It implements query.Submitter.
func (db *Database) Submit(ctx context.Context, collection string, req query.Request) (json.RawMessage, error) {
	action := ""
	if _, clause, ok := req.Collection(query.ScopeFrom); ok {
		action = string(clause.Do)
	}

	body, err := db.send(ctx, call{
		method:     http.MethodPost,
		url:        db.cfg.Endpoint,
		token:      db.tokens.Token(),
		collection: collection,
		action:     action,
		body:       req,
	})
	if err != nil {
		return nil, err
	}

	result := field(body, collection)

	if db.transformer != nil {
		result, err = db.transformer.Transform(collection, result)
		if err != nil {
			return nil, fmt.Errorf("cannot transform %q result: %w", collection, err)
		}
	}

	return result, nil
}

// CollectionBuilder hands out query builders scoped to a collection.
type CollectionBuilder struct {
	db *Database
}

// From starts a new query against collection.
func (c *CollectionBuilder) From(collection string) *query.Builder {
	return query.NewBuilder(collection, c.db)
}
