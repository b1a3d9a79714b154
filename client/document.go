package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

type DocumentType string

const (
	DocumentSingle DocumentType = "document"
	DocumentBatch  DocumentType = "documents"
)

// InsertOptions are passed through to the server untouched.
type InsertOptions map[string]any

// DocumentConfig is everything a DocumentBuilder needs to perform its write.
type DocumentConfig struct {
	Endpoint string
	Token    string
	Type     DocumentType
	Data     any
}

type insertPayload struct {
	Data    any           `json:"data"`
	Options InsertOptions `json:"options"`
}

type documentBody struct {
	Data any `json:"data"`
}

// DocumentBuilder performs a single or batch insert.
type DocumentBuilder struct {
	cfg DocumentConfig
	db  *Database
	err error
}

func newDocumentBuilder(db *Database, typ DocumentType, data any, options []InsertOptions) *DocumentBuilder {
	opts := InsertOptions{}
	if len(options) > 0 && options[0] != nil {
		opts = options[0]
	}

	return &DocumentBuilder{
		db: db,
		cfg: DocumentConfig{
			Endpoint: db.cfg.Endpoint,
			Token:    db.tokens.Token(),
			Type:     typ,
			Data:     insertPayload{Data: data, Options: opts},
		},
	}
}

func (d *DocumentBuilder) Config() DocumentConfig {
	return d.cfg
}

// Into writes the document(s) to collection with a PUT to
// {endpoint}/{collection}, or {endpoint}/{collection}/batch for batches.
// The whole response body is returned.
func (d *DocumentBuilder) Into(ctx context.Context, collection string) (json.RawMessage, error) {
	if d.err != nil {
		return nil, d.err
	}

	elems := []string{collection}
	action := "insert"
	if d.cfg.Type == DocumentBatch {
		elems = append(elems, "batch")
		action = "insertMany"
	}

	target, err := url.JoinPath(d.cfg.Endpoint, elems...)
	if err != nil {
		return nil, fmt.Errorf("cannot build document url: %w", err)
	}

	body, err := d.db.send(ctx, call{
		method:     http.MethodPut,
		url:        target,
		token:      d.cfg.Token,
		collection: collection,
		action:     action,
		body:       documentBody{Data: d.cfg.Data},
	})
	if err != nil {
		return nil, err
	}

	return body, nil
}
