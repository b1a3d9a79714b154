package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/thisisjab/docquery/entity"
	"github.com/thisisjab/docquery/fault"
	"github.com/thisisjab/docquery/query"
)

type call struct {
	method     string
	url        string
	token      string
	collection string
	action     string
	body       any
}

// send encodes c.body, performs the request and returns the raw response body.
// A response carrying a truthy `error` field is returned as a fault.RemoteCode error.
func (db *Database) send(ctx context.Context, c call) (respBody []byte, err error) {
	var buf bytes.Buffer
	if err := query.Encode(&buf, c.body); err != nil {
		return nil, fault.New(fault.BadInputCode, "cannot encode request body").WithOriginal(err)
	}
	payload := bytes.TrimRight(buf.Bytes(), "\n")

	req, err := http.NewRequestWithContext(ctx, c.method, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("cannot create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	status := 0
	start := time.Now()

	defer func() {
		db.observe(ctx, c, payload, status, time.Since(start), err)
	}()

	resp, err := db.http.Do(req)
	if err != nil {
		return nil, fault.New(fault.TransportCode, "").WithOriginal(err)
	}
	defer resp.Body.Close()

	status = resp.StatusCode

	respBody, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, fault.New(fault.TransportCode, "cannot read response body").WithOriginal(err)
	}

	if !json.Valid(respBody) {
		return nil, fault.New(fault.DecodeCode, fmt.Sprintf("response is not valid JSON (status %d)", status)).
			WithMetadata(map[string]any{"status": status, "body": truncate(respBody, 256)})
	}

	if msg, failed := remoteError(respBody); failed {
		return nil, fault.Remote(msg).WithMetadata(map[string]any{"status": status})
	}

	return respBody, nil
}

func (db *Database) observe(ctx context.Context, c call, payload []byte, status int, took time.Duration, err error) {
	attrs := []any{"method", c.method, "url", c.url, "collection", c.collection, "action", c.action, "status", status, "duration", took}
	if err != nil {
		db.logger.Debug("request failed", append(attrs, "error", err)...)
	} else {
		db.logger.Debug("request sent", attrs...)
	}

	if db.recorder == nil {
		return
	}

	rec := entity.RequestRecord{
		ID:          uuid.New(),
		Method:      c.method,
		URL:         c.url,
		Collection:  c.collection,
		Action:      c.action,
		Status:      status,
		Duration:    took,
		RequestBody: bytes.Clone(payload),
		Timestamp:   time.Now(),
	}
	if err != nil {
		rec.Error = err.Error()
	}

	db.recorder.Record(ctx, rec)
}

// remoteError reports whether body is an object whose `error` field is truthy
// (not null, false, 0 or ""), and returns its message.
func remoteError(body []byte) (string, bool) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil {
		return "", false
	}

	raw, ok := obj["error"]
	if !ok {
		return "", false
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", false
	}

	switch e := v.(type) {
	case nil:
		return "", false
	case bool:
		return "true", e
	case float64:
		return string(raw), e != 0
	case string:
		return e, e != ""
	default:
		return string(raw), true
	}
}

// field returns body[name], or JSON null when body is not an object or lacks the field.
func field(body []byte, name string) json.RawMessage {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil {
		return json.RawMessage("null")
	}

	v, ok := obj[name]
	if !ok {
		return json.RawMessage("null")
	}

	return v
}

func isList(v any) bool {
	if v == nil {
		return false
	}
	k := reflect.TypeOf(v).Kind()
	return k == reflect.Slice || k == reflect.Array
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
