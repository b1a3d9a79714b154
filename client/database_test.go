package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thisisjab/docquery/entity"
	"github.com/thisisjab/docquery/fault"
	"github.com/thisisjab/docquery/query"
)

type capturedRequest struct {
	Method string
	Path   string
	Header http.Header
	Body   string
}

// newTestServer answers every request with reply and records what it received.
func newTestServer(t *testing.T, reply string) (*httptest.Server, *[]capturedRequest) {
	t.Helper()

	var mu sync.Mutex
	var captured []capturedRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)

		mu.Lock()
		captured = append(captured, capturedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Header: r.Header.Clone(),
			Body:   string(body),
		})
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, reply) //nolint:errcheck
	}))
	t.Cleanup(srv.Close)

	return srv, &captured
}

func newTestDatabase(t *testing.T, endpoint string, opts ...Option) *Database {
	t.Helper()

	db, err := New(Config{Endpoint: endpoint, Token: "secret"}, nil, opts...)
	require.NoError(t, err)
	return db
}

func TestFetchUnwrapsCollectionField(t *testing.T) {
	srv, captured := newTestServer(t, `{"users":[{"id":1}],"meta":{"took":3}}`)
	db := newTestDatabase(t, srv.URL+"/api")

	res, err := db.Query().From("users").
		Where("age", query.OpGt, 18).
		OrderBy("name", query.Asc).
		Limit(10).
		Fetch(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":1}]`, string(res))

	require.Len(t, *captured, 1)
	got := (*captured)[0]
	assert.Equal(t, http.MethodPost, got.Method)
	assert.Equal(t, "/api", got.Path)
	assert.Equal(t, "application/json", got.Header.Get("Content-Type"))
	assert.Equal(t, "Bearer secret", got.Header.Get("Authorization"))
	assert.Equal(t,
		`{"query":{"from":{"users":{"where":[["age",">",18]],"orderBy":"name","sort":"asc","limit":10,"do":"fetch"}}}}`,
		got.Body,
	)
}

func TestFetchRemoteError(t *testing.T) {
	srv, captured := newTestServer(t, `{"error":"not found"}`)
	db := newTestDatabase(t, srv.URL)

	res, err := db.Query().From("users").Fetch(context.Background())
	require.EqualError(t, err, "not found")
	assert.Nil(t, res)
	assert.True(t, fault.HasCode(err, fault.RemoteCode))
	assert.Len(t, *captured, 1)
}

func TestFalsyErrorFieldIsIgnored(t *testing.T) {
	for _, reply := range []string{
		`{"error":null,"users":3}`,
		`{"error":"","users":3}`,
		`{"error":false,"users":3}`,
		`{"error":0,"users":3}`,
	} {
		srv, _ := newTestServer(t, reply)
		db := newTestDatabase(t, srv.URL)

		res, err := db.Query().From("users").Count(context.Background())
		require.NoError(t, err, reply)
		assert.Equal(t, "3", string(res))
	}
}

func TestMissingCollectionFieldIsNull(t *testing.T) {
	srv, _ := newTestServer(t, `{"posts":[]}`)
	db := newTestDatabase(t, srv.URL)

	res, err := db.Query().From("users").FetchFirst(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "null", string(res))

	user, err := query.As[map[string]any](res, nil)
	require.NoError(t, err)
	assert.Nil(t, user)
}

func TestInvalidJSONResponse(t *testing.T) {
	srv, _ := newTestServer(t, `<html>bad gateway</html>`)
	db := newTestDatabase(t, srv.URL)

	_, err := db.Query().From("users").Fetch(context.Background())
	require.Error(t, err)
	assert.True(t, fault.HasCode(err, fault.DecodeCode))
}

func TestTransportErrorIsWrapped(t *testing.T) {
	srv, _ := newTestServer(t, `{}`)
	endpoint := srv.URL
	srv.Close()

	db := newTestDatabase(t, endpoint)

	_, err := db.Query().From("users").Fetch(context.Background())
	require.Error(t, err)
	assert.True(t, fault.HasCode(err, fault.TransportCode))

	var urlErr *url.Error
	assert.True(t, errors.As(err, &urlErr))
}

func TestInsertSingleDocument(t *testing.T) {
	srv, captured := newTestServer(t, `{"id":"u1","name":"Donald"}`)
	db := newTestDatabase(t, srv.URL)

	res, err := db.Insert(map[string]any{"name": "Donald"}).Into(context.Background(), "users")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"u1","name":"Donald"}`, string(res))

	require.Len(t, *captured, 1)
	got := (*captured)[0]
	assert.Equal(t, http.MethodPut, got.Method)
	assert.Equal(t, "/users", got.Path)
	assert.Equal(t, "Bearer secret", got.Header.Get("Authorization"))
	assert.Equal(t, `{"data":{"data":{"name":"Donald"},"options":{}}}`, got.Body)
}

func TestInsertWithOptions(t *testing.T) {
	srv, captured := newTestServer(t, `{}`)
	db := newTestDatabase(t, srv.URL)

	_, err := db.Insert(map[string]any{"name": "Daisy"}, InsertOptions{"upsert": true}).Into(context.Background(), "users")
	require.NoError(t, err)
	assert.Equal(t, `{"data":{"data":{"name":"Daisy"},"options":{"upsert":true}}}`, (*captured)[0].Body)
}

func TestInsertManyUsesBatchPath(t *testing.T) {
	srv, captured := newTestServer(t, `{"created":2}`)
	db := newTestDatabase(t, srv.URL+"/api/")

	docs := []map[string]any{{"name": "Donald"}, {"name": "Daisy"}}
	res, err := db.InsertMany(docs).Into(context.Background(), "users")
	require.NoError(t, err)
	assert.JSONEq(t, `{"created":2}`, string(res))

	got := (*captured)[0]
	assert.Equal(t, http.MethodPut, got.Method)
	assert.Equal(t, "/api/users/batch", got.Path)
	assert.Equal(t, `{"data":{"data":[{"name":"Donald"},{"name":"Daisy"}],"options":{}}}`, got.Body)
}

func TestInsertManyRejectsNonSlice(t *testing.T) {
	srv, captured := newTestServer(t, `{}`)
	db := newTestDatabase(t, srv.URL)

	_, err := db.InsertMany(map[string]any{"name": "Donald"}).Into(context.Background(), "users")
	require.Error(t, err)
	assert.True(t, fault.HasCode(err, fault.BadInputCode))
	assert.Empty(t, *captured)
}

func TestInsertRemoteError(t *testing.T) {
	srv, _ := newTestServer(t, `{"error":"duplicate key"}`)
	db := newTestDatabase(t, srv.URL)

	_, err := db.Insert(map[string]any{"id": 1}).Into(context.Background(), "users")
	assert.EqualError(t, err, "duplicate key")
}

func TestQueryReturnsSameCollectionBuilder(t *testing.T) {
	db := newTestDatabase(t, "http://localhost:1")
	assert.Same(t, db.Query(), db.Query())
	assert.NotSame(t, db.Query().From("users"), db.Query().From("users"))
}

func TestConfigValidation(t *testing.T) {
	_, err := New(Config{}, nil)
	assert.Error(t, err)

	_, err = New(Config{Endpoint: "ftp://example.com"}, nil)
	assert.Error(t, err)

	_, err = New(Config{Endpoint: "https://example.com", Timeout: -1}, nil)
	assert.Error(t, err)
}

type rotatingToken struct{ value string }

func (r *rotatingToken) Token() string { return r.value }

func TestTokenSourceIsReadPerRequest(t *testing.T) {
	srv, captured := newTestServer(t, `{"users":[]}`)
	tok := &rotatingToken{value: "first"}
	db := newTestDatabase(t, srv.URL, WithTokenSource(tok))

	_, err := db.Query().From("users").Fetch(context.Background())
	require.NoError(t, err)

	tok.value = "second"
	_, err = db.Query().From("users").Fetch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "Bearer first", (*captured)[0].Header.Get("Authorization"))
	assert.Equal(t, "Bearer second", (*captured)[1].Header.Get("Authorization"))
}

type memoryRecorder struct {
	records []entity.RequestRecord
}

func (m *memoryRecorder) Record(_ context.Context, records ...entity.RequestRecord) {
	m.records = append(m.records, records...)
}

func TestRecorderReceivesEveryRequest(t *testing.T) {
	srv, _ := newTestServer(t, `{"error":"boom"}`)
	rec := &memoryRecorder{}
	db := newTestDatabase(t, srv.URL, WithRecorder(rec))

	_, _ = db.Query().From("users").Where("id", query.OpEq, 1).Delete(context.Background())
	_, _ = db.InsertMany([]int{1, 2}).Into(context.Background(), "numbers")

	require.Len(t, rec.records, 2)

	assert.Equal(t, "users", rec.records[0].Collection)
	assert.Equal(t, "delete", rec.records[0].Action)
	assert.Equal(t, http.StatusOK, rec.records[0].Status)
	assert.Equal(t, "boom", rec.records[0].Error)
	assert.True(t, rec.records[0].Failed())
	assert.Equal(t, `{"query":{"from":{"users":{"where":[["id","=",1]],"do":"delete"}}}}`, string(rec.records[0].RequestBody))

	assert.Equal(t, "insertMany", rec.records[1].Action)
	assert.Equal(t, http.MethodPut, rec.records[1].Method)
}

type upperTransformer struct{}

func (upperTransformer) Transform(collection string, result json.RawMessage) (json.RawMessage, error) {
	return json.RawMessage(`{"collection":"` + collection + `","result":` + string(result) + `}`), nil
}

func TestTransformerAppliesToQueryResults(t *testing.T) {
	srv, _ := newTestServer(t, `{"users":5}`)
	db := newTestDatabase(t, srv.URL, WithTransformer(upperTransformer{}))

	res, err := db.Query().From("users").Count(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, `{"collection":"users","result":5}`, string(res))
}
