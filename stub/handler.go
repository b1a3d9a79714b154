package stub

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/thisisjab/docquery/fault"
	"github.com/thisisjab/docquery/query"
)

func (s *Server) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJson(w, http.StatusOK, map[string]any{"status": "ok"}, nil) //nolint:errcheck
}

// queryHandler answers a query object with `{<collection>: result}`.
func (s *Server) queryHandler(w http.ResponseWriter, r *http.Request) {
	var body json.RawMessage
	if s.returnOnError(w, r, s.readJson(w, r, &body)) {
		return
	}

	var req query.Request
	if err := json.Unmarshal(body, &req); err != nil {
		s.handleError(w, r, fault.New(fault.BadInputCode, "Body is not a query object.").WithOriginal(err))
		return
	}

	collection, clause, ok := req.Collection(query.ScopeFrom)
	if !ok {
		s.handleError(w, r, fault.New(fault.BadInputCode, "Query must name exactly one collection under \"from\"."))
		return
	}

	if clause == nil || clause.Do == "" {
		s.handleError(w, r, fault.New(fault.BadInputCode, fmt.Sprintf("Query on %q has no action.", collection)))
		return
	}

	action := string(clause.Do)
	s.remember(Request{Method: r.Method, Path: r.URL.Path, Collection: collection, Action: action, Body: body})

	f, err := s.fixture(collection, action)
	if s.returnOnError(w, r, err) {
		return
	}

	s.writeJson(w, http.StatusOK, map[string]any{collection: f.Result}, nil) //nolint:errcheck
}

func (s *Server) insertHandler(w http.ResponseWriter, r *http.Request) {
	s.document(w, r, actionInsert)
}

func (s *Server) insertManyHandler(w http.ResponseWriter, r *http.Request) {
	s.document(w, r, actionInsertMany)
}

// document answers an insert with the fixture result as the whole body.
func (s *Server) document(w http.ResponseWriter, r *http.Request, action string) {
	var body json.RawMessage
	if s.returnOnError(w, r, s.readJson(w, r, &body)) {
		return
	}

	var doc struct {
		Data struct {
			Data    json.RawMessage `json:"data"`
			Options map[string]any  `json:"options"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &doc); err != nil || doc.Data.Data == nil {
		s.handleError(w, r, fault.New(fault.BadInputCode, "Body must be {\"data\":{\"data\":...,\"options\":{}}}."))
		return
	}

	if action == actionInsertMany && !isArray(doc.Data.Data) {
		s.handleError(w, r, fault.New(fault.BadInputCode, "Batch insert data must be a list."))
		return
	}

	collection := r.PathValue("collection")
	s.remember(Request{Method: r.Method, Path: r.URL.Path, Collection: collection, Action: action, Body: body})

	f, err := s.fixture(collection, action)
	if s.returnOnError(w, r, err) {
		return
	}

	s.writeJson(w, http.StatusOK, f.Result, nil) //nolint:errcheck
}

func (s *Server) fixture(collection, action string) (Fixture, error) {
	f, ok := s.fixtures[fixtureKey{collection, action}]
	if !ok {
		return Fixture{}, fault.New(fault.NotFoundCode, fmt.Sprintf("No fixture for %s/%s.", collection, action))
	}

	if f.Error != "" {
		return Fixture{}, fault.Remote(f.Error)
	}

	return f, nil
}

func isArray(raw json.RawMessage) bool {
	return bytes.HasPrefix(bytes.TrimSpace(raw), []byte("["))
}
