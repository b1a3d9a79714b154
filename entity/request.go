package entity

import (
	"time"

	"github.com/google/uuid"
)

// RequestRecord describes one request the client sent to the database server.
// Action is the query's `do` tag, or "insert"/"insertMany" for documents.
type RequestRecord struct {
	ID          uuid.UUID     `json:"id"`
	Method      string        `json:"method"`
	URL         string        `json:"url"`
	Collection  string        `json:"collection"`
	Action      string        `json:"action"`
	Status      int           `json:"status"`
	Duration    time.Duration `json:"duration"`
	Error       string        `json:"error,omitempty"`
	RequestBody []byte        `json:"request_body"`
	Timestamp   time.Time     `json:"timestamp"`
}

// Failed reports whether the request ended with an error.
func (r RequestRecord) Failed() bool {
	return r.Error != ""
}
