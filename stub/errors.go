package stub

import (
	"errors"
	"net/http"

	"github.com/thisisjab/docquery/fault"
)

// errorResponse is the body the database server sends on failure. Clients only
// look at the `error` field.
type errorResponse struct {
	Error  string                    `json:"error"`
	Fields fault.FieldErrorsMetadata `json:"fields,omitempty"`
}

func (s *Server) handleError(w http.ResponseWriter, r *http.Request, err error) {
	var f fault.Fault
	if errors.As(err, &f) {
		switch f.Code() {
		case fault.BadInputCode:
			if md, ok := f.Metadata().(fault.FieldErrorsMetadata); ok {
				// This is a 422 error since it's related to specific field
				m := f.Message()
				if m == "" {
					m = "Invalid fields."
				}
				s.writeError(w, r, http.StatusUnprocessableEntity, errorResponse{Error: m, Fields: md})
			} else {
				s.writeError(w, r, http.StatusBadRequest, errorResponse{Error: f.Message()})
			}

		case fault.RemoteCode:
			// Fixture errors mimic a server that answers 200 with an error field.
			s.writeError(w, r, http.StatusOK, errorResponse{Error: f.Message()})

		case fault.NotFoundCode:
			m := f.Message()
			if m == "" {
				m = "Requested resource not found."
			}
			s.writeError(w, r, http.StatusNotFound, errorResponse{Error: m})

		case fault.PermissionDeniedCode:
			m := f.Message()
			if m == "" {
				m = "Permission denied."
			}
			s.writeError(w, r, http.StatusForbidden, errorResponse{Error: m})

		default:
			s.internalServerError(w, r, f)
		}

		return
	}

	s.internalServerError(w, r, err)
}

// returnOnError handles err and reports whether the handler should stop.
func (s *Server) returnOnError(w http.ResponseWriter, r *http.Request, err error) bool {
	if err == nil {
		return false
	}

	s.handleError(w, r, err)
	return true
}

func (s *Server) logError(r *http.Request, err error) {
	s.logger.Error("internal server error", "method", r.Method, "path", r.RequestURI, "remote-addr", r.RemoteAddr, "error", err)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, response errorResponse) {
	s.writeJson(w, status, response, nil) //nolint:errcheck
}

func (s *Server) internalServerError(w http.ResponseWriter, r *http.Request, err error) {
	s.logError(r, err)
	s.writeError(w, r, http.StatusInternalServerError, errorResponse{Error: "Internal server error"})
}
