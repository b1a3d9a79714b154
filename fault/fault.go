package fault

import (
	"errors"
	"fmt"
)

type faultCode string

const (
	UnknownCode  faultCode = "unknown"
	BadInputCode faultCode = "bad_input"
	// RemoteCode marks a request the database server rejected with an `error` field.
	RemoteCode faultCode = "remote"
	// TransportCode marks a request that never produced a response.
	TransportCode faultCode = "transport"
	// DecodeCode marks a response body that is not valid JSON.
	DecodeCode   faultCode = "decode"
	NotFoundCode faultCode = "not_found"
	// PermissionDeniedCode is used by the stub server for bad bearer tokens.
	PermissionDeniedCode faultCode = "permission_denied"
)

type FieldErrorsMetadata map[string][]string

type Fault struct {
	code     faultCode
	message  string
	metadata any
	original error
}

func New(code faultCode, message string) Fault {
	return Fault{
		code:    code,
		message: message,
	}
}

// Remote builds the error returned when the server answers with an `error` field.
// Its Error() is exactly the server's message.
func Remote(message string) Fault {
	return New(RemoteCode, message)
}

func (f Fault) WithMetadata(metadata any) Fault {
	e := f
	e.metadata = metadata
	return e
}

func (f Fault) WithOriginal(original error) Fault {
	e := f
	e.original = original
	return e
}

func (f Fault) Code() faultCode {
	return f.code
}

func (f Fault) Message() string {
	return f.message
}

func (f Fault) Metadata() any {
	return f.metadata
}

func (f Fault) Original() error {
	return f.original
}

func (f Fault) Unwrap() error {
	return f.original
}

func (f Fault) Error() string {
	if f.original != nil {
		if f.message == "" {
			return f.original.Error()
		}
		return fmt.Sprintf("%s: %v", f.message, f.original)
	}
	if f.message == "" {
		if md, ok := f.metadata.(FieldErrorsMetadata); ok {
			return fmt.Sprintf("%s: %v", f.code, map[string][]string(md))
		}
		return string(f.code)
	}
	return f.message
}

// HasCode reports whether err is a Fault carrying code.
func HasCode(err error, code faultCode) bool {
	var f Fault
	if !errors.As(err, &f) {
		return false
	}
	return f.code == code
}
