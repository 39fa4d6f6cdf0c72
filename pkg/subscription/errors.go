package subscription

import (
	"encoding/json"
	"errors"
)

var (
	ErrEmptyOperationID = errors.New("operation id must not be empty")
	ErrNilRequest       = errors.New("request must not be nil")
	ErrRegistryClosed   = errors.New("operation registry is closed")
	ErrEmptyResponse    = errors.New("executor returned neither a result nor a stream")
	ErrEmptyRequest     = errors.New("request payload is empty")
	ErrInvalidRequest   = errors.New("request payload is not a json object")
	ErrMissingDocument  = errors.New("request has no query, document id or persisted query hash")
)

type Location struct {
	Line   uint32 `json:"line"`
	Column uint32 `json:"column"`
}

type RequestError struct {
	Message    string          `json:"message"`
	Locations  []Location      `json:"locations,omitempty"`
	Path       []any           `json:"path,omitempty"`
	Extensions json.RawMessage `json:"extensions,omitempty"`
}

func (e RequestError) Error() string {
	return e.Message
}

// RequestErrors is the GraphQL "errors" list.
type RequestErrors []RequestError

// RequestErrorsFromError turns any error into a GraphQL errors list. Errors
// which already are RequestErrors or a RequestError are passed through. The
// returned list is never empty for a non-nil error.
func RequestErrorsFromError(err error) RequestErrors {
	if err == nil {
		return nil
	}
	var requestErrors RequestErrors
	if errors.As(err, &requestErrors) && len(requestErrors) > 0 {
		return requestErrors
	}
	var requestError RequestError
	if errors.As(err, &requestError) {
		return RequestErrors{requestError}
	}
	return RequestErrors{
		{
			Message: err.Error(),
		},
	}
}

func (o RequestErrors) Error() string {
	if len(o) > 0 {
		return o[0].Error()
	}
	return "no error"
}

func (o RequestErrors) Count() int {
	return len(o)
}
