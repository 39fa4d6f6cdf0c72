package subscription

import (
	"bytes"
	"encoding/json"

	"github.com/buger/jsonparser"
)

// Request is the client supplied GraphQL request carried by a start message.
// All fields are passed through to the Executor untouched.
type Request struct {
	OperationName string          `json:"operationName,omitempty"`
	Query         string          `json:"query,omitempty"`
	DocumentID    string          `json:"documentId,omitempty"`
	Hash          string          `json:"-"`
	Variables     json.RawMessage `json:"variables,omitempty"`
	Extensions    json.RawMessage `json:"extensions,omitempty"`
}

var requestPaths = [][]string{
	{"query"},
	{"operationName"},
	{"documentId"},
	{"variables"},
	{"extensions"},
}

const (
	requestPathQuery = iota
	requestPathOperationName
	requestPathDocumentID
	requestPathVariables
	requestPathExtensions
)

// UnmarshalRequest extracts a Request from a start payload.
func UnmarshalRequest(payload []byte) (*Request, error) {
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 || bytes.Equal(payload, literalNull) {
		return nil, ErrEmptyRequest
	}
	if _, dataType, _, err := jsonparser.Get(payload); err != nil || dataType != jsonparser.Object {
		return nil, ErrInvalidRequest
	}

	var (
		request  Request
		parseErr error
	)
	jsonparser.EachKey(payload, func(i int, value []byte, dataType jsonparser.ValueType, err error) {
		if err != nil || parseErr != nil {
			if parseErr == nil {
				parseErr = err
			}
			return
		}
		if dataType == jsonparser.Null {
			return
		}
		switch i {
		case requestPathQuery:
			request.Query, parseErr = parseString(value, dataType)
		case requestPathOperationName:
			request.OperationName, parseErr = parseString(value, dataType)
		case requestPathDocumentID:
			request.DocumentID, parseErr = parseString(value, dataType)
		case requestPathVariables:
			request.Variables = copyRaw(value, dataType)
		case requestPathExtensions:
			request.Extensions = copyRaw(value, dataType)
		}
	}, requestPaths...)
	if parseErr != nil {
		return nil, parseErr
	}
	if request.Extensions != nil {
		if hash, err := jsonparser.GetString(request.Extensions, "persistedQuery", "sha256Hash"); err == nil {
			request.Hash = hash
		}
	}

	if request.Query == "" && request.DocumentID == "" && request.Hash == "" {
		return nil, ErrMissingDocument
	}
	return &request, nil
}

func parseString(value []byte, dataType jsonparser.ValueType) (string, error) {
	if dataType != jsonparser.String {
		return "", ErrInvalidRequest
	}
	return jsonparser.ParseString(value)
}

// copyRaw detaches the value from the frame buffer it was read from.
func copyRaw(value []byte, dataType jsonparser.ValueType) json.RawMessage {
	if dataType == jsonparser.String {
		// EachKey strips the quotes of string values.
		out := make([]byte, 0, len(value)+2)
		out = append(out, '"')
		out = append(out, value...)
		return append(out, '"')
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out
}
