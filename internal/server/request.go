package server

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
)

// GraphQLRequest is one operation as sent by a client.
type GraphQLRequest struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
	Extensions    map[string]any `json:"extensions,omitempty"`
}

// requestError rejects a request before anything is executed.
type requestError struct {
	status  int
	message string
}

func (e *requestError) Error() string { return e.message }

func badRequest(message string) *requestError {
	return &requestError{status: http.StatusBadRequest, message: message}
}

var (
	errMissingQuery   = badRequest("missing 'query'")
	errInvalidJSON    = badRequest("invalid JSON")
	errEmptyBatch     = badRequest("empty batch")
	errContentType    = badRequest("unsupported Content-Type")
	errBodyTooLarge   = &requestError{status: http.StatusRequestEntityTooLarge, message: "body too large"}
	errMethodNotAllow = &requestError{status: http.StatusMethodNotAllowed, message: "method not allowed"}
)

// readRequests decodes the operations of r. GET carries one operation in the
// query string; a POST body is one JSON object or a non-empty array of them.
// batch reports whether the client sent an array.
func readRequests(w http.ResponseWriter, r *http.Request, maxBody int64) (reqs []GraphQLRequest, batch bool, err *requestError) {
	switch r.Method {
	case http.MethodGet:
		req, err := queryRequest(r)
		if err != nil {
			return nil, false, err
		}
		return []GraphQLRequest{req}, false, nil
	case http.MethodPost:
	default:
		return nil, false, errMethodNotAllow
	}

	if ct := r.Header.Get("Content-Type"); ct != "" {
		if mt, _, perr := mime.ParseMediaType(ct); perr != nil || mt != "application/json" {
			return nil, false, errContentType
		}
	}

	body := r.Body
	if maxBody > 0 {
		body = http.MaxBytesReader(w, r.Body, maxBody)
	}
	defer body.Close()
	data, rerr := io.ReadAll(body)
	if rerr != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(rerr, &tooLarge) {
			return nil, false, errBodyTooLarge
		}
		return nil, false, badRequest("failed to read body")
	}

	if len(data) > 0 && data[0] == '[' {
		if json.Unmarshal(data, &reqs) != nil {
			return nil, false, errInvalidJSON
		}
		if len(reqs) == 0 {
			return nil, false, errEmptyBatch
		}
		return reqs, true, nil
	}

	var req GraphQLRequest
	if json.Unmarshal(data, &req) != nil {
		return nil, false, errInvalidJSON
	}
	if req.Query == "" {
		return nil, false, errMissingQuery
	}
	return []GraphQLRequest{req}, false, nil
}

func queryRequest(r *http.Request) (GraphQLRequest, *requestError) {
	q := r.URL.Query()
	req := GraphQLRequest{Query: q.Get("query"), OperationName: q.Get("operationName")}
	if req.Query == "" {
		return req, errMissingQuery
	}
	if v := q.Get("variables"); v != "" {
		if json.Unmarshal([]byte(v), &req.Variables) != nil {
			return req, badRequest("invalid 'variables' JSON")
		}
	}
	return req, nil
}
