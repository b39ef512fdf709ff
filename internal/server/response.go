package server

import (
	"encoding/json"
	"net/http"

	"github.com/hanpama/graphpress/internal/executor"
	"github.com/hanpama/graphpress/internal/language"
)

// response is the JSON body of one operation. Data is always present, null
// when nothing executed.
type response struct {
	Data   any             `json:"data"`
	Errors []responseError `json:"errors,omitempty"`
}

type responseError struct {
	Message    string         `json:"message"`
	Locations  []location     `json:"locations,omitempty"`
	Path       []any          `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

type location struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

func documentErrors(list language.ErrorList) response {
	out := response{Errors: make([]responseError, len(list))}
	for i, e := range list {
		re := responseError{Message: e.Message, Extensions: e.Extensions}
		for _, loc := range e.Locations {
			re.Locations = append(re.Locations, location{Line: loc.Line, Column: loc.Column})
		}
		out.Errors[i] = re
	}
	return out
}

func executionResponse(res *executor.ExecutionResult) response {
	out := response{Data: res.Data}
	for _, e := range res.Errors {
		re := responseError{Message: e.Message, Extensions: e.Extensions}
		for _, elem := range e.Path {
			re.Path = append(re.Path, elem)
		}
		out.Errors = append(out.Errors, re)
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any, pretty bool) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	_ = enc.Encode(v)
}
