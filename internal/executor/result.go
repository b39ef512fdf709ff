package executor

import "errors"

// GraphQLError represents an error that occurred during execution
type GraphQLError struct {
	Message    string         `json:"message"`
	Path       Path           `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

func (e GraphQLError) Error() string {
	return e.Message
}

// ExecutionResult represents the result of executing a GraphQL query
type ExecutionResult struct {
	Data   any            `json:"data"`
	Errors []GraphQLError `json:"errors,omitempty"`
}

type extensionsError interface {
	Extensions() map[string]any
}

// newFieldError locates err at path. Errors exposing Extensions, anywhere in
// the wrap chain, carry them into the response.
func newFieldError(err error, path Path) GraphQLError {
	ge := GraphQLError{Message: err.Error(), Path: path}
	var ext extensionsError
	if errors.As(err, &ext) {
		ge.Extensions = ext.Extensions()
	}
	return ge
}
