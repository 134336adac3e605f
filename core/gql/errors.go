package gql

import (
	"errors"
	"strings"
)

const CodeUnauthenticated = "UNAUTHENTICATED"

var (
	ErrTransport     = errors.New("graphql transport failure")
	ErrNotFound      = errors.New("graphql endpoint not found")
	ErrBreakerOpen   = errors.New("graphql upstream unavailable")
	ErrEmptyResponse = errors.New("graphql response has no data")
)

type ErrorExtensions struct {
	Code string `json:"code,omitempty"`
}

type ErrorItem struct {
	Message    string          `json:"message"`
	Path       []any           `json:"path,omitempty"`
	Extensions ErrorExtensions `json:"extensions,omitempty"`
}

// Errors is the server-reported error array of a GraphQL response.
type Errors []ErrorItem

func (e Errors) Error() string {
	if len(e) == 0 {
		return "graphql error"
	}
	msgs := make([]string, 0, len(e))
	for _, item := range e {
		msgs = append(msgs, item.Message)
	}
	return strings.Join(msgs, "; ")
}

func (e Errors) HasCode(code string) bool {
	for _, item := range e {
		if item.Extensions.Code == code {
			return true
		}
	}
	return false
}

func IsUnauthenticated(err error) bool {
	var gerrs Errors
	return errors.As(err, &gerrs) && gerrs.HasCode(CodeUnauthenticated)
}

func IsServerError(err error) bool {
	var gerrs Errors
	return errors.As(err, &gerrs)
}

// Message renders err for the user, without the "GraphQL error: " prefix
// some servers add.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var gerrs Errors
	if errors.As(err, &gerrs) && len(gerrs) > 0 {
		return CleanMessage(gerrs[0].Message)
	}
	return CleanMessage(err.Error())
}

func CleanMessage(msg string) string {
	return strings.TrimSpace(strings.ReplaceAll(msg, "GraphQL error: ", ""))
}
