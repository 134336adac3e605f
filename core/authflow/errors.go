package authflow

import (
	"errors"
	"sort"
	"strings"
)

const (
	MsgSignInFailed    = "Unable to sign in. Check your credentials and try again."
	MsgMissingTokens   = "Missing tokens in response."
	MsgProfileFailed   = "Unable to load your profile after login."
	MsgServerUnreached = "Unable to reach the server. Please try again."
)

var (
	ErrInFlight      = errors.New("sign-in already in progress")
	ErrProfileFailed = errors.New("profile resolution failed")
)

// ValidationError carries per-field messages; no network call was made.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, e.Fields[k])
	}
	return strings.Join(parts, "; ")
}

// FlowError is a failed sign-in with the message to show the user.
type FlowError struct {
	Message string
	Err     error
}

func (e *FlowError) Error() string {
	return e.Message
}

func (e *FlowError) Unwrap() error {
	return e.Err
}
