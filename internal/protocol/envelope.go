package protocol

import (
	"fmt"
	"strings"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// CommandEnv is the request envelope sent from the Tool Gateway to the
// Host Bridge. Params may be empty; Name must resolve in the registry.
type CommandEnv struct {
	Name   string         `json:"name"`
	Params map[string]any `json:"params,omitempty"`
}

// Validate enforces required command envelope fields.
func (e CommandEnv) Validate() error {
	if strings.TrimSpace(e.Name) == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidCommand)
	}
	return nil
}

// ErrorInfo carries the kind/message pair of an error response.
type ErrorInfo struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// ResponseEnv is the reply envelope. Exactly one of Result/Error is
// populated, matching Status.
type ResponseEnv struct {
	Status string     `json:"status"`
	Result any        `json:"result,omitempty"`
	Error  *ErrorInfo `json:"error,omitempty"`
}

// Validate enforces the result-xor-error invariant.
func (e ResponseEnv) Validate() error {
	switch e.Status {
	case StatusSuccess:
		if e.Error != nil {
			return fmt.Errorf("%w: success response carries error", ErrInvalidResponse)
		}
	case StatusError:
		if e.Error == nil {
			return fmt.Errorf("%w: error response missing error", ErrInvalidResponse)
		}
		if e.Result != nil {
			return fmt.Errorf("%w: error response carries result", ErrInvalidResponse)
		}
		if !KnownKind(e.Error.Kind) {
			return fmt.Errorf("%w: unknown error kind %q", ErrInvalidResponse, e.Error.Kind)
		}
	default:
		return fmt.Errorf("%w: invalid status %q", ErrInvalidResponse, e.Status)
	}
	return nil
}

// Err returns the response's error info as a BridgeError, or nil on success.
func (e ResponseEnv) Err() error {
	if e.Status != StatusError || e.Error == nil {
		return nil
	}
	return &BridgeError{Kind: e.Error.Kind, Message: e.Error.Message}
}

// SuccessResponse builds a well-formed success envelope.
func SuccessResponse(result any) ResponseEnv {
	return ResponseEnv{Status: StatusSuccess, Result: result}
}

// ErrorResponse builds a well-formed error envelope.
func ErrorResponse(kind, message string) ResponseEnv {
	return ResponseEnv{Status: StatusError, Error: &ErrorInfo{Kind: kind, Message: message}}
}
