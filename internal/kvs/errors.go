package kvs

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// unknownReason is used when a failure carries no status code.
const unknownReason = "An unknown error occurred."

// StatusError is a store failure carrying an HTTP-style status code.
type StatusError struct {
	StatusCode int
	Err        error
}

func (e *StatusError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("status %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("status %d", e.StatusCode)
}

func (e *StatusError) Unwrap() error { return e.Err }

// HTTPStatusCode matches the accessor exposed by AWS SDK response errors.
func (e *StatusError) HTTPStatusCode() int { return e.StatusCode }

// statusCoder is implemented by StatusError and by smithy-go response errors.
type statusCoder interface {
	HTTPStatusCode() int
}

// StatusCode extracts a status code from anywhere in err's chain.
func StatusCode(err error) (int, bool) {
	var sc statusCoder
	if errors.As(err, &sc) {
		if code := sc.HTTPStatusCode(); code != 0 {
			return code, true
		}
	}
	return 0, false
}

// Reason describes a per-operation failure: "Status code: 409 Conflict"
// when a status code is available, a generic phrase otherwise.
func Reason(err error) string {
	code, ok := StatusCode(err)
	if !ok {
		return unknownReason
	}
	parts := []string{fmt.Sprintf("Status code: %d", code)}
	if text := http.StatusText(code); text != "" {
		parts = append(parts, text)
	}
	return strings.Join(parts, " ")
}

// Operation names a kind of store mutation.
type Operation string

const (
	OpAdd    Operation = "add"
	OpDelete Operation = "delete"
)

// FailureMessage formats a failed operation for the run result.
func FailureMessage(op Operation, key string, label Label, err error) string {
	return fmt.Sprintf("%s %s", describe("Failed to "+string(op), key, label), Reason(err))
}

// describe renders "<verb> key '<key>' with label '<label>'."
func describe(verb, key string, label Label) string {
	return fmt.Sprintf("%s key '%s' with label '%s'.", verb, key, label)
}

// SyncError is returned by Outcome.Err when a run was not fully successful.
type SyncError struct {
	Status   Status
	Summary  string
	Messages []string
}

func (e *SyncError) Error() string {
	return e.Summary
}
