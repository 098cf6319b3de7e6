package acs

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrInvalidResumeToken is returned when a resume token is malformed,
	// tampered with, expired, or was issued for another resource.
	ErrInvalidResumeToken = errors.New("acs: invalid resume token")

	// ErrOperationNotFound is returned when ACS no longer knows the operation,
	// usually because its retention window has passed.
	ErrOperationNotFound = errors.New("acs: operation not found")
)

// ResponseError wraps an ACS API error with classification metadata.
type ResponseError struct {
	// StatusCode is the HTTP status code from the ACS API.
	StatusCode int
	// Code is the ACS error code, e.g. "InvalidRecipient" or "Unauthorized".
	Code string
	// Message is the error description from the ACS API.
	Message string
	// Permanent indicates the error will not succeed on retry.
	Permanent bool
}

func (e *ResponseError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("acs: %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("acs: %d: %s", e.StatusCode, e.Message)
}

// IsPermanent returns true if err is a ResponseError that will not succeed on retry.
func IsPermanent(err error) bool {
	var re *ResponseError
	if errors.As(err, &re) {
		return re.Permanent
	}
	return false
}

// errorEnvelope is the {"error": {...}} wrapper ACS uses on non-2xx responses.
type errorEnvelope struct {
	Error ErrorDetail `json:"error"`
}

// classifyResponse builds a ResponseError from a non-2xx ACS response.
// It returns nil for 2xx status codes.
func classifyResponse(statusCode int, body []byte) *ResponseError {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	re := &ResponseError{StatusCode: statusCode}

	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err == nil && (env.Error.Code != "" || env.Error.Message != "") {
		re.Code = env.Error.Code
		re.Message = env.Error.Message
	} else {
		re.Message = strings.TrimSpace(string(body))
	}
	if re.Message == "" {
		re.Message = http.StatusText(statusCode)
	}

	switch {
	case statusCode == http.StatusTooManyRequests:
		re.Permanent = false
	case statusCode == http.StatusRequestTimeout:
		re.Permanent = false
	case statusCode >= 400 && statusCode < 500:
		re.Permanent = true
	case statusCode >= 500:
		re.Permanent = containsPermanentServerIndicator(re.Code + " " + re.Message)
	}

	return re
}

// containsPermanentServerIndicator checks if a 5xx response indicates
// a failure caused by the resource configuration rather than an outage.
func containsPermanentServerIndicator(body string) bool {
	lower := strings.ToLower(body)
	for _, pattern := range []string{
		"denied",
		"domainnotlinked",
		"unauthorized",
		"account disabled",
	} {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}
