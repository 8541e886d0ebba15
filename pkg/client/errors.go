package client

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Common errors returned by the client.
var (
	// ErrRateLimited matches every RateLimitedError.
	ErrRateLimited = errors.New("rate limited")

	// ErrRetryExhausted is returned when a configured attempt cap is reached.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context ends during a backoff wait.
	ErrContextCancelled = errors.New("context cancelled")
)

// ErrorClass represents a classification of request failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors other than 429.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents HTTP 429.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents transport failures.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassMalformed represents bodies that do not decode.
	ErrorClassMalformed ErrorClass = "malformed"
)

// classifyStatus maps an HTTP status to an error class.
func classifyStatus(status int) ErrorClass {
	switch {
	case status == 429:
		return ErrorClassRateLimit
	case status >= 400 && status < 500:
		return ErrorClassClient
	case status >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}

// UpstreamError is a non-2xx Graph response other than 429. It is never retried.
type UpstreamError struct {
	StatusCode int
	URL        string
	Class      ErrorClass

	// Code and Message come from the Graph error body when present.
	Code    string
	Message string
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	msg := fmt.Sprintf("upstream %s error (status %d) for %s", e.Class, e.StatusCode, e.URL)
	if e.Code != "" {
		msg += ": " + e.Code
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

// RateLimitedError is an HTTP 429 response. The backoff policy consumes it.
type RateLimitedError struct {
	URL string
}

// Error implements the error interface.
func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited (status 429) for %s", e.URL)
}

// Is makes errors.Is(err, ErrRateLimited) hold.
func (e *RateLimitedError) Is(target error) bool {
	return target == ErrRateLimited
}

// MalformedResponseError is a response whose body does not have the expected shape.
type MalformedResponseError struct {
	URL string
	Err error
}

// Error implements the error interface.
func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed response from %s: %v", e.URL, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}

// graphErrorBody is the error envelope Graph returns with 4xx/5xx responses.
type graphErrorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// newUpstreamError builds an UpstreamError, reading code and message from
// body when it is a Graph error envelope.
func newUpstreamError(status int, url string, body []byte) *UpstreamError {
	e := &UpstreamError{
		StatusCode: status,
		URL:        url,
		Class:      classifyStatus(status),
	}

	var envelope graphErrorBody
	if json.Unmarshal(body, &envelope) == nil && envelope.Error.Code != "" {
		e.Code = envelope.Error.Code
		e.Message = envelope.Error.Message
	}
	return e
}
