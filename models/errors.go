package models

import (
	"errors"
	"fmt"
)

var (
	ErrAuth        = errors.New("authentication failed")
	ErrNotFound    = errors.New("no matching album")
	ErrUpstream    = errors.New("catalog request failed")
	ErrAggregation = errors.New("audio feature aggregation failed")
	ErrFormat      = errors.New("malformed catalog data")
)

// AuthError reports a failed client-credentials exchange.
type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("auth: %s: %v", e.Reason, e.Err)
	}
	return "auth: " + e.Reason
}

func (e *AuthError) Unwrap() error        { return e.Err }
func (e *AuthError) Is(target error) bool { return target == ErrAuth }

// NotFoundError is the "no results" outcome of a search. It is not a failure.
type NotFoundError struct {
	Query string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no album found for %q", e.Query)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// UpstreamError reports a non-success status or an undecodable body from a catalog call.
type UpstreamError struct {
	Op     string
	Status int
	Err    error
}

func (e *UpstreamError) Error() string {
	switch {
	case e.Status != 0 && e.Err != nil:
		return fmt.Sprintf("upstream %s: status %d: %v", e.Op, e.Status, e.Err)
	case e.Status != 0:
		return fmt.Sprintf("upstream %s: status %d", e.Op, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("upstream %s: %v", e.Op, e.Err)
	}
	return "upstream " + e.Op + ": failed"
}

func (e *UpstreamError) Unwrap() error        { return e.Err }
func (e *UpstreamError) Is(target error) bool { return target == ErrUpstream }

type AggregationError struct {
	Feature Feature
	Reason  string
}

func (e *AggregationError) Error() string {
	return fmt.Sprintf("aggregate %s: %s", e.Feature, e.Reason)
}

func (e *AggregationError) Is(target error) bool { return target == ErrAggregation }

// FormatError reports catalog data that cannot be turned into display values.
type FormatError struct {
	Field  string
	Value  string
	Reason string
}

func (e *FormatError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("format %s %q: %s", e.Field, e.Value, e.Reason)
	}
	return fmt.Sprintf("format %s: %s", e.Field, e.Reason)
}

func (e *FormatError) Is(target error) bool { return target == ErrFormat }
