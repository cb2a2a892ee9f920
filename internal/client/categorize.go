package client

import (
	"context"
	"errors"
	"strings"

	"github.com/kjstillabower/station-watch/internal/circuitbreaker"
)

// ErrorCategory is a stable label for error classification in metrics and logs.
type ErrorCategory string

const (
	ErrorCategoryTimeout         ErrorCategory = "timeout"
	ErrorCategoryNetwork         ErrorCategory = "network"
	ErrorCategoryStationNotFound ErrorCategory = "station_not_found"
	ErrorCategoryRateLimited     ErrorCategory = "rate_limited"
	ErrorCategoryUpstream5xx     ErrorCategory = "upstream_5xx"
	ErrorCategoryCircuitOpen     ErrorCategory = "circuit_open"
	ErrorCategoryParsing         ErrorCategory = "parsing"
	ErrorCategoryPanic           ErrorCategory = "panic"
	ErrorCategoryUnknown         ErrorCategory = "unknown"
)

// ErrPanic marks a fetch that panicked and was recovered by the caller.
var ErrPanic = errors.New("fetch panicked")

// CategorizeError maps a fetch error to a stable ErrorCategory.
func CategorizeError(err error) ErrorCategory {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrPanic):
		return ErrorCategoryPanic
	case errors.Is(err, circuitbreaker.ErrOpen):
		return ErrorCategoryCircuitOpen
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return ErrorCategoryTimeout
	case errors.Is(err, ErrStationNotFound):
		return ErrorCategoryStationNotFound
	case errors.Is(err, ErrRateLimited):
		return ErrorCategoryRateLimited
	case errors.Is(err, ErrUpstreamFailure):
		return ErrorCategoryUpstream5xx
	case errors.Is(err, ErrParse):
		return ErrorCategoryParsing
	}

	errStr := err.Error()
	if strings.Contains(errStr, "timeout") {
		return ErrorCategoryTimeout
	}
	if strings.Contains(errStr, "connection") || strings.Contains(errStr, "network") ||
		strings.Contains(errStr, "no such host") || strings.Contains(errStr, "http request failed") {
		return ErrorCategoryNetwork
	}
	return ErrorCategoryUnknown
}
