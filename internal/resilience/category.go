package resilience

import (
	"fmt"
	"strings"
)

// Category classifies a failure for retry and reporting decisions.
type Category string

const (
	CategoryTransient     Category = "transient"
	CategoryRateLimited   Category = "rate_limited"
	CategoryClientError   Category = "client_error"
	CategoryServerError   Category = "server_error"
	CategoryConfiguration Category = "configuration"
	CategoryUnknown       Category = "unknown"
)

// Categorize maps an error to a Category by lower-cased substring matching on
// its message and its Go type name.
//
// Checks run in a fixed order and the first match wins: rate-limit, client
// error, configuration, server error, transient, unknown. The order breaks
// ties for ambiguous messages ("401 timeout" is a client error, not a
// transient one) and determines retry eligibility, so it must not be
// rearranged.
func Categorize(err error) Category {
	if err == nil {
		return CategoryUnknown
	}

	msg := strings.ToLower(err.Error())
	typeName := strings.ToLower(fmt.Sprintf("%T", err))

	if containsAny(msg, "429", "rate limit", "too many") {
		return CategoryRateLimited
	}

	if containsAny(msg, "400", "401", "403", "404") {
		return CategoryClientError
	}

	if containsAny(msg, "api key", "api_key", "authentication", "invalid key") {
		return CategoryConfiguration
	}

	if containsAny(msg, "500", "502", "503", "504") {
		return CategoryServerError
	}

	if containsAny(msg, "timeout", "connection", "network", "reset", "refused") {
		return CategoryTransient
	}
	if containsAny(typeName, "timeout", "connection", "network", "http") {
		return CategoryTransient
	}

	return CategoryUnknown
}

// ShouldRetry reports whether the error category warrants another attempt.
func ShouldRetry(err error) bool {
	switch Categorize(err) {
	case CategoryTransient, CategoryRateLimited, CategoryServerError:
		return true
	default:
		return false
	}
}

func containsAny(s string, markers ...string) bool {
	for _, marker := range markers {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}
