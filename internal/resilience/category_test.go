package resilience

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeTimeoutError struct{}

func (fakeTimeoutError) Error() string { return "operation gave up" }

func TestCategorize(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Category
	}{
		{"nil error", nil, CategoryUnknown},
		{"http 429", errors.New("HTTP 429 Too Many Requests"), CategoryRateLimited},
		{"rate limit phrase", errors.New("rate limit exceeded for model"), CategoryRateLimited},
		{"http 400", errors.New("400 bad request"), CategoryClientError},
		{"http 401", errors.New("401 unauthorized"), CategoryClientError},
		{"http 404", errors.New("resource 404"), CategoryClientError},
		{"api key", errors.New("invalid API key provided"), CategoryConfiguration},
		{"authentication", errors.New("authentication failed"), CategoryConfiguration},
		{"http 500", errors.New("500 internal server error"), CategoryServerError},
		{"http 503", errors.New("503 service unavailable"), CategoryServerError},
		{"timeout message", errors.New("dial timeout"), CategoryTransient},
		{"connection reset", errors.New("connection reset by peer"), CategoryTransient},
		{"refused", errors.New("connect: connection refused"), CategoryTransient},
		{"timeout type name", fakeTimeoutError{}, CategoryTransient},
		{"unclassified", errors.New("something odd happened"), CategoryUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Categorize(tt.err))
		})
	}
}

// Ambiguous messages resolve by check order, not by whichever marker appears
// first in the text.
func TestCategorizeOrdering(t *testing.T) {
	assert.Equal(t, CategoryRateLimited, Categorize(errors.New("timeout waiting, got 429")))
	assert.Equal(t, CategoryClientError, Categorize(errors.New("401 handshake timeout")))
	assert.Equal(t, CategoryClientError, Categorize(errors.New("api key rejected with 403")))
	assert.Equal(t, CategoryServerError, Categorize(errors.New("502 upstream connection closed")))
}

func TestShouldRetry(t *testing.T) {
	assert.True(t, ShouldRetry(errors.New("connection refused")))
	assert.True(t, ShouldRetry(errors.New("429 slow down")))
	assert.True(t, ShouldRetry(errors.New("503 try later")))

	assert.False(t, ShouldRetry(errors.New("404 not found")))
	assert.False(t, ShouldRetry(errors.New("api key missing")))
	assert.False(t, ShouldRetry(errors.New("some novel failure")))
	assert.False(t, ShouldRetry(nil))
	assert.False(t, ShouldRetry(fmt.Errorf("wrapped: %w", errors.New("400 bad input"))))
}
