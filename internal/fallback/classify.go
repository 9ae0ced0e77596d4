package fallback

import (
	"fmt"
	"strings"
)

// Classify maps a raw error to the most specific catalog kind, using the
// same lower-cased substring matching as the resilience classifier. Checks
// are ordered most-specific first; anything unrecognised is UnknownError.
func Classify(err error) Kind {
	if err == nil {
		return UnknownError
	}

	msg := strings.ToLower(err.Error())
	tname := strings.ToLower(typeName(err))

	if strings.Contains(msg, "timeout") || strings.Contains(tname, "timeout") {
		return Timeout
	}

	if strings.Contains(msg, "429") || strings.Contains(msg, "rate limit") || strings.Contains(msg, "too many") {
		return RateLimited
	}

	if strings.Contains(msg, "401") || strings.Contains(msg, "403") || strings.Contains(msg, "unauthorized") {
		return APIKeyInvalid
	}
	if strings.Contains(msg, "api key") || strings.Contains(msg, "api_key") {
		return APIKeyMissing
	}

	if strings.Contains(msg, "503") || strings.Contains(msg, "502") || strings.Contains(msg, "service unavailable") {
		return ServiceOverloaded
	}

	return UnknownError
}

func typeName(err error) string {
	return fmt.Sprintf("%T", err)
}

// Convenience helpers for the common failure sites.

// VisionMessage is the catalog message for vision service failures.
func VisionMessage(err error) string {
	return Message(VisionUnavailable, nil, err)
}

// PlacesMessage is the catalog message for place search failures, with the
// failed query woven into the suggested alternative when provided.
func PlacesMessage(query string, err error) string {
	msg := Message(PlacesUnavailable, map[string]any{"query": query}, err)
	if query != "" {
		msg = strings.Replace(msg, "searching on Google Maps", fmt.Sprintf("searching for '%s' on Google Maps", query), 1)
	}
	return msg
}

// ToolMessage is the catalog message for a failed tool invocation.
func ToolMessage(toolName string, err error) string {
	return Message(ToolExecutionFailed, map[string]any{"tool": toolName}, err)
}

// UnknownMessage is the catalog message for unexpected failures.
func UnknownMessage(err error) string {
	return Message(UnknownError, nil, err)
}
