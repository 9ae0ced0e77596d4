// Package fallback maps every failure mode to a user-presentable message.
//
// Technical detail stays in the logs; users only ever see one of the fixed
// catalog strings, which avoid status codes, protocol names, and exception
// vocabulary, and suggest a next action where retrying can help.
package fallback

import (
	"context"
	"strings"

	"github.com/stylebot/server/internal/telemetry"
	logx "github.com/stylebot/server/pkg/logger"
)

// Kind tags a failure mode. The set is closed; every value has exactly one
// catalog entry.
type Kind int

const (
	// Vision / photo analysis.
	VisionUnavailable Kind = iota
	VisionRateLimited
	PhotoDownloadFailed
	PhotoTooLarge
	PhotoInvalidFormat

	// Places / fitness discovery.
	PlacesUnavailable
	PlacesRateLimited
	PlacesNoResults
	LocationRequired

	// Travel services.
	FlightsUnavailable
	HotelsUnavailable
	TravelNotConfigured

	// Session / cache.
	SessionUnavailable
	CacheUnavailable

	// Configuration.
	FeatureDisabled
	APIKeyMissing
	APIKeyInvalid

	// General.
	UnknownError
	Timeout
	RateLimited
	ServiceOverloaded

	// Tool-specific.
	ToolExecutionFailed
	ToolNotFound

	kindCount // sentinel, keep last
)

var kindNames = map[Kind]string{
	VisionUnavailable:   "vision_unavailable",
	VisionRateLimited:   "vision_rate_limited",
	PhotoDownloadFailed: "photo_download_failed",
	PhotoTooLarge:       "photo_too_large",
	PhotoInvalidFormat:  "photo_invalid_format",
	PlacesUnavailable:   "places_unavailable",
	PlacesRateLimited:   "places_rate_limited",
	PlacesNoResults:     "places_no_results",
	LocationRequired:    "location_required",
	FlightsUnavailable:  "flights_unavailable",
	HotelsUnavailable:   "hotels_unavailable",
	TravelNotConfigured: "travel_not_configured",
	SessionUnavailable:  "session_unavailable",
	CacheUnavailable:    "cache_unavailable",
	FeatureDisabled:     "feature_disabled",
	APIKeyMissing:       "api_key_missing",
	APIKeyInvalid:       "api_key_invalid",
	UnknownError:        "unknown_error",
	Timeout:             "timeout",
	RateLimited:         "rate_limited",
	ServiceOverloaded:   "service_overloaded",
	ToolExecutionFailed: "tool_execution_failed",
	ToolNotFound:        "tool_not_found",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown_error"
}

// AllKinds lists every catalog tag, for completeness checks and the health
// surface.
func AllKinds() []Kind {
	kinds := make([]Kind, 0, int(kindCount))
	for k := Kind(0); k < kindCount; k++ {
		kinds = append(kinds, k)
	}
	return kinds
}

// Category is the coarse user-facing error class.
type Category string

const (
	// CategoryTransient failures may clear up on their own.
	CategoryTransient Category = "transient"
	// CategoryPermanent failures will not succeed without a change.
	CategoryPermanent Category = "permanent"
	// CategoryResource failures are quota or rate related.
	CategoryResource Category = "resource"
)

// Response is one catalog entry: the user-facing message plus metadata for
// callers that want to act on it.
type Response struct {
	Message           string   `json:"message"`
	Category          Category `json:"category"`
	SuggestRetry      bool     `json:"suggest_retry"`
	AlternativeAction string   `json:"alternative_action,omitempty"`
	RetryAfterSeconds int      `json:"retry_after_seconds,omitempty"`
}

var catalog = map[Kind]Response{
	VisionUnavailable: {
		Message: "I can't analyze photos right now. Try describing your outfit in text " +
			"and I'll help with style advice!",
		Category:          CategoryTransient,
		SuggestRetry:      true,
		AlternativeAction: "Describe your outfit: colors, items, occasion",
	},
	VisionRateLimited: {
		Message: "I've been looking at a lot of photos! Give me a minute to rest my eyes, " +
			"then send your photo again.",
		Category:          CategoryResource,
		SuggestRetry:      true,
		RetryAfterSeconds: 60,
	},
	PhotoDownloadFailed: {
		Message: "I had trouble downloading your photo. Could you try sending it again? " +
			"Make sure it's not too large (under 10MB works best).",
		Category:     CategoryTransient,
		SuggestRetry: true,
	},
	PhotoTooLarge: {
		Message: "That photo is a bit too large for me to process. Could you resize it " +
			"or send a smaller version? Under 10MB works best.",
		Category:          CategoryPermanent,
		AlternativeAction: "Resize the image or use a lower quality setting",
	},
	PhotoInvalidFormat: {
		Message: "I couldn't read that image format. Could you try sending it as a " +
			"JPEG or PNG?",
		Category:          CategoryPermanent,
		AlternativeAction: "Convert to JPEG or PNG format",
	},
	PlacesUnavailable: {
		Message: "I'm having trouble searching for places right now. In the meantime, " +
			"try searching on Google Maps - it has great fitness studio listings!",
		Category:          CategoryTransient,
		SuggestRetry:      true,
		AlternativeAction: "Search on Google Maps",
	},
	PlacesRateLimited: {
		Message: "I've done a lot of searching recently. Give me a moment, then I'll " +
			"be ready to find studios for you again.",
		Category:          CategoryResource,
		SuggestRetry:      true,
		RetryAfterSeconds: 30,
	},
	PlacesNoResults: {
		Message: "I couldn't find any fitness studios matching that search. Try being " +
			"more specific about the type (yoga, pilates, gym) or location.",
		Category:          CategoryPermanent,
		AlternativeAction: "Try a different search term or expand the area",
	},
	LocationRequired: {
		Message: "To find fitness studios near you, I need to know your location. " +
			"You can tell me your city or area, like 'yoga studios in Brooklyn'.",
		Category:          CategoryPermanent,
		AlternativeAction: "Share your location or specify a city",
	},
	FlightsUnavailable: {
		Message: "I can't search flights right now. Try checking Skyscanner or " +
			"Google Flights - they often have the same deals I'd find!",
		Category:          CategoryTransient,
		SuggestRetry:      true,
		AlternativeAction: "Visit skyscanner.com or flights.google.com",
	},
	HotelsUnavailable: {
		Message: "I'm having trouble searching hotels. Booking.com or Hotels.com " +
			"are great alternatives to check in the meantime!",
		Category:          CategoryTransient,
		SuggestRetry:      true,
		AlternativeAction: "Visit booking.com or hotels.com",
	},
	TravelNotConfigured: {
		Message: "Travel planning isn't set up on this bot yet. I can still help " +
			"with style, fitness, and wellness advice though!",
		Category:          CategoryPermanent,
		AlternativeAction: "Ask about style advice or fitness instead",
	},
	SessionUnavailable: {
		Message: "Note: I might forget our conversation if I restart. But I'm still " +
			"here to help! What would you like to know?",
		Category: CategoryTransient,
	},
	// Silent: internal-only signal, never shown to the user.
	CacheUnavailable: {
		Message:  "",
		Category: CategoryTransient,
	},
	FeatureDisabled: {
		Message: "That feature isn't available on this bot. But I can still help " +
			"with style advice, outfit analysis, and color season discovery!",
		Category:          CategoryPermanent,
		AlternativeAction: "Try asking about style or outfit advice",
	},
	APIKeyMissing: {
		Message: "I'm not fully set up to do that yet. In the meantime, " +
			"let me know what else I can help with!",
		Category: CategoryPermanent,
	},
	APIKeyInvalid: {
		Message: "I'm having some technical difficulties. The bot administrator " +
			"has been notified. Is there something else I can help with?",
		Category: CategoryPermanent,
	},
	UnknownError: {
		Message: "Something unexpected happened. Let's try a different approach - " +
			"what are you trying to do? I'll find another way to help.",
		Category:          CategoryTransient,
		SuggestRetry:      true,
		AlternativeAction: "Describe what you'd like to accomplish",
	},
	Timeout: {
		Message: "That took longer than expected. Could you try again? If it " +
			"keeps happening, try a simpler request.",
		Category:     CategoryTransient,
		SuggestRetry: true,
	},
	RateLimited: {
		Message: "I'm getting a lot of requests right now! Give me a minute and " +
			"then try again.",
		Category:          CategoryResource,
		SuggestRetry:      true,
		RetryAfterSeconds: 60,
	},
	ServiceOverloaded: {
		Message: "I'm a bit overwhelmed right now. Try again in a few minutes - " +
			"I'll be ready to help!",
		Category:          CategoryTransient,
		SuggestRetry:      true,
		RetryAfterSeconds: 120,
	},
	ToolExecutionFailed: {
		Message: "I ran into a problem trying to do that. Let me try a different " +
			"approach - could you tell me more about what you need?",
		Category:     CategoryTransient,
		SuggestRetry: true,
	},
	ToolNotFound: {
		Message: "I'm not sure how to do that specific thing, but I might be able " +
			"to help another way. What are you trying to accomplish?",
		Category: CategoryPermanent,
	},
}

func logTriggered(kind Kind, resp Response, logCtx map[string]any, err error) {
	event := logx.Warn()
	if err != nil {
		event = logx.Error().Err(err).Str("error_type", errorTypeName(err))
	}
	event.
		Str("fallback_kind", kind.String()).
		Str("category", string(resp.Category)).
		Interface("context", logCtx).
		Msg("fallback triggered")
	telemetry.RecordFallback(kind.String())
}

// Lookup returns the full catalog entry for a kind; an unlisted kind maps
// to the UnknownError entry.
func Lookup(kind Kind, logCtx map[string]any, err error) Response {
	resp, ok := catalog[kind]
	if !ok {
		resp = catalog[UnknownError]
	}
	logTriggered(kind, resp, logCtx, err)
	return resp
}

// Message returns only the user-facing string, logging the technical detail.
func Message(kind Kind, logCtx map[string]any, err error) string {
	return Lookup(kind, logCtx, err).Message
}

// FormatWithAlternative appends the alternative-action suggestion when one
// exists.
func FormatWithAlternative(message, alternative string) string {
	if alternative == "" {
		return message
	}
	return message + "\n\nAlternatively: " + alternative
}

func errorTypeName(err error) string {
	if err == nil {
		return ""
	}
	return strings.TrimPrefix(typeName(err), "*")
}

// WithFallback runs op and converts any error into a catalog message: the
// top-level catch-all used at tool and turn boundaries. The error is
// re-classified; the caller's default kind is kept only when classification
// yields nothing more specific.
func WithFallback(ctx context.Context, op func(ctx context.Context) (string, error), defaultKind Kind, logCtx map[string]any) string {
	out, err := op(ctx)
	if err == nil {
		return out
	}

	kind := defaultKind
	if classified := Classify(err); classified != UnknownError {
		kind = classified
	}
	return Message(kind, logCtx, err)
}
