package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"

	"github.com/stylebot/server/internal/fallback"
	"github.com/stylebot/server/internal/services"
	logx "github.com/stylebot/server/pkg/logger"
)

// ===================================
// Search Fitness Studios Tool
// ===================================

type SearchStudiosInput struct {
	Query      string `json:"query"`
	Location   string `json:"location,omitempty"`
	Activity   string `json:"activity,omitempty"`
	MaxResults int    `json:"max_results,omitempty"`
	UserID     int64  `json:"user_id"`
}

func createSearchStudiosTool(deps Deps) tool.BaseTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name: ToolSearchStudios,
			Desc: "Search for fitness studios, gyms, yoga studios, and wellness centers near a location. Use this tool whenever the user asks to find a place to work out. If no location is given, the user's saved location is used automatically.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"query": {
					Type:     "string",
					Desc:     "What the user is looking for. Examples: 'yoga studios', 'gyms near me', 'pilates classes', 'spin studio'.",
					Required: true,
				},
				"location": {
					Type: "string",
					Desc: "City or area to search in. Examples: 'San Francisco', 'Brooklyn, NY', 'downtown Chicago'. Omit to use the user's saved location.",
				},
				"activity": {
					Type: "string",
					Desc: "Specific activity to filter by. Examples: yoga, pilates, gym, spin, crossfit, boxing, swimming, barre.",
				},
				"max_results": {
					Type: "number",
					Desc: "Maximum number of studios to return (default: 5, max: 20)",
				},
				"user_id": {
					Type:     "number",
					Desc:     "The current user's ID from the user context.",
					Required: true,
				},
			}),
		},
		func(ctx context.Context, in *SearchStudiosInput) (string, error) {
			logx.Info().
				Str("query", in.Query).
				Str("location", in.Location).
				Int64("user_id", in.UserID).
				Msg("search_fitness_studios called")

			if deps.Places == nil || !deps.Places.Enabled() {
				return fallback.Message(fallback.FeatureDisabled, map[string]any{"feature": "fitness"}, nil), nil
			}

			location := strings.TrimSpace(in.Location)
			if location == "" && deps.Sessions != nil {
				location = deps.Sessions.GetSession(ctx, in.UserID).Location
			}
			if location == "" {
				return fallback.Message(fallback.LocationRequired, map[string]any{"user_id": in.UserID}, nil), nil
			}

			activity := in.Activity
			if activity == "" {
				activity = in.Query
			}

			places, err := deps.Places.SearchStudios(ctx, activity, location, in.MaxResults)
			if err != nil {
				return fallback.PlacesMessage(in.Query, err), nil
			}

			return formatStudioResults(places), nil
		},
	)
}

// ===================================
// Studio Details Tool
// ===================================

type StudioDetailsInput struct {
	PlaceID string `json:"place_id"`
}

func createStudioDetailsTool(deps Deps) tool.BaseTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name: ToolStudioDetails,
			Desc: "Get detailed information (phone, website, opening status) about one studio from an earlier search. Use when the user asks a follow-up about a specific result.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"place_id": {
					Type:     "string",
					Desc:     "The place ID shown in the search results, e.g. 'places/ChIJ...'.",
					Required: true,
				},
			}),
		},
		func(ctx context.Context, in *StudioDetailsInput) (string, error) {
			logx.Info().Str("place_id", in.PlaceID).Msg("get_studio_details called")

			if deps.Places == nil || !deps.Places.Enabled() {
				return fallback.Message(fallback.FeatureDisabled, map[string]any{"feature": "fitness"}, nil), nil
			}
			if strings.TrimSpace(in.PlaceID) == "" {
				return "Could not find details for this studio. The place may no longer exist.", nil
			}

			place, err := deps.Places.StudioDetails(ctx, in.PlaceID)
			if err != nil {
				return fallback.PlacesMessage("", err), nil
			}
			if place == nil {
				return "Could not find details for this studio. The place may no longer exist.", nil
			}

			return place.FormatForDisplay(), nil
		},
	)
}

// formatStudioResults renders search results into a block the model can
// present directly.
func formatStudioResults(places []services.Place) string {
	if len(places) == 0 {
		return "No fitness studios found matching your criteria. Try a different location or search term."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d fitness studios:\n", len(places))
	for i, p := range places {
		fmt.Fprintf(&b, "\n%d. %s\n", i+1, p.FormatForDisplay())
		fmt.Fprintf(&b, "   [ID: %s]\n", p.PlaceID)
	}
	return b.String()
}
