package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"

	logx "github.com/stylebot/server/pkg/logger"
)

// ===================================
// Preference Tools
// ===================================
// All three tools follow the same shape: load the session, merge the new
// value, save, and answer with a short confirmation the model can relay.
// A failed save degrades to an acknowledgement without persistence.

type UpdateLocationInput struct {
	Location string `json:"location"`
	UserID   int64  `json:"user_id"`
}

func createUpdateLocationTool(deps Deps) tool.BaseTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name: ToolUpdateLocation,
			Desc: "Update the user's location for future searches. Call this whenever the user mentions where they are, where they live, or where they want to find fitness studios.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"location": {
					Type:     "string",
					Desc:     "The user's location (city, neighborhood, or address). Examples: 'San Francisco', 'Brooklyn, NY', 'downtown Seattle'.",
					Required: true,
				},
				"user_id": {
					Type:     "number",
					Desc:     "The current user's ID from the user context.",
					Required: true,
				},
			}),
		},
		func(ctx context.Context, in *UpdateLocationInput) (string, error) {
			location := strings.TrimSpace(in.Location)
			if location == "" {
				return "I need a location to remember. Where are you?", nil
			}

			s := deps.Sessions.GetSession(ctx, in.UserID)
			oldLocation := s.Location
			s.Location = location
			if !deps.Sessions.SaveSession(ctx, s) {
				return "I noted your location but couldn't save it permanently.", nil
			}

			logx.Info().
				Int64("user_id", in.UserID).
				Str("old_location", oldLocation).
				Str("location", location).
				Msg("User location updated")

			if oldLocation != "" {
				return fmt.Sprintf("Updated your location from %s to %s.", oldLocation, location), nil
			}
			return fmt.Sprintf("Got it! I'll remember you're in %s for future searches.", location), nil
		},
	)
}

type UpdateGoalsInput struct {
	Goals  []string `json:"goals"`
	UserID int64    `json:"user_id"`
}

func createUpdateGoalsTool(deps Deps) tool.BaseTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name: ToolUpdateGoals,
			Desc: "Save the user's fitness goals for personalized recommendations. Call this when users mention objectives like losing weight, building muscle, improving flexibility, or reducing stress.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"goals": {
					Type:     "array",
					Desc:     "Fitness goals extracted from conversation. Examples: 'lose weight', 'build muscle', 'improve flexibility', 'reduce stress'.",
					ElemInfo: &schema.ParameterInfo{Type: "string"},
					Required: true,
				},
				"user_id": {
					Type:     "number",
					Desc:     "The current user's ID from the user context.",
					Required: true,
				},
			}),
		},
		func(ctx context.Context, in *UpdateGoalsInput) (string, error) {
			s := deps.Sessions.GetSession(ctx, in.UserID)
			added := mergeDistinct(&s.FitnessGoals, in.Goals)
			if len(added) == 0 {
				return "I already have those goals noted for you!", nil
			}
			if !deps.Sessions.SaveSession(ctx, s) {
				return "I noted your goals but couldn't save them permanently.", nil
			}

			logx.Info().
				Int64("user_id", in.UserID).
				Strs("new_goals", added).
				Msg("Fitness goals updated")

			return fmt.Sprintf("Added to your fitness goals: %s. I'll keep these in mind for recommendations!", strings.Join(added, ", ")), nil
		},
	)
}

type UpdateWorkoutsInput struct {
	WorkoutTypes []string `json:"workout_types"`
	UserID       int64    `json:"user_id"`
}

func createUpdateWorkoutsTool(deps Deps) tool.BaseTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name: ToolUpdateWorkouts,
			Desc: "Save the user's preferred workout types. Call this when users express that they enjoy or prefer activities like yoga, pilates, spinning, swimming, crossfit, or boxing.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"workout_types": {
					Type:     "array",
					Desc:     "Preferred workout types. Examples: 'yoga', 'pilates', 'spinning', 'crossfit', 'swimming', 'boxing'.",
					ElemInfo: &schema.ParameterInfo{Type: "string"},
					Required: true,
				},
				"user_id": {
					Type:     "number",
					Desc:     "The current user's ID from the user context.",
					Required: true,
				},
			}),
		},
		func(ctx context.Context, in *UpdateWorkoutsInput) (string, error) {
			s := deps.Sessions.GetSession(ctx, in.UserID)
			added := mergeDistinct(&s.PreferredWorkoutTypes, in.WorkoutTypes)
			if len(added) == 0 {
				return "I already know you like those activities!", nil
			}
			if !deps.Sessions.SaveSession(ctx, s) {
				return "I noted your preferences but couldn't save them permanently.", nil
			}

			logx.Info().
				Int64("user_id", in.UserID).
				Strs("new_types", added).
				Msg("Workout preferences updated")

			return fmt.Sprintf("Noted! You enjoy: %s. I'll prioritize these in searches!", strings.Join(added, ", ")), nil
		},
	)
}

// mergeDistinct appends values not already present (case-insensitive) and
// returns the ones actually added.
func mergeDistinct(existing *[]string, incoming []string) []string {
	seen := make(map[string]struct{}, len(*existing))
	for _, v := range *existing {
		seen[strings.ToLower(v)] = struct{}{}
	}

	var added []string
	for _, v := range incoming {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		key := strings.ToLower(v)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		*existing = append(*existing, v)
		added = append(added, v)
	}
	return added
}
