package tools

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/stylebot/server/internal/services"
	"github.com/stylebot/server/internal/session"
)

// Tool names referenced by the system prompt and argument sanitizer.
const (
	ToolSearchStudios  = "search_fitness_studios"
	ToolStudioDetails  = "get_studio_details"
	ToolUpdateLocation = "update_user_location"
	ToolUpdateGoals    = "update_fitness_goals"
	ToolUpdateWorkouts = "update_workout_preferences"
)

// Deps carries the clients the query tools close over. Places may be nil
// when no API key is configured; the search tools then answer with their
// degraded-mode message instead of calling out.
type Deps struct {
	Places   *services.PlacesClient
	Sessions *session.Manager
}

// GetQueryTools returns every tool exposed to the stylist model.
func GetQueryTools(deps Deps) []tool.BaseTool {
	return []tool.BaseTool{
		createSearchStudiosTool(deps),
		createStudioDetailsTool(deps),
		createUpdateLocationTool(deps),
		createUpdateGoalsTool(deps),
		createUpdateWorkoutsTool(deps),
	}
}

// GetToolInfos resolves the ToolInfo for each tool so they can be bound to
// the chat model.
func GetToolInfos(ctx context.Context, ts []tool.BaseTool) ([]*schema.ToolInfo, error) {
	infos := make([]*schema.ToolInfo, 0, len(ts))
	for _, t := range ts {
		info, err := t.Info(ctx)
		if err != nil {
			return nil, fmt.Errorf("resolve tool info: %w", err)
		}
		infos = append(infos, info)
	}
	return infos, nil
}
