package prompts

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/stylebot/server/internal/agent/graph/tools"
	"github.com/stylebot/server/internal/agent/model"
)

//go:embed template/stylist_prompt.txt
var stylistSystemPrompt string

// RenderStylistSystem renders the stylist system prompt and triggers prompt callbacks.
func RenderStylistSystem(ctx context.Context, config model.PromptConfig) (string, error) {
	// Render via Eino prompt component (Go template) to both format and emit callbacks
	tpl := prompt.FromMessages(
		schema.GoTemplate,
		schema.SystemMessage(stylistSystemPrompt),
	)
	vars := map[string]any{
		"BotName":            config.BotName,
		"Persona":            config.Persona,
		"SearchTool":         tools.ToolSearchStudios,
		"DetailsTool":        tools.ToolStudioDetails,
		"UpdateLocationTool": tools.ToolUpdateLocation,
		"UpdateGoalsTool":    tools.ToolUpdateGoals,
		"UpdateWorkoutsTool": tools.ToolUpdateWorkouts,
	}
	msgs, err := tpl.Format(ctx, vars)
	if err != nil {
		return "", fmt.Errorf("stylist prompt render: %w", err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("stylist prompt render: empty result")
	}
	return msgs[0].Content, nil
}
