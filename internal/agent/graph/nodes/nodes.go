package nodes

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"

	"github.com/stylebot/server/internal/agent/graph/conversations"
	"github.com/stylebot/server/internal/agent/graph/prompts"
	"github.com/stylebot/server/internal/agent/model"
	logx "github.com/stylebot/server/pkg/logger"
)

// NewInputConverterPreHandler creates the pre-handler for the InputConverter node
func NewInputConverterPreHandler() func(context.Context, model.TurnInput, *model.AppState) (model.TurnInput, error) {
	return func(ctx context.Context, in model.TurnInput, s *model.AppState) (model.TurnInput, error) {
		s.UserID = in.UserID
		s.TurnID = uuid.NewString()
		// Reset tool call counter and limit flag for each new turn
		s.ToolCallCount = 0
		s.ToolCallLimitReached = false
		s.ToolCallIDSeq = 0
		s.History = nil
		return in, nil
	}
}

// NewInputConverterNode creates the InputConverter node. It records the
// inbound message in the session and assembles the model context.
func NewInputConverterNode(
	mm *conversations.Manager,
	promptCfg model.PromptConfig,
) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, input model.TurnInput) ([]*schema.Message, error) {
		if !mm.RecordUserMessage(ctx, input.UserID, input.Text) {
			logx.Warn().
				Int64("user_id", input.UserID).
				Msg("User message not persisted, continuing without history guarantee")
		}

		// Generate system prompt via Eino prompt component (enables prompt callbacks)
		systemPrompt, err := prompts.RenderStylistSystem(ctx, promptCfg)
		if err != nil {
			return nil, fmt.Errorf("render stylist system prompt: %w", err)
		}

		return mm.BuildTurnContext(ctx, input.UserID, systemPrompt), nil
	})
}

// NewStylistChatModelPreHandler creates the pre-handler for the StylistChatModel node
func NewStylistChatModelPreHandler(maxToolCalls int) func(context.Context, []*schema.Message, *model.AppState) ([]*schema.Message, error) {
	return func(ctx context.Context, in []*schema.Message, state *model.AppState) ([]*schema.Message, error) {
		// Heuristic fix for Gemini: ensure tool results carry tool_call_id
		if len(in) > 0 {
			last := in[len(in)-1]
			if last != nil && last.Role == schema.Tool && strings.TrimSpace(last.ToolCallID) == "" {
				// Try to find the most recent assistant tool call id from history
				for i := len(state.History) - 1; i >= 0; i-- {
					msg := state.History[i]
					if msg == nil || msg.Role != schema.Assistant || len(msg.ToolCalls) == 0 {
						continue
					}
					if id := msg.ToolCalls[0].ID; strings.TrimSpace(id) != "" {
						last.ToolCallID = id
					}
					break
				}
			}
		}

		state.History = append(state.History, in...)

		if checkAndMarkToolLimit(state, maxToolCalls) {
			maxToolCalls = normalizeMaxToolCalls(maxToolCalls)
			wrapUp := &schema.Message{
				Role: schema.System,
				Content: fmt.Sprintf(
					"SYSTEM NOTICE: You have reached the maximum tool call limit (%d). "+
						"Please synthesize a helpful response using the information you've already gathered. "+
						"Acknowledge any limitations in your response if you couldn't complete all necessary tool calls.",
					maxToolCalls,
				),
			}
			state.History = append(state.History, wrapUp)
		}

		logx.Debug().Str("turn_id", state.TurnID).Msg("AI thinking...")

		return state.History, nil
	}
}

// NewStylistChatModelPostHandler creates the post-handler for the StylistChatModel node
func NewStylistChatModelPostHandler(
	mm *conversations.Manager,
	modelName string,
) func(context.Context, *schema.Message, *model.AppState) (*schema.Message, error) {
	return func(ctx context.Context, out *schema.Message, state *model.AppState) (*schema.Message, error) {
		// Normalize tool calls: Gemini may omit tool_call IDs.
		if out != nil && len(out.ToolCalls) > 0 {
			for i := range out.ToolCalls {
				if strings.TrimSpace(out.ToolCalls[i].ID) == "" {
					state.ToolCallIDSeq++
					out.ToolCalls[i].ID = fmt.Sprintf("call_%d", state.ToolCallIDSeq)
				}
			}
		}

		state.History = append(state.History, out)

		if len(out.ToolCalls) > 0 {
			logx.Debug().
				Str("model", modelName).
				Int("tool_count", len(out.ToolCalls)).
				Msg("Calling tools")
		} else {
			logx.Debug().Str("model", modelName).Msg("AI response ready")
		}

		// Persist only a final assistant message (no further tool calls), or a
		// content response produced after hitting the tool-call limit.
		if out.Role == schema.Assistant && (len(out.ToolCalls) == 0 || state.ToolCallLimitReached) && strings.TrimSpace(out.Content) != "" {
			if !mm.SaveResponse(ctx, state.UserID, out.Content) {
				logx.Warn().
					Int64("user_id", state.UserID).
					Str("turn_id", state.TurnID).
					Msg("Assistant response not persisted")
			}
		}

		return out, nil
	}
}

// NewToolExecutorCondition creates the condition function for tool execution routing
func NewToolExecutorCondition() func(context.Context, *schema.Message) (string, error) {
	return func(ctx context.Context, input *schema.Message) (string, error) {
		// Check if tool limit was reached
		var limitReached bool
		compose.ProcessState(ctx, func(_ context.Context, state *model.AppState) error {
			limitReached = state.ToolCallLimitReached
			return nil
		})

		if limitReached {
			logx.Debug().Msg("Tool limit reached previously - routing to end")
			return compose.END, nil
		}

		if len(input.ToolCalls) > 0 {
			logx.Debug().Int("tool_count", len(input.ToolCalls)).Msg("Routing to ToolExecutor")
			return NodeToolExecutor, nil
		}

		logx.Debug().Msg("No tool calls - continuing to end")
		return compose.END, nil
	}
}

// NewToolExecutorPreHandler creates the pre-handler for the ToolExecutor node
func NewToolExecutorPreHandler(maxToolCalls int) func(context.Context, *schema.Message, *model.AppState) (*schema.Message, error) {
	return func(ctx context.Context, in *schema.Message, state *model.AppState) (*schema.Message, error) {
		exceeded := incrementToolCallAndCheck(state, maxToolCalls)

		logx.Debug().
			Int("tool_call_count", state.ToolCallCount).
			Str("turn_id", state.TurnID).
			Msg("Tool execution attempt")

		if exceeded {
			maxToolCalls = normalizeMaxToolCalls(maxToolCalls)
			logx.Warn().
				Int("tool_call_count", state.ToolCallCount).
				Int("max_tool_calls", maxToolCalls).
				Str("turn_id", state.TurnID).
				Msg("Tool call limit exceeded - flagging and continuing")
		}

		return in, nil
	}
}
