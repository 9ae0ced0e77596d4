package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/stylebot/server/internal/agent/graph/conversations"
	"github.com/stylebot/server/internal/agent/graph/nodes"
	"github.com/stylebot/server/internal/agent/graph/observers"
	"github.com/stylebot/server/internal/agent/graph/tools"
	"github.com/stylebot/server/internal/agent/model"
	"github.com/stylebot/server/internal/services"
	"github.com/stylebot/server/internal/session"
	logx "github.com/stylebot/server/pkg/logger"
)

// Runner is a thin wrapper to execute the compiled graph with the public TurnInput.
type Runner interface {
	Invoke(ctx context.Context, in model.TurnInput) (string, error)
}

// Config holds everything needed to compose the stylist graph end-to-end.
// This is a convenience layer over GraphConfig that also constructs the
// ChatModels and conversation Manager.
type Config struct {
	APIKey       string
	BaseURL      string
	StylistModel model.StylistModelConfig
	Prompt       model.PromptConfig
	Conversation model.ConversationConfig
	Sessions     *session.Manager
	Places       *services.PlacesClient
}

// GraphConfig holds all configuration needed to build the graph
type GraphConfig struct {
	ChatModels      *nodes.ChatModels
	MessagesManager *conversations.Manager
	PromptConfig    model.PromptConfig
	ToolDeps        tools.Deps
	ToolMaxCalls    int
}

// GraphBuilder handles the construction of the stylist conversation graph
type GraphBuilder struct {
	config *GraphConfig
	graph  *compose.Graph[model.TurnInput, *schema.Message]
}

type graphRunner struct {
	runnable compose.Runnable[model.TurnInput, *schema.Message]
}

func (r *graphRunner) Invoke(ctx context.Context, in model.TurnInput) (string, error) {
	out, err := r.runnable.Invoke(ctx, model.TurnInput{
		UserID: in.UserID,
		Text:   in.Text,
	}, compose.WithCallbacks(observers.NewAllCallbacks()))
	if err != nil {
		return "", err
	}
	if out == nil {
		return "", nil
	}
	return out.Content, nil
}

// BuildStylistGraph composes the ChatModels and conversation Manager, builds the graph, and returns a Runner.
func BuildStylistGraph(ctx context.Context, cfg Config) (Runner, error) {
	if cfg.Sessions == nil {
		return nil, fmt.Errorf("session manager is nil")
	}

	cms, err := nodes.NewChatModels(ctx, nodes.ChatModelConfig{
		APIKey:        cfg.APIKey,
		BaseURL:       cfg.BaseURL,
		StylistConfig: &cfg.StylistModel,
	})
	if err != nil {
		return nil, err
	}

	mm := conversations.NewManager(cfg.Sessions, cfg.Conversation)

	runnable, err := BuildGraph(ctx, &GraphConfig{
		ChatModels:      cms,
		MessagesManager: mm,
		PromptConfig:    cfg.Prompt,
		ToolDeps: tools.Deps{
			Places:   cfg.Places,
			Sessions: cfg.Sessions,
		},
		ToolMaxCalls: cfg.Conversation.Tools.MaxCalls,
	})
	if err != nil {
		return nil, err
	}

	logx.Debug().Msg("Stylist graph built successfully")
	return &graphRunner{runnable: runnable}, nil
}

// BuildGraph constructs and returns the compiled stylist graph
func BuildGraph(ctx context.Context, config *GraphConfig) (compose.Runnable[model.TurnInput, *schema.Message], error) {
	if config == nil {
		return nil, fmt.Errorf("graph config is nil")
	}
	if config.ChatModels == nil || config.ChatModels.Stylist == nil {
		return nil, fmt.Errorf("chat model is not properly initialized")
	}
	if config.MessagesManager == nil {
		return nil, fmt.Errorf("conversation manager is nil")
	}

	builder := &GraphBuilder{
		config: config,
		graph: compose.NewGraph[model.TurnInput, *schema.Message](
			compose.WithGenLocalState(func(ctx context.Context) *model.AppState {
				return &model.AppState{}
			}),
		),
	}

	if err := builder.setupTools(ctx); err != nil {
		return nil, err
	}

	builder.addNodes()
	builder.addEdges()

	if err := builder.addBranches(); err != nil {
		return nil, err
	}

	return builder.compile(ctx)
}

// setupTools configures the stylist tools and binds them to the chat model
func (b *GraphBuilder) setupTools(ctx context.Context) error {
	stylistTools := tools.GetQueryTools(b.config.ToolDeps)
	toolInfos, err := tools.GetToolInfos(ctx, stylistTools)
	if err != nil {
		logx.Error().Err(err).Msg("Failed to get tool infos")
		return fmt.Errorf("failed to get tool infos: %w", err)
	}

	if err := b.config.ChatModels.BindToolsToStylistModel(ctx, toolInfos); err != nil {
		logx.Error().Err(err).Msg("Failed to bind tools to stylist model")
		return fmt.Errorf("failed to bind tools to stylist model: %w", err)
	}

	toolsNode, err := compose.NewToolNode(ctx, &compose.ToolsNodeConfig{
		Tools:               stylistTools,
		ExecuteSequentially: true,
		UnknownToolsHandler: func(ctx context.Context, name, input string) (string, error) {
			// Gracefully handle hallucinated or malformed tool calls (e.g., empty name)
			logx.Warn().
				Str("tool_name", name).
				Str("arguments", input).
				Msg("Unknown or invalid tool call; returning fallback result")
			return fmt.Sprintf("{\"error\":\"unknown_tool\",\"name\":%q,\"note\":\"ignored\"}", name), nil
		},
		ToolArgumentsHandler: sanitizeToolArguments,
	})
	if err != nil {
		logx.Error().Err(err).Msg("Failed to create tools node")
		return fmt.Errorf("failed to create tools node: %w", err)
	}

	b.graph.AddToolsNode(nodes.NodeToolExecutor, toolsNode,
		compose.WithStatePreHandler(nodes.NewToolExecutorPreHandler(b.config.ToolMaxCalls)),
	)

	return nil
}

// addNodes adds all processing nodes to the graph
func (b *GraphBuilder) addNodes() {
	b.graph.AddLambdaNode(nodes.NodeInputConverter,
		nodes.NewInputConverterNode(b.config.MessagesManager, b.config.PromptConfig),
		compose.WithStatePreHandler(nodes.NewInputConverterPreHandler()),
	)

	b.graph.AddChatModelNode(nodes.NodeStylistChatModel,
		nodes.NewStylistChatModelNode(b.config.ChatModels.Stylist),
		compose.WithStatePreHandler(nodes.NewStylistChatModelPreHandler(b.config.ToolMaxCalls)),
		compose.WithStatePostHandler(nodes.NewStylistChatModelPostHandler(b.config.MessagesManager, b.config.ChatModels.StylistModelName)),
	)
}

// addEdges creates the main flow connections between nodes
func (b *GraphBuilder) addEdges() {
	edges := [][2]string{
		{compose.START, nodes.NodeInputConverter},
		{nodes.NodeInputConverter, nodes.NodeStylistChatModel},
		{nodes.NodeToolExecutor, nodes.NodeStylistChatModel},
	}

	for _, edge := range edges {
		b.graph.AddEdge(edge[0], edge[1])
	}
}

// addBranches creates conditional routing branches
func (b *GraphBuilder) addBranches() error {
	decisionBranch := compose.NewGraphBranch(
		nodes.NewToolExecutorCondition(),
		map[string]bool{
			nodes.NodeToolExecutor: true,
			compose.END:            true,
		},
	)
	if err := b.graph.AddBranch(nodes.NodeStylistChatModel, decisionBranch); err != nil {
		logx.Error().Err(err).Msg("Error adding decision branch")
		return fmt.Errorf("error adding decision branch: %w", err)
	}

	return nil
}

// compile finalizes and compiles the graph
func (b *GraphBuilder) compile(ctx context.Context) (compose.Runnable[model.TurnInput, *schema.Message], error) {
	// Limit total run steps to avoid infinite loops in branching or tool retries
	maxSteps := 10 + b.config.ToolMaxCalls*2
	if maxSteps < 20 {
		maxSteps = 20
	}

	runnable, err := b.graph.Compile(ctx, compose.WithMaxRunSteps(maxSteps))
	if err != nil {
		logx.Error().Err(err).Msg("Error compiling graph")
		return nil, fmt.Errorf("error compiling graph: %w", err)
	}

	logx.Debug().Msg("Graph compiled successfully")
	return runnable, nil
}

// sanitizeToolArguments best-effort normalizes model-produced tool arguments;
// it never fails hard.
func sanitizeToolArguments(ctx context.Context, name, arguments string) (string, error) {
	var m map[string]any
	if err := json.Unmarshal([]byte(arguments), &m); err != nil {
		// keep original if not JSON
		return arguments, nil
	}

	// user_id: every tool takes it; coerce strings the model produces
	if v, ok := m["user_id"]; ok {
		switch vv := v.(type) {
		case string:
			if n, err := strconv.ParseInt(strings.TrimSpace(vv), 10, 64); err == nil {
				m["user_id"] = n
			}
		}
	}

	switch name {
	case tools.ToolSearchStudios:
		for _, key := range []string{"query", "location", "activity"} {
			if v, ok := m[key]; ok {
				switch vv := v.(type) {
				case string:
					m[key] = strings.TrimSpace(vv)
				default:
					if key == "query" {
						m[key] = strings.TrimSpace(fmt.Sprint(v))
					} else {
						delete(m, key)
					}
				}
			}
		}
		if v, ok := m["max_results"]; ok {
			switch vv := v.(type) {
			case float64:
				// JSON numbers decode as float64
				m["max_results"] = clampInt(int(vv), 1, 20)
			case string:
				if n, err := strconv.Atoi(strings.TrimSpace(vv)); err == nil {
					m["max_results"] = clampInt(n, 1, 20)
				} else {
					delete(m, "max_results")
				}
			default:
				delete(m, "max_results")
			}
		}
	case tools.ToolStudioDetails:
		if v, ok := m["place_id"]; ok {
			m["place_id"] = strings.TrimSpace(fmt.Sprint(v))
		}
	case tools.ToolUpdateLocation:
		if v, ok := m["location"]; ok {
			m["location"] = strings.TrimSpace(fmt.Sprint(v))
		}
	}

	b, err := json.Marshal(m)
	if err != nil {
		// fallback to original
		return arguments, nil
	}
	return string(b), nil
}

// clampInt returns v limited to [min, max].
func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
