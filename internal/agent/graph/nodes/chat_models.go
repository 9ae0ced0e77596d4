package nodes

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"

	"github.com/stylebot/server/internal/agent/model"
	logx "github.com/stylebot/server/pkg/logger"
)

// Graph node names.
const (
	NodeInputConverter   = "InputConverter"
	NodeStylistChatModel = "StylistChatModel"
	NodeToolExecutor     = "ToolExecutor"
)

// ChatModelConfig holds the configuration for chat model creation
type ChatModelConfig struct {
	APIKey        string
	BaseURL       string
	StylistConfig *model.StylistModelConfig
}

// ChatModels holds the stylist chat model
type ChatModels struct {
	Stylist          *gemini.ChatModel
	StylistModelName string
}

// NewChatModels creates the stylist chat model with the given configuration
func NewChatModels(ctx context.Context, config ChatModelConfig) (*ChatModels, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = config.BaseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini client")
		return nil, fmt.Errorf("error creating Gemini client: %w", err)
	}

	chatModel, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       config.StylistConfig.Model,
		Temperature: &config.StylistConfig.Temperature,
		MaxTokens:   &config.StylistConfig.MaxTokens,
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating stylist model")
		return nil, fmt.Errorf("error creating stylist model: %w", err)
	}

	return &ChatModels{
		Stylist:          chatModel,
		StylistModelName: config.StylistConfig.Model,
	}, nil
}

// BindToolsToStylistModel binds tools to the stylist chat model
func (cm *ChatModels) BindToolsToStylistModel(ctx context.Context, tools []*schema.ToolInfo) error {
	if err := cm.Stylist.BindTools(tools); err != nil {
		logx.Error().Err(err).Msg("Failed to bind tools")
		return fmt.Errorf("failed to bind tools: %w", err)
	}

	logx.Debug().Msg("Successfully bound tools to stylist model")
	return nil
}

// NewStylistChatModelNode creates a wrapper for the stylist chat model to be used as a node
func NewStylistChatModelNode(chatModel *gemini.ChatModel) *gemini.ChatModel {
	return chatModel
}
