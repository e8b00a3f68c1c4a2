package nodes

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"

	"github.com/chative/lending-agent/internal/agent/model"
	errx "github.com/chative/lending-agent/internal/core/error"
	logx "github.com/chative/lending-agent/pkg/logger"
)

// ChatModelConfig holds the configuration for chat model creation
type ChatModelConfig struct {
	APIKey  string
	BaseURL string
	Models  model.ModelsConfig
}

// ChatModels holds one handle per model role. Classifier and Safety are
// optional; Fast and Capable are required.
type ChatModels struct {
	Classifier einomodel.BaseChatModel
	Fast       einomodel.ChatModel
	Capable    einomodel.ChatModel
	Safety     einomodel.BaseChatModel

	FastModelName    string
	CapableModelName string
}

// Validate reports a configuration error when a required tier is missing.
func (cm *ChatModels) Validate() error {
	if cm == nil {
		return errx.WrapConfig(errors.New("chat models are nil"))
	}
	if cm.Fast == nil {
		return errx.WrapConfig(errors.New("fast tier model is not configured"))
	}
	if cm.Capable == nil {
		return errx.WrapConfig(errors.New("capable tier model is not configured"))
	}
	return nil
}

// NewChatModels creates the Gemini backed models sharing one genai client.
func NewChatModels(ctx context.Context, config ChatModelConfig) (*ChatModels, error) {
	if config.APIKey == "" {
		return nil, errx.WrapConfig(errors.New("GEMINI_API_KEY is required"))
	}
	if config.Models.Fast.Model == "" {
		return nil, errx.WrapConfig(errors.New("FAST_MODEL is required"))
	}
	if config.Models.Capable.Model == "" {
		return nil, errx.WrapConfig(errors.New("CAPABLE_MODEL is required"))
	}

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

	cms := &ChatModels{
		FastModelName:    config.Models.Fast.Model,
		CapableModelName: config.Models.Capable.Model,
	}

	if cms.Fast, err = newGeminiModel(ctx, client, config.Models.Fast, nil); err != nil {
		return nil, fmt.Errorf("error creating fast model: %w", err)
	}
	cms.Capable, err = newGeminiModel(ctx, client, config.Models.Capable, &genai.ThinkingConfig{
		IncludeThoughts: false,
		ThinkingBudget:  genai.Ptr(int32(2000)),
	})
	if err != nil {
		return nil, fmt.Errorf("error creating capable model: %w", err)
	}

	if config.Models.Classifier.Model != "" {
		if cms.Classifier, err = newGeminiModel(ctx, client, config.Models.Classifier, nil); err != nil {
			return nil, fmt.Errorf("error creating classifier model: %w", err)
		}
	} else {
		logx.Warn().Msg("CLASSIFIER_MODEL not set - routing with rules only")
	}

	if config.Models.Safety.Model != "" {
		if cms.Safety, err = newGeminiModel(ctx, client, config.Models.Safety, nil); err != nil {
			return nil, fmt.Errorf("error creating safety model: %w", err)
		}
	} else {
		logx.Warn().Msg("SAFETY_MODEL not set - content screening disabled")
	}

	return cms, nil
}

func newGeminiModel(ctx context.Context, client *genai.Client, cfg model.TierModelConfig, thinking *genai.ThinkingConfig) (*gemini.ChatModel, error) {
	temperature := cfg.Temperature
	maxTokens := cfg.MaxTokens
	cm, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:         client,
		Model:          cfg.Model,
		Temperature:    &temperature,
		MaxTokens:      &maxTokens,
		ThinkingConfig: thinking,
	})
	if err != nil {
		logx.Error().Err(err).Str("model", cfg.Model).Msg("Error creating chat model")
		return nil, err
	}
	return cm, nil
}

// BindTools binds the tool definitions to both generation tiers. The fast tier
// is bound as well so it can signal that a request needs tools.
func (cm *ChatModels) BindTools(tools []*schema.ToolInfo) error {
	if err := cm.Fast.BindTools(tools); err != nil {
		logx.Error().Err(err).Msg("Failed to bind tools to fast model")
		return fmt.Errorf("failed to bind tools to fast model: %w", err)
	}
	if err := cm.Capable.BindTools(tools); err != nil {
		logx.Error().Err(err).Msg("Failed to bind tools to capable model")
		return fmt.Errorf("failed to bind tools to capable model: %w", err)
	}
	logx.Debug().Int("tools", len(tools)).Msg("Successfully bound tools to generation models")
	return nil
}
