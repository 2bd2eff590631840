package llm

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino/components/model"
	"google.golang.org/genai"

	appmodel "github.com/docsmith-core/server/internal/assistant/model"
	logx "github.com/docsmith-core/server/pkg/logger"
)

// BackendConfig holds provider credentials plus the sampling parameters
// applied to every model in the fallback list.
type BackendConfig struct {
	APIKey      string
	BaseURL     string
	Temperature float32
	MaxTokens   int
}

// NewGeminiFallback constructs one Gemini chat model per configured model name
// and wraps them in a Fallback invoker. One genai client is shared by all
// backends.
func NewGeminiFallback(ctx context.Context, cfg BackendConfig, fallback appmodel.FallbackConfig) (*Fallback, error) {
	if len(fallback.Models) == 0 {
		return nil, fmt.Errorf("LLM model list is empty")
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = cfg.BaseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini client")
		return nil, fmt.Errorf("error creating Gemini client: %w", err)
	}

	backends := make([]model.ToolCallingChatModel, 0, len(fallback.Models))
	for _, name := range fallback.Models {
		cm, err := gemini.NewChatModel(ctx, &gemini.Config{
			Client:      client,
			Model:       name,
			Temperature: &cfg.Temperature,
			MaxTokens:   &cfg.MaxTokens,
		})
		if err != nil {
			logx.Error().Err(err).Str("model", name).Msg("Error creating Gemini chat model")
			return nil, fmt.Errorf("error creating chat model %s: %w", name, err)
		}
		backends = append(backends, cm)
	}

	return NewFallback(fallback.Models, backends)
}
