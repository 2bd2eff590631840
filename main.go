package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/docsmith-core/server/internal/assistant/graph"
	"github.com/docsmith-core/server/internal/assistant/model"
	"github.com/docsmith-core/server/internal/assistant/repo"
	pkgredis "github.com/docsmith-core/server/pkg/redis"
)

// AppConfig defines all configurable parameters for the assistant demo,
// sourced from environment variables (loaded from .env for local runs).
type AppConfig struct {
	// Infrastructure
	Redis pkgredis.Config

	// LLM provider
	APIKey  string `envconfig:"GEMINI_API_KEY" required:"true"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`

	// Assistant configs
	Router       model.RouterModelConfig
	Content      model.ContentModelConfig
	Fallback     model.FallbackConfig
	Conversation model.ConversationConfig

	// Optional template seeded into the registry before the demo turns run.
	SeedTemplate string `envconfig:"SEED_TEMPLATE_PATH"`
}

func main() {
	ctx := context.Background()

	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	var envCfg AppConfig
	if err := envconfig.Process("", &envCfg); err != nil {
		log.Fatalf("Failed to process environment config: %v", err)
	}

	rdb, err := envCfg.Redis.New()
	if err != nil {
		log.Fatalf("Failed to initialise Redis client: %v", err)
	}
	defer rdb.Close()

	fmt.Println("Connected to Redis successfully")

	store := repo.NewRedisDocumentStore(rdb)
	registry := repo.NewRedisTemplateRegistry(rdb, store)

	if envCfg.SeedTemplate != "" {
		content, err := os.ReadFile(envCfg.SeedTemplate)
		if err != nil {
			log.Fatalf("Failed to read seed template %s: %v", envCfg.SeedTemplate, err)
		}
		info, err := registry.Register(ctx, filepath.Base(envCfg.SeedTemplate), content)
		if err != nil {
			log.Fatalf("Failed to register seed template: %v", err)
		}
		fmt.Printf("Registered template %s (%s)\n", info.Filename, info.FileRef)
	}

	runner, err := graph.BuildAssistantGraph(ctx, graph.Config{
		APIKey:           envCfg.APIKey,
		BaseURL:          envCfg.BaseURL,
		RouterModel:      envCfg.Router,
		ContentModel:     envCfg.Content,
		Fallback:         envCfg.Fallback,
		Conversation:     envCfg.Conversation,
		ConversationRepo: repo.NewRedisConversationRepository(rdb, envCfg.Conversation.TTL),
		Registry:         registry,
		Store:            store,
	})
	if err != nil {
		log.Fatalf("Failed to build graph: %v", err)
	}

	demoTurns := []struct {
		description string
		prompt      string
	}{
		{
			description: "General conversation",
			prompt:      "Hi! What can you help me with?",
		},
		{
			description: "Template discovery",
			prompt:      "Which templates do you have available?",
		},
		{
			description: "Document creation (spreadsheet)",
			prompt:      "Make me a spreadsheet of quarterly sales for a small bakery",
		},
		{
			description: "Document creation (formal PDF)",
			prompt:      "Now create a formal PDF summary of those quarterly results",
		},
	}

	conversationID := "demo-conversation-001"

	for i, turn := range demoTurns {
		fmt.Printf("\nTurn %d: %s\n", i+1, turn.description)
		fmt.Printf("Prompt: %q\n", turn.prompt)

		answer, err := runner.Invoke(ctx, model.QueryInput{
			UserID:         "demo-user",
			ConversationID: conversationID,
			Prompt:         turn.prompt,
		})
		if err != nil {
			log.Fatalf("Failed to invoke graph for turn %d: %v", i+1, err)
		}

		fmt.Printf("Response: %s\n", answer.FinalResponse)
		if answer.GeneratedDocumentID != "" {
			fmt.Printf("Generated document: %s\n", answer.GeneratedDocumentID)
		}
		fmt.Println("------------------------------------------------")

		time.Sleep(500 * time.Millisecond)
	}

	fmt.Println("All demo turns completed")
}
