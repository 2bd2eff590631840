// Package graph composes the document-assistant orchestration: one router
// entry, four workflow flows, one final responder.
package graph

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"

	"github.com/docsmith-core/server/internal/assistant/docgen"
	"github.com/docsmith-core/server/internal/assistant/graph/conversations"
	"github.com/docsmith-core/server/internal/assistant/graph/nodes"
	"github.com/docsmith-core/server/internal/assistant/graph/observers"
	"github.com/docsmith-core/server/internal/assistant/llm"
	"github.com/docsmith-core/server/internal/assistant/model"
	"github.com/docsmith-core/server/internal/assistant/reader"
	"github.com/docsmith-core/server/internal/assistant/router"
	logx "github.com/docsmith-core/server/pkg/logger"
)

// Runner executes one orchestration turn for the public QueryInput.
type Runner interface {
	Invoke(ctx context.Context, in model.QueryInput) (*model.Answer, error)
}

// Config holds everything needed to compose the full assistant end-to-end.
type Config struct {
	APIKey  string
	BaseURL string

	RouterModel  model.RouterModelConfig
	ContentModel model.ContentModelConfig
	Fallback     model.FallbackConfig
	Conversation model.ConversationConfig

	ConversationRepo model.ConversationRepository
	Registry         model.TemplateRegistry
	Store            model.DocumentStore
}

// GraphConfig is the already-constructed dependency set the builder wires.
type GraphConfig struct {
	Router          *router.Router
	MessagesManager *conversations.MessagesManager
	Flows           nodes.FlowDeps
	Registry        model.TemplateRegistry
}

// GraphBuilder handles the construction of the orchestration graph.
type GraphBuilder struct {
	config *GraphConfig
	graph  *compose.Graph[model.QueryInput, *model.Answer]
}

type graphRunner struct {
	runnable compose.Runnable[model.QueryInput, *model.Answer]
}

func (r *graphRunner) Invoke(ctx context.Context, in model.QueryInput) (*model.Answer, error) {
	return r.runnable.Invoke(ctx, in, compose.WithCallbacks(observers.NewAllCallbacks()))
}

// BuildAssistantGraph constructs the chat models, the router and the flow
// collaborators, builds the graph, and returns a Runner.
func BuildAssistantGraph(ctx context.Context, cfg Config) (Runner, error) {
	if cfg.ConversationRepo == nil {
		return nil, fmt.Errorf("conversation repo is nil")
	}
	if cfg.Registry == nil || cfg.Store == nil {
		return nil, fmt.Errorf("template registry and document store are required")
	}

	routerInvoker, err := llm.NewGeminiFallback(ctx, llm.BackendConfig{
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		Temperature: cfg.RouterModel.Temperature,
		MaxTokens:   cfg.RouterModel.MaxTokens,
	}, cfg.Fallback)
	if err != nil {
		return nil, fmt.Errorf("build router models: %w", err)
	}

	contentInvoker, err := llm.NewGeminiFallback(ctx, llm.BackendConfig{
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		Temperature: cfg.ContentModel.Temperature,
		MaxTokens:   cfg.ContentModel.MaxTokens,
	}, cfg.Fallback)
	if err != nil {
		return nil, fmt.Errorf("build content models: %w", err)
	}

	rt, err := router.New(routerInvoker, cfg.RouterModel)
	if err != nil {
		return nil, fmt.Errorf("build router: %w", err)
	}

	mm := conversations.NewMessagesManager(cfg.ConversationRepo, cfg.Conversation)

	runnable, err := BuildGraph(ctx, &GraphConfig{
		Router:          rt,
		MessagesManager: mm,
		Registry:        cfg.Registry,
		Flows: nodes.FlowDeps{
			Messages:  mm,
			LLM:       contentInvoker,
			Registry:  cfg.Registry,
			Store:     cfg.Store,
			Reader:    reader.New(cfg.Store),
			Generator: docgen.New(),
		},
	})
	if err != nil {
		return nil, err
	}

	logx.Debug().Msg("assistant graph built")
	return &graphRunner{runnable: runnable}, nil
}

// BuildGraph constructs and compiles the orchestration graph from the
// provided dependency set.
func BuildGraph(ctx context.Context, config *GraphConfig) (compose.Runnable[model.QueryInput, *model.Answer], error) {
	if config == nil {
		return nil, fmt.Errorf("graph config is nil")
	}
	if config.Router == nil || config.MessagesManager == nil {
		return nil, fmt.Errorf("router and messages manager are required")
	}
	if config.Flows.LLM == nil || config.Flows.Registry == nil || config.Flows.Store == nil ||
		config.Flows.Reader == nil || config.Flows.Generator == nil || config.Flows.Messages == nil {
		return nil, fmt.Errorf("flow dependencies are not fully initialized")
	}
	if config.Registry == nil {
		config.Registry = config.Flows.Registry
	}

	builder := &GraphBuilder{
		config: config,
		graph: compose.NewGraph[model.QueryInput, *model.Answer](
			compose.WithGenLocalState(func(ctx context.Context) *model.AppState {
				return &model.AppState{}
			}),
		),
	}

	builder.addNodes()
	builder.addEdges()

	if err := builder.addBranches(); err != nil {
		return nil, err
	}

	return builder.compile(ctx)
}

// addNodes adds all processing nodes to the graph.
func (b *GraphBuilder) addNodes() {
	b.graph.AddLambdaNode(nodes.NodeRouter,
		nodes.NewRouterNode(b.config.MessagesManager, b.config.Router),
		compose.WithStatePreHandler(nodes.NewRouterPreHandler()),
		compose.WithStatePostHandler(nodes.NewRouterPostHandler()),
	)

	b.graph.AddLambdaNode(nodes.NodeFillTemplate, nodes.NewFillTemplateNode(b.config.Flows))
	b.graph.AddLambdaNode(nodes.NodeCreateDocument, nodes.NewCreateDocumentNode(b.config.Flows))
	b.graph.AddLambdaNode(nodes.NodeReadDocument, nodes.NewReadDocumentNode(b.config.Flows))
	b.graph.AddLambdaNode(nodes.NodeGeneralChat, nodes.NewGeneralChatNode(b.config.Flows))

	b.graph.AddLambdaNode(nodes.NodeFinalResponder,
		nodes.NewFinalResponderNode(b.config.Registry),
		compose.WithStatePostHandler(nodes.NewFinalResponderPostHandler(b.config.MessagesManager)),
	)
}

// addEdges creates the unconditional flow connections.
func (b *GraphBuilder) addEdges() {
	edges := [][2]string{
		{compose.START, nodes.NodeRouter},
		{nodes.NodeFillTemplate, nodes.NodeFinalResponder},
		{nodes.NodeCreateDocument, nodes.NodeFinalResponder},
		{nodes.NodeReadDocument, nodes.NodeFinalResponder},
		{nodes.NodeGeneralChat, nodes.NodeFinalResponder},
		{nodes.NodeFinalResponder, compose.END},
	}

	for _, edge := range edges {
		b.graph.AddEdge(edge[0], edge[1])
	}
}

// addBranches creates the conditional dispatch from the router to exactly one
// flow node.
func (b *GraphBuilder) addBranches() error {
	flowBranch := compose.NewGraphBranch(
		nodes.NewFlowCondition(),
		map[string]bool{
			nodes.NodeFillTemplate:   true,
			nodes.NodeCreateDocument: true,
			nodes.NodeReadDocument:   true,
			nodes.NodeGeneralChat:    true,
		},
	)
	if err := b.graph.AddBranch(nodes.NodeRouter, flowBranch); err != nil {
		logx.Error().Err(err).Msg("error adding flow branch")
		return fmt.Errorf("error adding flow branch: %w", err)
	}
	return nil
}

// compile finalizes the graph. The topology is fixed and acyclic, so a small
// step ceiling is enough.
func (b *GraphBuilder) compile(ctx context.Context) (compose.Runnable[model.QueryInput, *model.Answer], error) {
	runnable, err := b.graph.Compile(ctx, compose.WithMaxRunSteps(10))
	if err != nil {
		logx.Error().Err(err).Msg("error compiling graph")
		return nil, fmt.Errorf("error compiling graph: %w", err)
	}

	logx.Debug().Msg("graph compiled")
	return runnable, nil
}
