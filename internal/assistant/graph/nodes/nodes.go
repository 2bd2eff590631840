// Package nodes holds the lambda nodes and state handlers of the
// orchestration graph.
package nodes

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/docsmith-core/server/internal/assistant/graph/conversations"
	"github.com/docsmith-core/server/internal/assistant/model"
	"github.com/docsmith-core/server/internal/assistant/router"
	logx "github.com/docsmith-core/server/pkg/logger"
)

// Graph node names.
const (
	NodeRouter         = "Router"
	NodeFillTemplate   = "FillTemplate"
	NodeCreateDocument = "CreateDocument"
	NodeReadDocument   = "ReadDocument"
	NodeGeneralChat    = "GeneralChat"
	NodeFinalResponder = "FinalResponder"
)

// NewRouterPreHandler seeds the execution state from the public input.
func NewRouterPreHandler() func(context.Context, model.QueryInput, *model.AppState) (model.QueryInput, error) {
	return func(ctx context.Context, in model.QueryInput, s *model.AppState) (model.QueryInput, error) {
		s.UserID = in.UserID
		s.ConversationID = in.ConversationID
		s.Prompt = in.Prompt
		s.InputDocumentID = in.InputDocumentID
		return in, nil
	}
}

// NewRouterNode records the user turn, loads the recent history and classifies
// the turn into exactly one workflow intent. The node never fails on unclear
// input: routing difficulties narrow to the conversational fallback inside
// router.Route.
func NewRouterNode(mm *conversations.MessagesManager, rt *router.Router) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in model.QueryInput) (*model.RoutedCall, error) {
		// prior turns only; the current prompt is passed separately
		history, err := mm.RecentHistory(ctx, in.ConversationID)
		if err != nil {
			return nil, fmt.Errorf("load conversation history: %w", err)
		}

		if err := mm.RecordUserMessage(ctx, in.ConversationID, in.Prompt, in.InputDocumentID); err != nil {
			return nil, fmt.Errorf("record user message: %w", err)
		}

		if err := compose.ProcessState(ctx, func(_ context.Context, s *model.AppState) error {
			s.History = history
			return nil
		}); err != nil {
			return nil, fmt.Errorf("store history in state: %w", err)
		}

		call := rt.Route(ctx, in.Prompt, history, in.HasAttachment())
		logx.Debug().
			Str("conversation_id", in.ConversationID).
			Str("tool", string(call.Tool)).
			Msg("intent routed")
		return call, nil
	})
}

// NewRouterPostHandler stores the routed call so every later node can see it.
func NewRouterPostHandler() func(context.Context, *model.RoutedCall, *model.AppState) (*model.RoutedCall, error) {
	return func(ctx context.Context, out *model.RoutedCall, s *model.AppState) (*model.RoutedCall, error) {
		s.RoutedCall = out
		return out, nil
	}
}

// NewFlowCondition dispatches on the routed tool name. The set is closed; an
// unrecognized value is a contract violation and fails the run.
func NewFlowCondition() func(context.Context, *model.RoutedCall) (string, error) {
	return func(ctx context.Context, call *model.RoutedCall) (string, error) {
		if call == nil {
			return "", fmt.Errorf("routed call is nil")
		}
		switch call.Tool {
		case model.ToolFillTemplate:
			return NodeFillTemplate, nil
		case model.ToolCreateDocument:
			return NodeCreateDocument, nil
		case model.ToolReadDocument:
			return NodeReadDocument, nil
		case model.ToolGeneralChat:
			return NodeGeneralChat, nil
		default:
			return "", fmt.Errorf("unrecognized routed tool %q", call.Tool)
		}
	}
}

// historyText renders prior turns as tagged lines for prompt context.
func historyText(messages []*schema.Message) string {
	var b strings.Builder
	for _, msg := range messages {
		if msg == nil || msg.Content == "" {
			continue
		}
		switch msg.Role {
		case schema.User:
			b.WriteString("UserMessage(" + msg.Content + ")\n")
		case schema.Assistant:
			b.WriteString("AssistantMessage(" + msg.Content + ")\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
