// Package router classifies a user turn into exactly one workflow intent
// using a tool-choice request against the fallback LLM invoker. The router is
// total: whatever the prompt or the backend does, it always produces a valid
// routed call, narrowing to GeneralChat on anything unclear.
package router

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/docsmith-core/server/internal/assistant/graph/prompts"
	"github.com/docsmith-core/server/internal/assistant/model"
	logx "github.com/docsmith-core/server/pkg/logger"
)

// docxNameRe recovers a .docx file name from free text when the LLM routed to
// FillTemplate but left template_name blank.
var docxNameRe = regexp.MustCompile(`['"]?([\w\-]+\.docx?)['"]?`)

// Router performs tool-choice intent classification.
type Router struct {
	invoker      einomodel.ToolCallingChatModel
	historyTurns int
}

// New binds the four intent schemas uniformly across the invoker's backend
// list and returns the router.
func New(invoker einomodel.ToolCallingChatModel, cfg model.RouterModelConfig) (*Router, error) {
	bound, err := invoker.WithTools(IntentTools())
	if err != nil {
		return nil, fmt.Errorf("bind intent tools: %w", err)
	}
	turns := cfg.HistoryTurns
	if turns <= 0 {
		turns = 3
	}
	return &Router{invoker: bound, historyTurns: turns}, nil
}

// Route classifies the latest user turn. It never returns an error: an
// invoker failure or an empty tool selection degrades to GeneralChat so the
// orchestration always has a valid routed call.
func (r *Router) Route(ctx context.Context, prompt string, history []*schema.Message, hasAttachment bool) *model.RoutedCall {
	systemPrompt, err := prompts.RenderRouterSystem(ctx, historyBlock(history, r.historyTurns), hasAttachment)
	if err != nil {
		logx.Error().Err(err).Msg("Router prompt render failed, falling back to GeneralChat")
		return model.GeneralChatCall(prompt)
	}

	out, err := r.invoker.Generate(ctx, []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(prompt),
	})
	if err != nil {
		logx.Error().Err(err).Msg("Router LLM call failed, falling back to GeneralChat")
		return model.GeneralChatCall(prompt)
	}

	if out == nil || len(out.ToolCalls) == 0 {
		logx.Debug().Msg("Router returned no tool selection, defaulting to GeneralChat")
		return model.GeneralChatCall(prompt)
	}

	call := r.parseToolCall(out.ToolCalls[0], prompt)
	logx.Info().
		Str("tool", string(call.Tool)).
		Bool("has_attachment", hasAttachment).
		Msg("Routed user intent")
	return call
}

// parseToolCall decodes the selected schema's arguments into the matching
// typed variant. Unknown tool names and undecodable arguments narrow to
// GeneralChat rather than guessing a side-effecting intent.
func (r *Router) parseToolCall(tc schema.ToolCall, prompt string) *model.RoutedCall {
	args := []byte(tc.Function.Arguments)

	switch model.Tool(tc.Function.Name) {
	case model.ToolFillTemplate:
		var a model.FillTemplateArgs
		if err := json.Unmarshal(args, &a); err != nil {
			logx.Warn().Err(err).Str("tool", tc.Function.Name).Msg("Undecodable tool arguments")
			return model.GeneralChatCall(prompt)
		}
		if a.TemplateName == "" {
			if m := docxNameRe.FindStringSubmatch(prompt); m != nil {
				a.TemplateName = m[1]
			}
		}
		if a.TemplateName == "" {
			return model.GeneralChatCall(prompt)
		}
		return &model.RoutedCall{Tool: model.ToolFillTemplate, FillTemplate: &a}

	case model.ToolCreateDocument:
		var a model.CreateDocumentArgs
		if err := json.Unmarshal(args, &a); err != nil {
			logx.Warn().Err(err).Str("tool", tc.Function.Name).Msg("Undecodable tool arguments")
			return model.GeneralChatCall(prompt)
		}
		if a.Topic == "" {
			a.Topic = prompt
		}
		a.FileType = string(model.NormalizeFileType(a.FileType))
		return &model.RoutedCall{Tool: model.ToolCreateDocument, CreateDocument: &a}

	case model.ToolReadDocument:
		var a model.ReadDocumentArgs
		if err := json.Unmarshal(args, &a); err != nil {
			logx.Warn().Err(err).Str("tool", tc.Function.Name).Msg("Undecodable tool arguments")
			return model.GeneralChatCall(prompt)
		}
		if a.Question == "" {
			a.Question = prompt
		}
		return &model.RoutedCall{Tool: model.ToolReadDocument, ReadDocument: &a}

	case model.ToolGeneralChat:
		var a model.GeneralChatArgs
		if err := json.Unmarshal(args, &a); err != nil || a.UserRequest == "" {
			a.UserRequest = prompt
		}
		return &model.RoutedCall{Tool: model.ToolGeneralChat, GeneralChat: &a}

	default:
		logx.Warn().Str("tool", tc.Function.Name).Msg("Router selected unknown tool, defaulting to GeneralChat")
		return model.GeneralChatCall(prompt)
	}
}

// historyBlock renders the last maxTurns messages the way the LLM sees them.
func historyBlock(history []*schema.Message, maxTurns int) string {
	if len(history) > maxTurns {
		history = history[len(history)-maxTurns:]
	}
	if len(history) == 0 {
		return "(no prior messages)"
	}

	var b strings.Builder
	for _, msg := range history {
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
	if b.Len() == 0 {
		return "(no prior messages)"
	}
	return strings.TrimRight(b.String(), "\n")
}
