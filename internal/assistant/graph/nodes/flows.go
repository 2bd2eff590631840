package nodes

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/compose"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"golang.org/x/sync/errgroup"

	"github.com/docsmith-core/server/internal/assistant/docgen"
	"github.com/docsmith-core/server/internal/assistant/graph/conversations"
	"github.com/docsmith-core/server/internal/assistant/graph/prompts"
	"github.com/docsmith-core/server/internal/assistant/model"
	"github.com/docsmith-core/server/internal/assistant/template"
	errx "github.com/docsmith-core/server/internal/core/error"
	logx "github.com/docsmith-core/server/pkg/logger"
)

// FlowDeps bundles the collaborators the flow nodes need.
type FlowDeps struct {
	Messages  *conversations.MessagesManager
	LLM       einomodel.BaseChatModel
	Registry  model.TemplateRegistry
	Store     model.DocumentStore
	Reader    model.FileReader
	Generator docgen.Generator
}

// turnContext is the request identity every flow reads from state.
type turnContext struct {
	UserID          string
	ConversationID  string
	Prompt          string
	InputDocumentID string
	History         []*schema.Message
}

func loadTurnContext(ctx context.Context) (turnContext, error) {
	var tc turnContext
	err := compose.ProcessState(ctx, func(_ context.Context, s *model.AppState) error {
		tc = turnContext{
			UserID:          s.UserID,
			ConversationID:  s.ConversationID,
			Prompt:          s.Prompt,
			InputDocumentID: s.InputDocumentID,
			History:         s.History,
		}
		return nil
	})
	if err != nil {
		return turnContext{}, fmt.Errorf("read execution state: %w", err)
	}
	return tc, nil
}

// fieldMapping is the JSON shape the fill-template call asks the model for.
type fieldMapping struct {
	Content  map[string]any `json:"content"`
	Filename string         `json:"filename"`
}

// NewFillTemplateNode fills a registered DOCX template. A template with no
// placeholders renders directly without a content-generation call.
func NewFillTemplateNode(deps FlowDeps) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, call *model.RoutedCall) (*model.FlowOutcome, error) {
		args := call.FillTemplate
		if args == nil {
			return nil, fmt.Errorf("fill-template flow routed without args")
		}
		tc, err := loadTurnContext(ctx)
		if err != nil {
			return nil, err
		}

		templateBytes, info, err := deps.Registry.Fetch(ctx, args.TemplateName)
		if err != nil {
			logx.Warn().Err(err).Str("template", args.TemplateName).Msg("template fetch failed")
			return &model.FlowOutcome{ToolOutput: model.ErrorResponseFrom(
				fmt.Sprintf("I couldn't load the template '%s'.", args.TemplateName), err)}, nil
		}

		inventory, err := template.ExtractPlaceholders(templateBytes)
		if err != nil {
			logx.Error().Err(err).Str("template", info.Filename).Msg("placeholder extraction failed")
			return &model.FlowOutcome{ToolOutput: model.ErrorResponseFrom(
				fmt.Sprintf("The template '%s' could not be inspected.", info.Filename), err)}, nil
		}

		content := map[string]any{}
		outputFilename := ""
		if !inventory.Empty() {
			sys, err := prompts.RenderFillTemplate(ctx, info.Filename, historyText(tc.History), tc.Prompt,
				inventory.Variables, inventory.Collections)
			if err != nil {
				logx.Error().Err(err).Str("template", info.Filename).Msg("fill prompt render failed")
				return &model.FlowOutcome{ToolOutput: model.ErrorResponseFrom(
					"I couldn't prepare the template request.", err)}, nil
			}
			resp, err := deps.LLM.Generate(ctx, []*schema.Message{
				schema.SystemMessage(sys),
				schema.UserMessage(tc.Prompt),
			})
			if err != nil {
				logx.Error().Err(err).Str("template", info.Filename).Msg("content mapping generation failed")
				return &model.FlowOutcome{ToolOutput: model.ErrorResponseFrom(
					"I couldn't generate content for the template.", err)}, nil
			}
			mapping, err := parseFieldMapping(resp.Content)
			if err != nil {
				logx.Error().Err(err).Str("template", info.Filename).Msg("content mapping parse failed")
				return &model.FlowOutcome{ToolOutput: model.ErrorResponseFrom(
					"The generated template content was not usable.", err)}, nil
			}
			content = mapping.Content
			outputFilename = ensureExtension(mapping.Filename, model.FileTypeDocx)
		}

		result, err := template.ValidateAndRender(template.RenderRequest{
			TemplateName:   info.Filename,
			TemplateBytes:  templateBytes,
			Inventory:      inventory,
			Content:        content,
			OutputFilename: outputFilename,
		})
		if err != nil {
			return &model.FlowOutcome{ToolOutput: model.ErrorResponseFrom(
				fmt.Sprintf("I couldn't fill the template '%s'.", info.Filename), err)}, nil
		}

		stored, err := deps.Store.Put(ctx, result.Content, result.Filename, tc.UserID)
		if err != nil {
			return &model.FlowOutcome{ToolOutput: model.ErrorResponseFrom(
				"The filled document could not be saved.", err)}, nil
		}

		return &model.FlowOutcome{ToolOutput: model.SuccessResponse(
			fmt.Sprintf("I filled the template '%s' and saved the result as '%s'.", info.Filename, stored.Filename),
			map[string]any{"document_id": stored.FileRef, "filename": stored.Filename},
		)}, nil
	})
}

// NewCreateDocumentNode generates a new document from scratch. Body content
// and filename come from two informationally independent model calls issued
// concurrently; a failed filename call degrades to a deterministic default.
func NewCreateDocumentNode(deps FlowDeps) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, call *model.RoutedCall) (*model.FlowOutcome, error) {
		args := call.CreateDocument
		if args == nil {
			return nil, fmt.Errorf("create-document flow routed without args")
		}
		tc, err := loadTurnContext(ctx)
		if err != nil {
			return nil, err
		}
		fileType := model.NormalizeFileType(args.FileType)

		var content, filename string
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			sys, err := prompts.RenderCreateContent(gctx, args.Topic, historyText(tc.History), tc.Prompt, fileType)
			if err != nil {
				return err
			}
			resp, err := deps.LLM.Generate(gctx, []*schema.Message{
				schema.SystemMessage(sys),
				schema.UserMessage(tc.Prompt),
			})
			if err != nil {
				return fmt.Errorf("generate document content: %w", err)
			}
			content = resp.Content
			return nil
		})
		g.Go(func() error {
			sys, err := prompts.RenderFilename(gctx, args.Topic, fileType)
			if err != nil {
				logx.Warn().Err(err).Msg("filename prompt render failed, using default")
				return nil
			}
			resp, err := deps.LLM.Generate(gctx, []*schema.Message{
				schema.SystemMessage(sys),
				schema.UserMessage(args.Topic),
			})
			if err != nil {
				// filename is decorative; fall back rather than failing the flow
				logx.Warn().Err(err).Msg("filename suggestion failed, using default")
				return nil
			}
			filename = ensureExtension(resp.Content, fileType)
			return nil
		})
		if err := g.Wait(); err != nil {
			logx.Error().Err(err).Str("topic", args.Topic).Msg("document generation failed")
			return &model.FlowOutcome{ToolOutput: model.ErrorResponseFrom(
				"I couldn't generate the document content.", err)}, nil
		}
		if filename == "" {
			filename = docgen.DefaultFilename(tc.ConversationID, fileType)
		}

		fileBytes, err := deps.Generator.Generate(fileType, content)
		if err != nil {
			return &model.FlowOutcome{ToolOutput: model.ErrorResponseFrom(
				fmt.Sprintf("I couldn't produce the %s file.", fileType), err)}, nil
		}

		stored, err := deps.Store.Put(ctx, fileBytes, filename, tc.UserID)
		if err != nil {
			return &model.FlowOutcome{ToolOutput: model.ErrorResponseFrom(
				"The generated document could not be saved.", err)}, nil
		}

		return &model.FlowOutcome{ToolOutput: model.SuccessResponse(
			fmt.Sprintf("I created '%s' about %s.", stored.Filename, args.Topic),
			map[string]any{"document_id": stored.FileRef, "filename": stored.Filename},
		)}, nil
	})
}

// NewReadDocumentNode answers a question about an attached document, grounded
// strictly in the extracted content.
func NewReadDocumentNode(deps FlowDeps) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, call *model.RoutedCall) (*model.FlowOutcome, error) {
		args := call.ReadDocument
		if args == nil {
			return nil, fmt.Errorf("read-document flow routed without args")
		}
		tc, err := loadTurnContext(ctx)
		if err != nil {
			return nil, err
		}

		fileRef := tc.InputDocumentID
		if fileRef == "" {
			// earlier turn may have attached the document
			fileRef, err = deps.Messages.LatestInputDocumentID(ctx, tc.ConversationID)
			if err != nil {
				logx.Error().Err(err).Str("conversation_id", tc.ConversationID).Msg("attachment lookup failed")
				return &model.FlowOutcome{ToolOutput: model.ErrorResponseFrom(
					"I couldn't look up the attached document.", err)}, nil
			}
		}
		if fileRef == "" {
			return &model.FlowOutcome{ToolOutput: model.ErrorResponse(
				"There is no attached document to read. Please attach a file and ask again.",
				errx.CodeValidationError)}, nil
		}

		file, err := deps.Reader.Read(ctx, fileRef)
		if err != nil {
			logx.Warn().Err(err).Str("file_ref", fileRef).Msg("document read failed")
			return &model.FlowOutcome{ToolOutput: model.ErrorResponseFrom(
				"I couldn't read the attached document.", err)}, nil
		}

		sys, err := prompts.RenderReadDocument(ctx, args.Question, file)
		if err != nil {
			logx.Error().Err(err).Str("file_ref", fileRef).Msg("read prompt render failed")
			return &model.FlowOutcome{ToolOutput: model.ErrorResponseFrom(
				"I couldn't prepare the document question.", err)}, nil
		}
		resp, err := deps.LLM.Generate(ctx, []*schema.Message{
			schema.SystemMessage(sys),
			schema.UserMessage(args.Question),
		})
		if err != nil {
			return &model.FlowOutcome{ToolOutput: model.ErrorResponseFrom(
				"I couldn't analyze the attached document.", err)}, nil
		}

		return &model.FlowOutcome{ToolOutput: model.SuccessResponse(resp.Content, nil)}, nil
	})
}

// NewGeneralChatNode is the conversational fallback. Questions about the
// available templates are answered deterministically from the live registry
// instead of the model.
func NewGeneralChatNode(deps FlowDeps) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, call *model.RoutedCall) (*model.FlowOutcome, error) {
		args := call.GeneralChat
		if args == nil {
			return nil, fmt.Errorf("general-chat flow routed without args")
		}
		tc, err := loadTurnContext(ctx)
		if err != nil {
			return nil, err
		}

		if asksAboutTemplates(args.UserRequest) {
			names, err := deps.Registry.List(ctx)
			if err == nil {
				return &model.FlowOutcome{FinalResponse: templateListingReply(names)}, nil
			}
			logx.Warn().Err(err).Msg("template listing failed, answering conversationally")
		}

		sys, err := prompts.RenderGeneralChat(ctx)
		if err != nil {
			logx.Error().Err(err).Msg("chat prompt render failed")
			return &model.FlowOutcome{ToolOutput: model.ErrorResponseFrom(
				"I couldn't prepare a reply right now.", err)}, nil
		}
		messages, err := deps.Messages.BuildChatContext(ctx, tc.ConversationID, sys)
		if err != nil {
			logx.Error().Err(err).Str("conversation_id", tc.ConversationID).Msg("chat history load failed")
			return &model.FlowOutcome{ToolOutput: model.ErrorResponseFrom(
				"I couldn't load the conversation history.", err)}, nil
		}
		resp, err := deps.LLM.Generate(ctx, messages)
		if err != nil {
			logx.Error().Err(err).Str("conversation_id", tc.ConversationID).Msg("chat reply generation failed")
			return &model.FlowOutcome{ToolOutput: model.ErrorResponseFrom(
				"I couldn't produce a reply right now.", err)}, nil
		}
		return &model.FlowOutcome{FinalResponse: resp.Content}, nil
	})
}

func asksAboutTemplates(request string) bool {
	lower := strings.ToLower(request)
	return strings.Contains(lower, "template")
}

func templateListingReply(names []string) string {
	if len(names) == 0 {
		return "There are no templates registered yet. You can still ask me to create a new document from scratch."
	}
	return fmt.Sprintf("The available templates are: %s. Tell me which one to fill and what it should be about.",
		strings.Join(names, ", "))
}

// parseFieldMapping decodes the model's JSON field mapping, tolerating a
// fenced code block around it.
func parseFieldMapping(raw string) (*fieldMapping, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var m fieldMapping
	if err := json.Unmarshal([]byte(cleaned), &m); err != nil {
		return nil, fmt.Errorf("decode field mapping: %w", err)
	}
	if m.Content == nil {
		m.Content = map[string]any{}
	}
	return &m, nil
}

// ensureExtension sanitizes a suggested filename and forces the target
// extension. Empty input stays empty so callers can apply their default.
func ensureExtension(name string, fileType model.FileType) string {
	cleaned := strings.Trim(strings.TrimSpace(name), "\"'`")
	cleaned = strings.Trim(cleaned, "\n\t ")
	if cleaned == "" {
		return ""
	}
	ext := "." + string(fileType)
	if !strings.HasSuffix(strings.ToLower(cleaned), ext) {
		cleaned += ext
	}
	return cleaned
}
