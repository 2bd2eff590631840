// Package prompts renders the system prompts used by the router and the flow
// nodes. Rendering goes through the Eino prompt component so prompt callbacks
// fire for observability.
package prompts

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/docsmith-core/server/internal/assistant/model"
)

//go:embed template/router_prompt.txt
var routerSystemPrompt string

//go:embed template/fill_template_prompt.txt
var fillTemplatePrompt string

//go:embed template/create_content_prompt.txt
var createContentPrompt string

//go:embed template/filename_prompt.txt
var filenamePrompt string

//go:embed template/read_document_prompt.txt
var readDocumentPrompt string

//go:embed template/general_chat_prompt.txt
var generalChatPrompt string

func renderGoTemplate(ctx context.Context, raw string, vars map[string]any) (string, error) {
	tpl := prompt.FromMessages(
		schema.GoTemplate,
		schema.SystemMessage(raw),
	)
	msgs, err := tpl.Format(ctx, vars)
	if err != nil {
		return "", fmt.Errorf("prompt render: %w", err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("prompt render: empty result")
	}
	return msgs[0].Content, nil
}

// RenderRouterSystem renders the intent-routing operations manual with the
// recent history block and the attachment flag.
func RenderRouterSystem(ctx context.Context, history string, hasAttachment bool) (string, error) {
	return renderGoTemplate(ctx, routerSystemPrompt, map[string]any{
		"History":       history,
		"HasAttachment": hasAttachment,
	})
}

// RenderFillTemplate renders the content-mapping generation prompt for a
// template with the given required fields.
func RenderFillTemplate(ctx context.Context, templateName, history, userPrompt string, scalars, collections []string) (string, error) {
	return renderGoTemplate(ctx, fillTemplatePrompt, map[string]any{
		"TemplateName":     templateName,
		"History":          history,
		"Prompt":           userPrompt,
		"ScalarFields":     fieldList(scalars),
		"CollectionFields": fieldList(collections),
	})
}

// RenderCreateContent renders the document-body generation prompt. Tabular
// targets get semicolon-delimited rows, everything else gets markdown.
func RenderCreateContent(ctx context.Context, topic, history, userPrompt string, fileType model.FileType) (string, error) {
	return renderGoTemplate(ctx, createContentPrompt, map[string]any{
		"Topic":    topic,
		"History":  history,
		"Prompt":   userPrompt,
		"FileType": string(fileType),
		"Tabular":  fileType == model.FileTypeXlsx,
	})
}

// RenderFilename renders the file-name suggestion prompt.
func RenderFilename(ctx context.Context, topic string, fileType model.FileType) (string, error) {
	return renderGoTemplate(ctx, filenamePrompt, map[string]any{
		"Topic":    topic,
		"FileType": string(fileType),
	})
}

// RenderReadDocument renders the grounded question-answering prompt, framed
// for the structural shape of the source content.
func RenderReadDocument(ctx context.Context, question string, file *model.FileContent) (string, error) {
	return renderGoTemplate(ctx, readDocumentPrompt, map[string]any{
		"Question": question,
		"Filename": file.Filename,
		"Content":  file.Content,
		"Framing":  framingFor(file.ContentType),
	})
}

// RenderGeneralChat returns the conversational system prompt.
func RenderGeneralChat(ctx context.Context) (string, error) {
	return renderGoTemplate(ctx, generalChatPrompt, map[string]any{})
}

// framingFor adapts the reading instructions to the structural shape of the
// source content.
func framingFor(ct model.ContentType) string {
	switch {
	case ct.IsTabular():
		return "The content is tabular (rows and columns). When answering, locate the relevant rows and columns; you may aggregate, count or compare values across rows."
	case ct.IsStructured():
		return "The content is structured data (keys and nested values). When answering, navigate the keys and paths to the relevant values."
	default:
		return "The content is plain prose. Answer by reading the relevant passages directly."
	}
}

func fieldList(fields []string) string {
	if len(fields) == 0 {
		return "(none)"
	}
	return strings.Join(fields, ", ")
}
