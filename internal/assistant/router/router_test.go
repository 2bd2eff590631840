package router

import (
	"context"
	"errors"
	"testing"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docsmith-core/server/internal/assistant/model"
)

// fakeInvoker returns a canned routing decision.
type fakeInvoker struct {
	resp  *schema.Message
	err   error
	tools []*schema.ToolInfo
}

func (f *fakeInvoker) Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error) {
	return f.resp, f.err
}

func (f *fakeInvoker) Stream(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not used")
}

func (f *fakeInvoker) WithTools(tools []*schema.ToolInfo) (einomodel.ToolCallingChatModel, error) {
	f.tools = tools
	return f, nil
}

func toolCallMsg(name, arguments string) *schema.Message {
	msg := schema.AssistantMessage("", []schema.ToolCall{
		{Function: schema.FunctionCall{Name: name, Arguments: arguments}},
	})
	return msg
}

func newTestRouter(t *testing.T, inv *fakeInvoker) *Router {
	t.Helper()
	r, err := New(inv, model.RouterModelConfig{HistoryTurns: 3})
	require.NoError(t, err)
	return r
}

func TestNewBindsAllIntentSchemas(t *testing.T) {
	inv := &fakeInvoker{}
	newTestRouter(t, inv)

	require.Len(t, inv.tools, 4)
	names := map[string]bool{}
	for _, ti := range inv.tools {
		names[ti.Name] = true
	}
	assert.True(t, names[string(model.ToolFillTemplate)])
	assert.True(t, names[string(model.ToolCreateDocument)])
	assert.True(t, names[string(model.ToolReadDocument)])
	assert.True(t, names[string(model.ToolGeneralChat)])
}

func TestRouteFillTemplate(t *testing.T) {
	inv := &fakeInvoker{resp: toolCallMsg("FillTemplate",
		`{"template_name":"report.docx","topic":"Acme Corp"}`)}
	r := newTestRouter(t, inv)

	call := r.Route(context.Background(), "Use the template 'report.docx' for Acme Corp", nil, false)
	require.Equal(t, model.ToolFillTemplate, call.Tool)
	require.NotNil(t, call.FillTemplate)
	assert.Equal(t, "report.docx", call.FillTemplate.TemplateName)
	assert.Contains(t, call.FillTemplate.Topic, "Acme")
}

func TestRouteFillTemplateRecoversNameFromPrompt(t *testing.T) {
	inv := &fakeInvoker{resp: toolCallMsg("FillTemplate", `{"topic":"Acme Corp"}`)}
	r := newTestRouter(t, inv)

	call := r.Route(context.Background(), `Fill in "contract.docx" for Acme`, nil, false)
	require.Equal(t, model.ToolFillTemplate, call.Tool)
	assert.Equal(t, "contract.docx", call.FillTemplate.TemplateName)
}

func TestRouteFillTemplateWithoutAnyNameFallsBack(t *testing.T) {
	inv := &fakeInvoker{resp: toolCallMsg("FillTemplate", `{"topic":"something"}`)}
	r := newTestRouter(t, inv)

	call := r.Route(context.Background(), "fill the usual template please", nil, false)
	assert.Equal(t, model.ToolGeneralChat, call.Tool)
}

func TestRouteCreateDocumentSpreadsheet(t *testing.T) {
	inv := &fakeInvoker{resp: toolCallMsg("CreateDocument",
		`{"topic":"quarterly sales","file_type":"xlsx"}`)}
	r := newTestRouter(t, inv)

	call := r.Route(context.Background(), "make me a spreadsheet of quarterly sales", nil, false)
	require.Equal(t, model.ToolCreateDocument, call.Tool)
	require.NotNil(t, call.CreateDocument)
	assert.Equal(t, "quarterly sales", call.CreateDocument.Topic)
	assert.Equal(t, "xlsx", call.CreateDocument.FileType)
}

func TestRouteCreateDocumentNormalizesFileType(t *testing.T) {
	inv := &fakeInvoker{resp: toolCallMsg("CreateDocument",
		`{"topic":"notes","file_type":"WORD"}`)}
	r := newTestRouter(t, inv)

	call := r.Route(context.Background(), "write me some notes", nil, false)
	require.Equal(t, model.ToolCreateDocument, call.Tool)
	assert.Equal(t, "docx", call.CreateDocument.FileType)
}

func TestRouteReadDocumentDefaultsQuestionToPrompt(t *testing.T) {
	inv := &fakeInvoker{resp: toolCallMsg("ReadDocument", `{}`)}
	r := newTestRouter(t, inv)

	call := r.Route(context.Background(), "what is the total in the file?", nil, true)
	require.Equal(t, model.ToolReadDocument, call.Tool)
	assert.Equal(t, "what is the total in the file?", call.ReadDocument.Question)
}

func TestRouteAcknowledgmentGoesToGeneralChat(t *testing.T) {
	inv := &fakeInvoker{resp: toolCallMsg("GeneralChat", `{"user_request":"thanks, got it"}`)}
	r := newTestRouter(t, inv)

	call := r.Route(context.Background(), "thanks, got it", nil, true)
	require.Equal(t, model.ToolGeneralChat, call.Tool)
	assert.Equal(t, "thanks, got it", call.GeneralChat.UserRequest)
}

func TestRouteTotality(t *testing.T) {
	cases := []struct {
		name string
		inv  *fakeInvoker
	}{
		{"invoker error", &fakeInvoker{err: errors.New("backend down")}},
		{"no tool selection", &fakeInvoker{resp: schema.AssistantMessage("just text", nil)}},
		{"nil response", &fakeInvoker{}},
		{"unknown tool", &fakeInvoker{resp: toolCallMsg("DeleteEverything", `{}`)}},
		{"undecodable arguments", &fakeInvoker{resp: toolCallMsg("CreateDocument", `not json`)}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newTestRouter(t, tc.inv)
			call := r.Route(context.Background(), "some prompt", nil, false)
			require.NotNil(t, call)
			require.Equal(t, model.ToolGeneralChat, call.Tool)
			require.NotNil(t, call.GeneralChat)
			assert.Equal(t, "some prompt", call.GeneralChat.UserRequest)
		})
	}
}

func TestRouteTotalityOnEmptyPrompt(t *testing.T) {
	inv := &fakeInvoker{resp: schema.AssistantMessage("", nil)}
	r := newTestRouter(t, inv)

	call := r.Route(context.Background(), "", nil, false)
	require.NotNil(t, call)
	assert.Equal(t, model.ToolGeneralChat, call.Tool)
}

func TestHistoryBlock(t *testing.T) {
	history := []*schema.Message{
		schema.UserMessage("first"),
		schema.AssistantMessage("second", nil),
		schema.UserMessage("third"),
		schema.AssistantMessage("fourth", nil),
	}

	block := historyBlock(history, 2)
	assert.NotContains(t, block, "first")
	assert.NotContains(t, block, "second")
	assert.Contains(t, block, "UserMessage(third)")
	assert.Contains(t, block, "AssistantMessage(fourth)")

	assert.Equal(t, "(no prior messages)", historyBlock(nil, 3))
}
