package graph

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docsmith-core/server/internal/assistant/docgen"
	"github.com/docsmith-core/server/internal/assistant/graph/conversations"
	"github.com/docsmith-core/server/internal/assistant/graph/nodes"
	"github.com/docsmith-core/server/internal/assistant/model"
	"github.com/docsmith-core/server/internal/assistant/reader"
	"github.com/docsmith-core/server/internal/assistant/repo"
	"github.com/docsmith-core/server/internal/assistant/router"
	errx "github.com/docsmith-core/server/internal/core/error"
)

// routeInvoker always selects one canned tool call.
type routeInvoker struct {
	toolName string
	argsJSON string
}

func (f *routeInvoker) Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error) {
	if f.toolName == "" {
		return schema.AssistantMessage("no selection", nil), nil
	}
	return schema.AssistantMessage("", []schema.ToolCall{
		{Function: schema.FunctionCall{Name: f.toolName, Arguments: f.argsJSON}},
	}), nil
}

func (f *routeInvoker) Stream(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, fmt.Errorf("not used")
}

func (f *routeInvoker) WithTools(tools []*schema.ToolInfo) (einomodel.ToolCallingChatModel, error) {
	return f, nil
}

// contentLLM answers flow prompts by inspecting the system message.
type contentLLM struct {
	fillJSON string
	body     string
	filename string
	chat     string
}

func (f *contentLLM) Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error) {
	sys := ""
	if len(input) > 0 && input[0] != nil {
		sys = input[0].Content
	}
	switch {
	case strings.Contains(sys, "Suggest a file name"):
		return schema.AssistantMessage(f.filename, nil), nil
	case strings.Contains(sys, "fill the document template"):
		return schema.AssistantMessage(f.fillJSON, nil), nil
	case strings.Contains(sys, "complete textual content"):
		return schema.AssistantMessage(f.body, nil), nil
	default:
		return schema.AssistantMessage(f.chat, nil), nil
	}
}

func (f *contentLLM) Stream(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, fmt.Errorf("not used")
}

type testEnv struct {
	runnable compose.Runnable[model.QueryInput, *model.Answer]
	store    *repo.RedisDocumentStore
	registry *repo.RedisTemplateRegistry
	convRepo *repo.RedisConversationRepository
}

func newTestEnv(t *testing.T, route *routeInvoker, llm *contentLLM) *testEnv {
	return newTestEnvWith(t, route, llm, nil)
}

// newTestEnvWith lets a test interpose on the conversation repository while the
// assertion helpers keep reading through the real one.
func newTestEnvWith(t *testing.T, route *routeInvoker, llm *contentLLM, wrapRepo func(model.ConversationRepository) model.ConversationRepository) *testEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	store := repo.NewRedisDocumentStore(rdb)
	registry := repo.NewRedisTemplateRegistry(rdb, store)
	convRepo := repo.NewRedisConversationRepository(rdb, time.Hour)

	var cr model.ConversationRepository = convRepo
	if wrapRepo != nil {
		cr = wrapRepo(convRepo)
	}

	rt, err := router.New(route, model.RouterModelConfig{HistoryTurns: 3})
	require.NoError(t, err)

	var convCfg model.ConversationConfig
	convCfg.Chat.MaxTurns = 20
	mm := conversations.NewMessagesManager(cr, convCfg)

	runnable, err := BuildGraph(context.Background(), &GraphConfig{
		Router:          rt,
		MessagesManager: mm,
		Registry:        registry,
		Flows: nodes.FlowDeps{
			Messages:  mm,
			LLM:       llm,
			Registry:  registry,
			Store:     store,
			Reader:    reader.New(store),
			Generator: docgen.New(),
		},
	})
	require.NoError(t, err)

	return &testEnv{runnable: runnable, store: store, registry: registry, convRepo: convRepo}
}

func templateDocx(t *testing.T, body string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(`<w:document><w:body><w:p><w:r><w:t>` + body + `</w:t></w:r></w:p></w:body></w:document>`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// assertOneAssistantTurn checks the invariant that exactly one assistant
// message is persisted per invocation.
func assertOneAssistantTurn(t *testing.T, env *testEnv, conversationID, expected string) {
	t.Helper()
	history, err := env.convRepo.LoadHistory(context.Background(), conversationID)
	require.NoError(t, err)

	var assistantMsgs []*schema.Message
	for _, msg := range history.Messages {
		if msg.Role == schema.Assistant {
			assistantMsgs = append(assistantMsgs, msg)
		}
	}
	require.Len(t, assistantMsgs, 1)
	assert.Equal(t, expected, assistantMsgs[0].Content)
}

func TestGeneralChatFlow(t *testing.T) {
	route := &routeInvoker{toolName: "GeneralChat", argsJSON: `{"user_request":"hello!"}`}
	llm := &contentLLM{chat: "Hi! I can fill templates, create documents and read files for you."}
	env := newTestEnv(t, route, llm)

	answer, err := env.runnable.Invoke(context.Background(), model.QueryInput{
		UserID:         "u1",
		ConversationID: "conv-chat",
		Prompt:         "hello!",
	})
	require.NoError(t, err)
	assert.Equal(t, llm.chat, answer.FinalResponse)
	assert.Empty(t, answer.GeneratedDocumentID)
	assertOneAssistantTurn(t, env, "conv-chat", answer.FinalResponse)
}

func TestGeneralChatTemplateListingShortCircuit(t *testing.T) {
	route := &routeInvoker{toolName: "GeneralChat", argsJSON: `{"user_request":"what templates do you have?"}`}
	llm := &contentLLM{chat: "should not be used"}
	env := newTestEnv(t, route, llm)

	_, err := env.registry.Register(context.Background(), "report.docx", templateDocx(t, "{{ title }}"))
	require.NoError(t, err)

	answer, err := env.runnable.Invoke(context.Background(), model.QueryInput{
		UserID:         "u1",
		ConversationID: "conv-list",
		Prompt:         "what templates do you have?",
	})
	require.NoError(t, err)
	assert.Contains(t, answer.FinalResponse, "report.docx")
	assert.NotEqual(t, llm.chat, answer.FinalResponse)
}

func TestFillTemplateFlow(t *testing.T) {
	route := &routeInvoker{
		toolName: "FillTemplate",
		argsJSON: `{"template_name":"report.docx","topic":"Acme Corp"}`,
	}
	llm := &contentLLM{
		// sections omitted on purpose: the collection must coerce to empty
		fillJSON: `{"content":{"title":"Acme Report"},"filename":"acme_report.docx"}`,
	}
	env := newTestEnv(t, route, llm)

	tmpl := templateDocx(t, "{{ title }}{% for s in sections %}[{{ s.heading }}]{% endfor %}")
	_, err := env.registry.Register(context.Background(), "report.docx", tmpl)
	require.NoError(t, err)

	answer, err := env.runnable.Invoke(context.Background(), model.QueryInput{
		UserID:         "u1",
		ConversationID: "conv-fill",
		Prompt:         "Use the template 'report.docx' for Acme Corp",
	})
	require.NoError(t, err)
	require.NotEmpty(t, answer.GeneratedDocumentID)
	assert.Contains(t, answer.FinalResponse, "acme_report.docx")

	content, meta, err := env.store.Get(context.Background(), answer.GeneratedDocumentID)
	require.NoError(t, err)
	assert.Equal(t, "acme_report.docx", meta.Filename)
	assert.Contains(t, string(content), "word/document.xml")
}

func TestFillTemplateZeroFieldsSkipsGeneration(t *testing.T) {
	route := &routeInvoker{
		toolName: "FillTemplate",
		argsJSON: `{"template_name":"static.docx","topic":"anything"}`,
	}
	// fillJSON left empty: a content call would fail the flow
	llm := &contentLLM{fillJSON: "not json"}
	env := newTestEnv(t, route, llm)

	_, err := env.registry.Register(context.Background(), "static.docx",
		templateDocx(t, "No placeholders here."))
	require.NoError(t, err)

	answer, err := env.runnable.Invoke(context.Background(), model.QueryInput{
		UserID:         "u1",
		ConversationID: "conv-static",
		Prompt:         "fill static.docx",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, answer.GeneratedDocumentID)
}

func TestFillTemplateMissingTemplateListsAlternatives(t *testing.T) {
	route := &routeInvoker{
		toolName: "FillTemplate",
		argsJSON: `{"template_name":"missing.docx","topic":"whatever"}`,
	}
	env := newTestEnv(t, route, &contentLLM{})

	_, err := env.registry.Register(context.Background(), "report.docx", templateDocx(t, "{{ title }}"))
	require.NoError(t, err)
	_, err = env.registry.Register(context.Background(), "invoice.docx", templateDocx(t, "{{ total }}"))
	require.NoError(t, err)

	answer, err := env.runnable.Invoke(context.Background(), model.QueryInput{
		UserID:         "u1",
		ConversationID: "conv-missing",
		Prompt:         "use missing.docx",
	})
	require.NoError(t, err)
	assert.Empty(t, answer.GeneratedDocumentID)
	assert.Contains(t, answer.FinalResponse, "report.docx")
	assert.Contains(t, answer.FinalResponse, "invoice.docx")
	assertOneAssistantTurn(t, env, "conv-missing", answer.FinalResponse)
}

func TestCreateDocumentFlow(t *testing.T) {
	route := &routeInvoker{
		toolName: "CreateDocument",
		argsJSON: `{"topic":"quarterly sales","file_type":"xlsx"}`,
	}
	llm := &contentLLM{
		body:     "Quarter;Revenue\nQ1;1200\nQ2;1350",
		filename: "quarterly_sales.xlsx",
	}
	env := newTestEnv(t, route, llm)

	answer, err := env.runnable.Invoke(context.Background(), model.QueryInput{
		UserID:         "u1",
		ConversationID: "conv-create",
		Prompt:         "make me a spreadsheet of quarterly sales",
	})
	require.NoError(t, err)
	require.NotEmpty(t, answer.GeneratedDocumentID)
	assert.Contains(t, answer.FinalResponse, "quarterly_sales.xlsx")

	content, meta, err := env.store.Get(context.Background(), answer.GeneratedDocumentID)
	require.NoError(t, err)
	assert.Equal(t, "quarterly_sales.xlsx", meta.Filename)
	assert.NotEmpty(t, content)
}

func TestReadDocumentFlow(t *testing.T) {
	route := &routeInvoker{
		toolName: "ReadDocument",
		argsJSON: `{"question":"what is the total?"}`,
	}
	llm := &contentLLM{chat: "The total is 42."}
	env := newTestEnv(t, route, llm)

	stored, err := env.store.Put(context.Background(), []byte("item a: 20\nitem b: 22\ntotal: 42"), "totals.txt", "u1")
	require.NoError(t, err)

	answer, err := env.runnable.Invoke(context.Background(), model.QueryInput{
		UserID:          "u1",
		ConversationID:  "conv-read",
		Prompt:          "what is the total?",
		InputDocumentID: stored.FileRef,
	})
	require.NoError(t, err)
	assert.Equal(t, "The total is 42.", answer.FinalResponse)
	assert.Empty(t, answer.GeneratedDocumentID)
}

func TestReadDocumentWithoutAttachment(t *testing.T) {
	route := &routeInvoker{
		toolName: "ReadDocument",
		argsJSON: `{"question":"what does it say?"}`,
	}
	env := newTestEnv(t, route, &contentLLM{chat: "unused"})

	answer, err := env.runnable.Invoke(context.Background(), model.QueryInput{
		UserID:         "u1",
		ConversationID: "conv-noattach",
		Prompt:         "what does it say?",
	})
	require.NoError(t, err)
	assert.Contains(t, answer.FinalResponse, "attach")
	assert.Empty(t, answer.GeneratedDocumentID)
}

// outageConversationRepo delegates to a real repository but fails every
// history load after the first one, simulating a storage outage that hits a
// flow node after the router has already read the log.
type outageConversationRepo struct {
	model.ConversationRepository
	loads int
}

func (f *outageConversationRepo) LoadHistory(ctx context.Context, conversationID string) (*model.ConversationHistory, error) {
	f.loads++
	if f.loads > 1 {
		return nil, errx.WrapRedis(fmt.Errorf("connection refused"))
	}
	return f.ConversationRepository.LoadHistory(ctx, conversationID)
}

func TestConversationStoreFailureStillAnswers(t *testing.T) {
	cases := []struct {
		name     string
		route    *routeInvoker
		expected string
	}{
		{
			"general chat history load fails",
			&routeInvoker{toolName: "GeneralChat", argsJSON: `{"user_request":"hi"}`},
			"conversation history",
		},
		{
			"read document attachment lookup fails",
			&routeInvoker{toolName: "ReadDocument", argsJSON: `{"question":"q"}`},
			"attached document",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnvWith(t, tc.route, &contentLLM{chat: "unused"},
				func(inner model.ConversationRepository) model.ConversationRepository {
					return &outageConversationRepo{ConversationRepository: inner}
				})

			answer, err := env.runnable.Invoke(context.Background(), model.QueryInput{
				UserID:         "u1",
				ConversationID: "conv-outage",
				Prompt:         "hi",
			})
			require.NoError(t, err)
			require.NotNil(t, answer)
			assert.Contains(t, answer.FinalResponse, tc.expected)
			assert.Contains(t, answer.FinalResponse, "storage backend")
			assertOneAssistantTurn(t, env, "conv-outage", answer.FinalResponse)
		})
	}
}

func TestTerminalConvergence(t *testing.T) {
	// every intent reaches the final responder with a non-empty response
	cases := []struct {
		name  string
		route *routeInvoker
	}{
		{"general chat", &routeInvoker{toolName: "GeneralChat", argsJSON: `{"user_request":"hi"}`}},
		{"fill template (missing)", &routeInvoker{toolName: "FillTemplate", argsJSON: `{"template_name":"none.docx"}`}},
		{"create document", &routeInvoker{toolName: "CreateDocument", argsJSON: `{"topic":"notes","file_type":"docx"}`}},
		{"read document (no attachment)", &routeInvoker{toolName: "ReadDocument", argsJSON: `{"question":"q"}`}},
		{"no tool selection", &routeInvoker{}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			llm := &contentLLM{chat: "a reply", body: "# Notes\n\nsome text", filename: "notes.docx"}
			env := newTestEnv(t, tc.route, llm)

			answer, err := env.runnable.Invoke(context.Background(), model.QueryInput{
				UserID:         "u1",
				ConversationID: "conv-term",
				Prompt:         "hi",
			})
			require.NoError(t, err)
			require.NotNil(t, answer)
			assert.NotEmpty(t, answer.FinalResponse)
			assertOneAssistantTurn(t, env, "conv-term", answer.FinalResponse)
		})
	}
}
