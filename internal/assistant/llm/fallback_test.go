package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

type fakeBackend struct {
	resp  *schema.Message
	err   error
	calls int
	tools []*schema.ToolInfo
}

func (f *fakeBackend) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	f.calls++
	return f.resp, f.err
}

func (f *fakeBackend) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	sr, sw := schema.Pipe[*schema.Message](1)
	sw.Send(f.resp, nil)
	sw.Close()
	return sr, nil
}

func (f *fakeBackend) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	f.tools = tools
	return f, nil
}

func assistantMsg(content string) *schema.Message {
	return schema.AssistantMessage(content, nil)
}

func TestNewFallbackValidation(t *testing.T) {
	_, err := NewFallback(nil, nil)
	assert.Error(t, err)

	_, err = NewFallback([]string{"a", "b"}, []model.ToolCallingChatModel{&fakeBackend{}})
	assert.Error(t, err)
}

func TestGenerateAdvancesPastRecoverableFailure(t *testing.T) {
	lite := &fakeBackend{err: genai.APIError{Code: 429, Message: "quota exhausted"}}
	pro := &fakeBackend{resp: assistantMsg("from pro")}
	third := &fakeBackend{resp: assistantMsg("never reached")}

	f, err := NewFallback(
		[]string{"gemini-lite", "gemini-pro", "gemini-ultra"},
		[]model.ToolCallingChatModel{lite, pro, third},
	)
	require.NoError(t, err)

	out, err := f.Generate(context.Background(), []*schema.Message{schema.UserMessage("hi")})
	require.NoError(t, err)
	assert.Equal(t, "from pro", out.Content)
	assert.Equal(t, 1, lite.calls)
	assert.Equal(t, 1, pro.calls)
	assert.Equal(t, 0, third.calls, "later backends must not run once one succeeds")
}

func TestGenerateAbortsOnSafetyBlock(t *testing.T) {
	blocked := assistantMsg("")
	blocked.ResponseMeta = &schema.ResponseMeta{FinishReason: string(genai.FinishReasonSafety)}

	first := &fakeBackend{resp: blocked}
	second := &fakeBackend{resp: assistantMsg("should not run")}

	f, err := NewFallback([]string{"a", "b"}, []model.ToolCallingChatModel{first, second})
	require.NoError(t, err)

	_, err = f.Generate(context.Background(), []*schema.Message{schema.UserMessage("hi")})
	require.ErrorIs(t, err, ErrSafetyBlocked)
	assert.Equal(t, 0, second.calls, "a safety block must not be retried on another backend")
}

func TestGenerateAbortsOnNonRecoverableError(t *testing.T) {
	hard := errors.New("invalid request payload")
	first := &fakeBackend{err: hard}
	second := &fakeBackend{resp: assistantMsg("should not run")}

	f, err := NewFallback([]string{"a", "b"}, []model.ToolCallingChatModel{first, second})
	require.NoError(t, err)

	_, err = f.Generate(context.Background(), []*schema.Message{schema.UserMessage("hi")})
	require.ErrorIs(t, err, hard)
	assert.Equal(t, 0, second.calls)
}

func TestGenerateExhaustionReturnsLastRecoverableError(t *testing.T) {
	first := &fakeBackend{err: genai.APIError{Code: 503, Message: "unavailable"}}
	lastErr := genai.APIError{Code: 429, Message: "quota"}
	second := &fakeBackend{err: lastErr}

	f, err := NewFallback([]string{"a", "b"}, []model.ToolCallingChatModel{first, second})
	require.NoError(t, err)

	_, err = f.Generate(context.Background(), []*schema.Message{schema.UserMessage("hi")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all fallback models failed")

	var apiErr genai.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 429, apiErr.Code)
}

func TestWithToolsBindsEveryBackend(t *testing.T) {
	first := &fakeBackend{resp: assistantMsg("a")}
	second := &fakeBackend{resp: assistantMsg("b")}

	f, err := NewFallback([]string{"a", "b"}, []model.ToolCallingChatModel{first, second})
	require.NoError(t, err)

	tools := []*schema.ToolInfo{{Name: "FillTemplate"}}
	bound, err := f.WithTools(tools)
	require.NoError(t, err)
	require.NotNil(t, bound)

	assert.Len(t, first.tools, 1)
	assert.Len(t, second.tools, 1)
	assert.Equal(t, "FillTemplate", first.tools[0].Name)
	assert.Equal(t, "FillTemplate", second.tools[0].Name)
}

func TestIsRecoverable(t *testing.T) {
	assert.True(t, IsRecoverable(genai.APIError{Code: 429}))
	assert.True(t, IsRecoverable(genai.APIError{Code: 500}))
	assert.True(t, IsRecoverable(genai.APIError{Code: 503}))
	assert.True(t, IsRecoverable(genai.APIError{Code: 504}))
	assert.True(t, IsRecoverable(context.DeadlineExceeded))

	assert.False(t, IsRecoverable(nil))
	assert.False(t, IsRecoverable(genai.APIError{Code: 400}))
	assert.False(t, IsRecoverable(ErrSafetyBlocked))
	assert.False(t, IsRecoverable(errors.New("some other failure")))
}
