package nodes

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/compose"

	"github.com/docsmith-core/server/internal/assistant/graph/conversations"
	"github.com/docsmith-core/server/internal/assistant/model"
	errx "github.com/docsmith-core/server/internal/core/error"
	logx "github.com/docsmith-core/server/pkg/logger"
)

// NewFinalResponderNode converges every flow outcome into the answer
// contract. A flow that already finalized its response passes through; a tool
// result is translated here, the single place machine codes become prose.
func NewFinalResponderNode(registry model.TemplateRegistry) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, outcome *model.FlowOutcome) (*model.Answer, error) {
		if outcome == nil {
			return nil, fmt.Errorf("flow outcome is nil")
		}
		if outcome.FinalResponse != "" {
			return &model.Answer{FinalResponse: outcome.FinalResponse}, nil
		}

		out := outcome.ToolOutput
		if out == nil {
			return nil, fmt.Errorf("flow produced neither a final response nor a tool output")
		}

		if out.Status == model.StatusSuccess {
			resp := out.Message
			if resp == "" {
				resp = "Done."
			}
			return &model.Answer{
				FinalResponse:       resp,
				GeneratedDocumentID: out.DocumentID(),
			}, nil
		}

		return &model.Answer{FinalResponse: userFacingError(ctx, out, registry)}, nil
	})
}

// userFacingError turns an error tool response into plain language. A missing
// template is enriched with the live template list so the user has an
// actionable next step.
func userFacingError(ctx context.Context, out *model.ToolResponse, registry model.TemplateRegistry) string {
	msg := out.Message
	if msg == "" {
		msg = "Something went wrong while handling your request."
	}

	switch out.ErrorCode {
	case errx.CodeTemplateNotFound:
		names, err := registry.List(ctx)
		if err != nil {
			logx.Warn().Err(err).Msg("template listing failed while building error response")
			return msg + " I also couldn't retrieve the list of available templates right now."
		}
		if len(names) == 0 {
			return msg + " There are no templates registered at the moment."
		}
		return fmt.Sprintf("%s The available templates are: %s.", msg, strings.Join(names, ", "))
	case errx.CodeDocumentNotFound, errx.CodeInvalidReference:
		return msg + " Please check the document reference and try again."
	case errx.CodePermissionDenied:
		return msg + " You don't have access to that document."
	case errx.CodeStorageError:
		return msg + " The storage backend is having trouble; please try again shortly."
	case errx.CodeValidationError:
		return msg
	default:
		return msg + " Please try rephrasing your request."
	}
}

// NewFinalResponderPostHandler persists exactly one assistant message per
// invocation and mirrors the terminal outputs into state.
func NewFinalResponderPostHandler(mm *conversations.MessagesManager) func(context.Context, *model.Answer, *model.AppState) (*model.Answer, error) {
	return func(ctx context.Context, out *model.Answer, s *model.AppState) (*model.Answer, error) {
		if out == nil {
			return nil, fmt.Errorf("answer is nil")
		}
		if out.FinalResponse == "" {
			out.FinalResponse = "I wasn't able to complete that request."
		}
		s.FinalResponse = out.FinalResponse
		s.GeneratedDocumentID = out.GeneratedDocumentID

		if err := mm.SaveAssistantResponse(ctx, s.ConversationID, out.FinalResponse, out.GeneratedDocumentID); err != nil {
			logx.Error().Err(err).Str("conversation_id", s.ConversationID).Msg("failed to save assistant response")
			// the user still gets the answer; the log entry is the record
		}
		return out, nil
	}
}
