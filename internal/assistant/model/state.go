package model

import (
	"github.com/cloudwego/eino/schema"
)

// AppState stores per-invocation execution state for the Eino graph.
// Concurrency model:
//   - Registered as Graph Local State via compose.WithGenLocalState; one
//     instance per in-flight request, never shared between requests.
//   - All reads/writes happen only inside Eino state handlers
//     (WithStatePreHandler, WithStatePostHandler, compose.ProcessState),
//     which Eino serializes, so no mutex is required.
type AppState struct {
	UserID          string
	ConversationID  string
	Prompt          string
	InputDocumentID string

	History []*schema.Message // chronological, loaded once at entry

	RoutedCall *RoutedCall // set by the router post-handler, read by flows

	FinalResponse       string
	GeneratedDocumentID string
}

// QueryInput is the public input of one orchestration run.
type QueryInput struct {
	UserID          string `json:"user_id"`
	ConversationID  string `json:"conversation_id"`
	Prompt          string `json:"prompt"`
	InputDocumentID string `json:"input_document_id,omitempty"`
}

// HasAttachment reports whether the user attached a document to this turn.
func (q QueryInput) HasAttachment() bool {
	return q.InputDocumentID != ""
}

// Answer is the sole output contract the orchestration returns to its caller.
type Answer struct {
	FinalResponse       string `json:"final_response"`
	GeneratedDocumentID string `json:"generated_document_id,omitempty"`
}

// FlowOutcome is what every flow node hands to the final responder: either a
// structured tool result to be translated, or an already-final response.
type FlowOutcome struct {
	ToolOutput    *ToolResponse
	FinalResponse string
}
