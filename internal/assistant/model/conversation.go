package model

import (
	"context"

	"github.com/cloudwego/eino/schema"
)

// ConversationRepository is the append-only message log per conversation.
// Messages are read back in chronological order.
type ConversationRepository interface {
	// AddMessage appends a message to the conversation history.
	AddMessage(ctx context.Context, conversationID string, message *schema.Message) error

	// LoadHistory retrieves the full conversation history, oldest first.
	LoadHistory(ctx context.Context, conversationID string) (*ConversationHistory, error)

	// ClearHistory removes all conversation history for a conversation.
	ClearHistory(ctx context.Context, conversationID string) error

	// GetMessageCount returns the number of messages in the conversation.
	GetMessageCount(ctx context.Context, conversationID string) (int, error)
}

// ConversationHistory represents loaded conversation data with metadata.
type ConversationHistory struct {
	ConversationID string
	Messages       []*schema.Message
}

// Message Extra keys used to thread document references through the log.
const (
	ExtraInputDocumentID     = "input_document_id"
	ExtraGeneratedDocumentID = "generated_document_id"
)
