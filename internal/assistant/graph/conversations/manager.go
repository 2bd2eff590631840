package conversations

import (
	"context"

	"github.com/cloudwego/eino/schema"

	"github.com/docsmith-core/server/internal/assistant/model"
)

// MessagesManager mediates every graph access to the conversation log. It
// records user turns before routing and persists exactly one assistant turn
// per run, threading document references through message Extra metadata.
type MessagesManager struct {
	conversationRepo model.ConversationRepository
	chatMaxTurns     int
}

func NewMessagesManager(conversationRepo model.ConversationRepository, config model.ConversationConfig) *MessagesManager {
	return &MessagesManager{
		conversationRepo: conversationRepo,
		chatMaxTurns:     config.Chat.MaxTurns,
	}
}

// RecordUserMessage appends the user's turn to the log. When the turn carries
// an attached document, its reference is kept in the message metadata so later
// turns can still resolve "the file I sent earlier".
func (cm *MessagesManager) RecordUserMessage(ctx context.Context, conversationID, prompt, inputDocumentID string) error {
	msg := schema.UserMessage(prompt)
	if inputDocumentID != "" {
		msg.Extra = map[string]any{model.ExtraInputDocumentID: inputDocumentID}
	}
	return cm.conversationRepo.AddMessage(ctx, conversationID, msg)
}

// RecentHistory returns the last turns of the conversation, oldest first,
// bounded by the configured window.
func (cm *MessagesManager) RecentHistory(ctx context.Context, conversationID string) ([]*schema.Message, error) {
	history, err := cm.conversationRepo.LoadHistory(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	return trimTail(history.Messages, cm.chatMaxTurns), nil
}

// BuildChatContext assembles the message list for a conversational model
// call: system prompt first, then the recent history.
func (cm *MessagesManager) BuildChatContext(ctx context.Context, conversationID, systemPrompt string) ([]*schema.Message, error) {
	recent, err := cm.RecentHistory(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	messages := make([]*schema.Message, 0, len(recent)+1)
	messages = append(messages, schema.SystemMessage(systemPrompt))
	messages = append(messages, recent...)
	return messages, nil
}

// SaveAssistantResponse appends the assistant's turn. A non-empty
// generatedDocumentID marks the turn that produced a document.
func (cm *MessagesManager) SaveAssistantResponse(ctx context.Context, conversationID, content, generatedDocumentID string) error {
	msg := schema.AssistantMessage(content, nil)
	if generatedDocumentID != "" {
		msg.Extra = map[string]any{model.ExtraGeneratedDocumentID: generatedDocumentID}
	}
	return cm.conversationRepo.AddMessage(ctx, conversationID, msg)
}

// LatestInputDocumentID walks the history backwards for the most recent user
// turn that attached a document. Empty when none exists.
func (cm *MessagesManager) LatestInputDocumentID(ctx context.Context, conversationID string) (string, error) {
	history, err := cm.conversationRepo.LoadHistory(ctx, conversationID)
	if err != nil {
		return "", err
	}
	for i := len(history.Messages) - 1; i >= 0; i-- {
		msg := history.Messages[i]
		if msg == nil || msg.Role != schema.User || msg.Extra == nil {
			continue
		}
		if ref, ok := msg.Extra[model.ExtraInputDocumentID].(string); ok && ref != "" {
			return ref, nil
		}
	}
	return "", nil
}

func trimTail(messages []*schema.Message, maxTurns int) []*schema.Message {
	if maxTurns <= 0 || len(messages) <= maxTurns {
		result := make([]*schema.Message, len(messages))
		copy(result, messages)
		return result
	}
	source := messages[len(messages)-maxTurns:]
	result := make([]*schema.Message, len(source))
	copy(result, source)
	return result
}
