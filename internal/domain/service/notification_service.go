package service

import (
	"context"

	"tidyhome/internal/domain/entity"
)

// ConversationContext describes the conversation a notification is about.
type ConversationContext struct {
	ConversationID string
	SenderName     string
	CustomerName   string
	CustomerEmail  string
}

// MessageNotifier tells the counterpart of a conversation that a message arrived.
// Callers treat it as best effort.
type MessageNotifier interface {
	NotifyCounterpartOfMessage(ctx context.Context, recipient entity.Role, conv ConversationContext, text string) error
}
