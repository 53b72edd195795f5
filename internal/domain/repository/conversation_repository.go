package repository

import (
	"context"
	"errors"

	"tidyhome/internal/domain/entity"
)

// ErrFeedClosed is returned by a feed's Next after Stop or once its context ends.
var ErrFeedClosed = errors.New("feed closed")

// MessageFeed is a live, ascending-by-createdAt view of a conversation.
// Next blocks until the next full snapshot is available.
type MessageFeed interface {
	Next() ([]*entity.Message, error)
	Stop()
}

// ReadReceiptFeed delivers the receipt document each time it changes.
// A nil receipt means the role has never read the conversation.
type ReadReceiptFeed interface {
	Next() (*entity.ReadReceipt, error)
	Stop()
}

type ConversationRepository interface {
	// AppendMessage stores msg with a store-assigned createdAt and returns its id.
	AppendMessage(ctx context.Context, msg *entity.Message) (string, error)
	ListMessages(ctx context.Context, conversationID string) ([]*entity.Message, error)
	SubscribeMessages(ctx context.Context, conversationID string) (MessageFeed, error)

	// IncrementUnread atomically adds n to role's counter field, creating the record if absent.
	IncrementUnread(ctx context.Context, conversationID string, role entity.Role, n int64) error
	ResetUnread(ctx context.Context, conversationID string, role entity.Role) error
	GetUnreadCounter(ctx context.Context, conversationID string) (*entity.UnreadCounter, error)
}

type ReadReceiptRepository interface {
	// MarkRead sets lastReadAt to the store's current time.
	MarkRead(ctx context.Context, conversationID string, role entity.Role) error
	// GetReadReceipt returns nil, nil when the role has never read the conversation.
	GetReadReceipt(ctx context.Context, conversationID string, role entity.Role) (*entity.ReadReceipt, error)
	SubscribeReadReceipt(ctx context.Context, conversationID string, role entity.Role) (ReadReceiptFeed, error)
}
