package entity

import "time"

// UnreadCounter is the legacy per-conversation counter pair.
type UnreadCounter struct {
	ConversationID   string `json:"conversation_id" firestore:"-"`
	UnreadByAdmin    int64  `json:"unread_by_admin" firestore:"unreadByAdmin"`
	UnreadByCustomer int64  `json:"unread_by_customer" firestore:"unreadByCustomer"`
}

func (c *UnreadCounter) For(role Role) int64 {
	switch role {
	case RoleAdmin:
		return c.UnreadByAdmin
	case RoleCustomer:
		return c.UnreadByCustomer
	}
	return 0
}

// ReadReceipt records when a role last read a conversation.
type ReadReceipt struct {
	ConversationID string    `json:"conversation_id" firestore:"-"`
	Role           Role      `json:"role" firestore:"-"`
	LastReadAt     time.Time `json:"last_read_at" firestore:"lastReadAt"`
}
