package entity

import "time"

// Message is immutable once the store has accepted it.
type Message struct {
	ID             string    `json:"id" firestore:"-"`
	ConversationID string    `json:"conversation_id" firestore:"conversationId"`
	Text           string    `json:"text" firestore:"text"`
	Sender         Role      `json:"sender" firestore:"sender"`
	SenderName     string    `json:"sender_name" firestore:"senderName"`
	SenderPhoto    string    `json:"sender_photo,omitempty" firestore:"senderPhoto,omitempty"`
	CreatedAt      time.Time `json:"created_at" firestore:"createdAt,serverTimestamp"`
}
