package services

import (
	"time"

	"github.com/tbourn/go-chat-gateway/internal/domain"
)

// SenderInfo is the display info attached to pushed messages.
type SenderInfo struct {
	ID          string `json:"id"`
	Username    string `json:"username,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// MessageView is a persisted message enriched with its sender.
type MessageView struct {
	domain.Message
	Sender SenderInfo `json:"sender"`
}

// MessageDelivered tells the sender that a peer received the message.
type MessageDelivered struct {
	MessageID      string               `json:"message_id"`
	ConversationID string               `json:"conversation_id"`
	Status         domain.MessageStatus `json:"status"`
}

// MessagesRead tells participants that ReadBy has read the conversation.
type MessagesRead struct {
	ConversationID string `json:"conversation_id"`
	ReadBy         string `json:"read_by"`
}

// FriendStatusChange is pushed to online friends on presence changes.
type FriendStatusChange struct {
	UserID string                `json:"user_id"`
	Status domain.ActivityStatus `json:"status"`
}

// ReactionAdded is pushed to online participants when a reaction lands.
type ReactionAdded struct {
	TargetID     string              `json:"target_id"`
	TargetType   domain.TargetType   `json:"target_type"`
	ReactionType domain.ReactionType `json:"reaction_type"`
	UserID       string              `json:"user_id"`
}

// NotificationPush is the real-time copy of a dispatched notification.
type NotificationPush struct {
	Type       domain.NotificationType `json:"type"`
	Title      string                  `json:"title"`
	Message    string                  `json:"message"`
	TargetID   *string                 `json:"target_id,omitempty"`
	TargetType *string                 `json:"target_type,omitempty"`
	SenderID   string                  `json:"sender_id,omitempty"`
	CreatedAt  time.Time               `json:"created_at"`
}
