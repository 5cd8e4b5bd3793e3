// Package domain defines the persistence models for users, conversations,
// messages, notifications, friendships, and reactions. These types are mapped
// with GORM and form the core data layer of the messaging gateway.
package domain

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// User is the identity a verified principal resolves to. Only the fields the
// gateway needs for enrichment are modeled here; account management lives
// outside this service.
//
// Fields:
//   - ID: stable identifier carried in the bearer token.
//   - Username: unique handle.
//   - DisplayName / AvatarURL: sender info attached to pushed messages.
//   - Verified: verification level of the account.
type User struct {
	ID          string         `json:"id"           gorm:"type:varchar(64);primaryKey"`
	Username    string         `json:"username"     gorm:"type:varchar(64);not null;uniqueIndex"`
	DisplayName string         `json:"display_name" gorm:"type:varchar(128)"`
	AvatarURL   string         `json:"avatar_url,omitempty" gorm:"type:varchar(512)"`
	Verified    bool           `json:"verified"     gorm:"not null;default:false"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-"            gorm:"index"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// Conversation is a private or group thread. The participant set is stored
// inline as a JSON array so that a single read resolves the whole audience.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - Type: "private" or "group".
//   - Participants: user ids that belong to the conversation.
//   - LastMessage / LastMessageAt: advisory preview, last write wins.
type Conversation struct {
	ID            string                      `json:"id"              gorm:"type:char(36);primaryKey"`
	Type          ConversationType            `json:"type"            gorm:"type:varchar(16);not null;default:'private'"`
	Name          string                      `json:"name,omitempty"  gorm:"type:varchar(255)"`
	Participants  datatypes.JSONSlice[string] `json:"participants"`
	LastMessage   string                      `json:"last_message"    gorm:"type:text"`
	LastMessageAt *time.Time                  `json:"last_message_at,omitempty" gorm:"index"`
	CreatedAt     time.Time                   `json:"created_at"`
	UpdatedAt     time.Time                   `json:"updated_at"`
	DeletedAt     gorm.DeletedAt              `json:"-"               gorm:"index"`
}

// TableName returns the database table name for Conversation.
func (Conversation) TableName() string { return "conversations" }

// HasParticipant reports whether userID is a member of the conversation.
func (c *Conversation) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// Media is a reference to an uploaded asset attached to a message.
type Media struct {
	URL      string `json:"url"`
	Type     string `json:"type,omitempty"`
	Name     string `json:"name,omitempty"`
	Size     int64  `json:"size,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
}

// Message is one chat message within a conversation.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - ConversationID: owning conversation (indexed together with CreatedAt).
//   - SenderID: author; always taken from the authenticated session.
//   - Type: text, image, video, file, or audio.
//   - Medias: attached media references (JSON).
//   - ReplyTo: optional id of a message in the same conversation.
//   - Status: sent, delivered, or read; only ever advances.
type Message struct {
	ID             string                     `json:"id"              gorm:"type:char(36);primaryKey"`
	ConversationID string                     `json:"conversation_id" gorm:"type:char(36);not null;index:idx_conv_msgs,priority:1"`
	SenderID       string                     `json:"sender_id"       gorm:"type:varchar(64);not null;index"`
	Content        string                     `json:"content"         gorm:"type:text;not null"`
	Type           MessageType                `json:"type"            gorm:"type:varchar(16);not null;default:'text'"`
	Medias         datatypes.JSONSlice[Media] `json:"medias"`
	ReplyTo        *string                    `json:"reply_to,omitempty" gorm:"type:char(36)"`
	Edited         bool                       `json:"edited"          gorm:"not null;default:false"`
	Status         MessageStatus              `json:"status"          gorm:"type:varchar(16);not null;default:'sent';index;check:status IN ('sent','delivered','read')"`
	CreatedAt      time.Time                  `json:"created_at"      gorm:"index:idx_conv_msgs,priority:2"`
	UpdatedAt      time.Time                  `json:"updated_at"`
	DeletedAt      gorm.DeletedAt             `json:"-"               gorm:"index"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }

// Notification is a durable record that something happened for a user.
// Notifications are never created for an event whose recipient is also its
// sender.
type Notification struct {
	ID          string             `json:"id"           gorm:"type:char(36);primaryKey"`
	RecipientID string             `json:"recipient_id" gorm:"type:varchar(64);not null;index:idx_recipient_notifs,priority:1"`
	SenderID    string             `json:"sender_id,omitempty" gorm:"type:varchar(64)"`
	Type        NotificationType   `json:"type"         gorm:"type:varchar(32);not null"`
	Title       string             `json:"title"        gorm:"type:varchar(255);not null"`
	Message     string             `json:"message"      gorm:"type:text"`
	TargetID    *string            `json:"target_id,omitempty"   gorm:"type:varchar(64)"`
	TargetType  *string            `json:"target_type,omitempty" gorm:"type:varchar(32)"`
	Status      NotificationStatus `json:"status"       gorm:"type:varchar(16);not null;default:'unread';index;check:status IN ('unread','read')"`
	CreatedAt   time.Time          `json:"created_at"   gorm:"index:idx_recipient_notifs,priority:2"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// TableName returns the database table name for Notification.
func (Notification) TableName() string { return "notifications" }

// Friendship is a directed edge from UserID to FriendID. ActivityStatus is
// maintained by the presence broadcaster as the subject connects and
// disconnects.
type Friendship struct {
	ID             string           `json:"id"              gorm:"type:char(36);primaryKey"`
	UserID         string           `json:"user_id"         gorm:"type:varchar(64);not null;uniqueIndex:ux_friendship_pair,priority:1"`
	FriendID       string           `json:"friend_id"       gorm:"type:varchar(64);not null;uniqueIndex:ux_friendship_pair,priority:2;index"`
	Status         FriendshipStatus `json:"status"          gorm:"type:varchar(16);not null;default:'pending'"`
	ActivityStatus ActivityStatus   `json:"activity_status" gorm:"type:varchar(16);not null;default:'offline'"`
	LastActiveAt   *time.Time       `json:"last_active_at,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// TableName returns the database table name for Friendship.
func (Friendship) TableName() string { return "friendships" }

// Reaction is a single user's reaction on a target. A user holds at most one
// reaction per target; reacting again replaces the type.
type Reaction struct {
	ID         string       `json:"id"          gorm:"type:char(36);primaryKey"`
	UserID     string       `json:"user_id"     gorm:"type:varchar(64);not null;uniqueIndex:ux_reaction_user_target,priority:1"`
	TargetID   string       `json:"target_id"   gorm:"type:varchar(64);not null;uniqueIndex:ux_reaction_user_target,priority:2;index"`
	TargetType TargetType   `json:"target_type" gorm:"type:varchar(32);not null;uniqueIndex:ux_reaction_user_target,priority:3"`
	Type       ReactionType `json:"reaction_type" gorm:"type:varchar(16);not null"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

// TableName returns the database table name for Reaction.
func (Reaction) TableName() string { return "reactions" }
