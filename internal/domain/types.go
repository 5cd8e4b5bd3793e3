package domain

// ConversationType distinguishes one-to-one threads from groups.
type ConversationType string

const (
	ConversationPrivate ConversationType = "private"
	ConversationGroup   ConversationType = "group"
)

// MessageType is the kind of payload a message carries.
type MessageType string

const (
	MessageText  MessageType = "text"
	MessageImage MessageType = "image"
	MessageVideo MessageType = "video"
	MessageFile  MessageType = "file"
	MessageAudio MessageType = "audio"
)

// Valid reports whether t is one of the known message types.
func (t MessageType) Valid() bool {
	switch t {
	case MessageText, MessageImage, MessageVideo, MessageFile, MessageAudio:
		return true
	}
	return false
}

// MessageStatus is the delivery state of a message: sent → delivered → read.
type MessageStatus string

const (
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
)

// rank orders statuses along the delivery lifecycle. Unknown values rank
// below sent so they can always be advanced.
func (s MessageStatus) rank() int {
	switch s {
	case StatusSent:
		return 1
	case StatusDelivered:
		return 2
	case StatusRead:
		return 3
	}
	return 0
}

// CanAdvanceTo reports whether moving from s to next is a forward transition.
// Staying in place or moving backward is never allowed.
func (s MessageStatus) CanAdvanceTo(next MessageStatus) bool {
	return next.rank() > s.rank()
}

// Predecessors lists the statuses from which s can be reached directly.
func (s MessageStatus) Predecessors() []MessageStatus {
	var out []MessageStatus
	for _, c := range []MessageStatus{StatusSent, StatusDelivered, StatusRead} {
		if c.CanAdvanceTo(s) {
			out = append(out, c)
		}
	}
	return out
}

// Terminal reports whether no further transition is possible.
func (s MessageStatus) Terminal() bool { return s == StatusRead }

// NotificationType names the event that produced a notification.
type NotificationType string

const (
	NotifyMessage        NotificationType = "message"
	NotifyFriendRequest  NotificationType = "friend_request"
	NotifyFriendAccepted NotificationType = "friend_accepted"
	NotifyReaction       NotificationType = "reaction"
	NotifyGroupInvite    NotificationType = "group_invite"
)

// NotificationStatus is either unread or read.
type NotificationStatus string

const (
	NotificationUnread NotificationStatus = "unread"
	NotificationRead   NotificationStatus = "read"
)

// FriendshipStatus is the relationship state of a friendship edge.
type FriendshipStatus string

const (
	FriendshipPending  FriendshipStatus = "pending"
	FriendshipAccepted FriendshipStatus = "accepted"
	FriendshipBlocked  FriendshipStatus = "blocked"
)

// ActivityStatus is the presence flag mirrored onto friendship rows.
type ActivityStatus string

const (
	ActivityOnline  ActivityStatus = "online"
	ActivityOffline ActivityStatus = "offline"
)

// Valid reports whether s is online or offline.
func (s ActivityStatus) Valid() bool {
	return s == ActivityOnline || s == ActivityOffline
}

// TargetType is the kind of entity a reaction points at.
type TargetType string

const (
	TargetMessage      TargetType = "message"
	TargetConversation TargetType = "conversation"
)

// ReactionType is the emoji class of a reaction.
type ReactionType string

const (
	ReactionLike  ReactionType = "like"
	ReactionLove  ReactionType = "love"
	ReactionHaha  ReactionType = "haha"
	ReactionWow   ReactionType = "wow"
	ReactionSad   ReactionType = "sad"
	ReactionAngry ReactionType = "angry"
)

// Valid reports whether r is a supported reaction type.
func (r ReactionType) Valid() bool {
	switch r {
	case ReactionLike, ReactionLove, ReactionHaha, ReactionWow, ReactionSad, ReactionAngry:
		return true
	}
	return false
}
