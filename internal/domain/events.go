package domain

// Real-time event names exchanged over the gateway. Client→server events are
// handled by the gateway router; server→client events are pushed by services.
const (
	// client → server
	EventAuthenticate      = "authenticate"
	EventSendMessage       = "send-message"
	EventMarkMessageRead   = "mark-message-read"
	EventTypingStart       = "typing-start"
	EventTypingStop        = "typing-stop"
	EventJoinConversation  = "join-conversation"
	EventLeaveConversation = "leave-conversation"
	EventAddReaction       = "add-reaction"
	EventStatusChange      = "status-change"

	// server → client
	EventConnect            = "connect"
	EventConnectError       = "connect_error"
	EventMessageSent        = "message-sent"
	EventReceiveMessage     = "receive-message"
	EventMessageDelivered   = "message-delivered"
	EventMessagesRead       = "messages-read"
	EventUserTyping         = "user-typing"
	EventJoinedConversation = "joined-conversation"
	EventLeftConversation   = "left-conversation"
	EventReactionAdded      = "reaction-added"
	EventFriendStatusChange = "friend-status-change"
	EventNewNotification    = "new-notification"
	EventError              = "error"
)
