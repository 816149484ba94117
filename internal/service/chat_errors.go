package service

import "errors"

var (
	// ErrConversationNotFound indicates the conversation does not exist.
	ErrConversationNotFound = errors.New("conversation not found")
	// ErrNotParticipant indicates the caller is not one of the conversation's two participants.
	ErrNotParticipant = errors.New("user is not a participant of the conversation")
	// ErrSelfConversation indicates an attempt to converse with oneself.
	ErrSelfConversation = errors.New("cannot start a conversation with yourself")
	// ErrReceiverRequired indicates the counterpart identity was missing.
	ErrReceiverRequired = errors.New("receiver id is required")
	// ErrInvalidMessageContent indicates blank, oversized or non UTF-8 content.
	ErrInvalidMessageContent = errors.New("message content must be between 1 and 4000 characters")

	// ErrMessageNotFound indicates the message does not exist.
	ErrMessageNotFound = errors.New("message not found")
	// ErrNotMessageSender indicates a non-sender tried to edit or delete a message.
	ErrNotMessageSender = errors.New("only the sender can modify this message")
	// ErrEditWindowExpired indicates the edit/delete window has closed.
	ErrEditWindowExpired = errors.New("edit window has expired")
	// ErrMessageDeleted indicates the message was already deleted.
	ErrMessageDeleted = errors.New("message has been deleted")

	// ErrInvalidNotificationType indicates a type outside the known set.
	ErrInvalidNotificationType = errors.New("invalid notification type")

	// ErrInvalidPayload indicates a client frame that could not be decoded or validated.
	ErrInvalidPayload = errors.New("invalid payload")
	// ErrUnknownEvent indicates a client frame with an unrecognised event name.
	ErrUnknownEvent = errors.New("unknown event")
)
