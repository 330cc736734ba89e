package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ajoubeir/chat-service/internal/model"
	"github.com/ajoubeir/chat-service/internal/registry/store"
	"github.com/ajoubeir/chat-service/internal/security"
	"github.com/charmbracelet/log"
)

// ProfileLookup resolves usernames to profiles. Satisfied by ProfileService,
// which may answer from cache.
type ProfileLookup interface {
	GetProfile(ctx context.Context, username string) (*model.Profile, error)
}

// SendMessageRequest carries a client-supplied message for an existing conversation.
type SendMessageRequest struct {
	ID             string
	Text           string
	SenderUsername string
}

// StartConversationRequest creates a conversation between two users along with
// its first message.
type StartConversationRequest struct {
	Participants []string
	FirstMessage SendMessageRequest
}

// MessageView is a message as returned to clients. Identity and conversation
// fields are not exposed on list responses.
type MessageView struct {
	Text           string `json:"text"`
	SenderUsername string `json:"senderUsername"`
	UnixTime       int64  `json:"unixTime"`
}

// ConversationView is a conversation as returned to clients, with the other
// participant's profile resolved relative to the requesting user.
type ConversationView struct {
	ConversationID       string         `json:"conversationId"`
	LastModifiedUnixTime int64          `json:"lastModifiedUnixTime"`
	Recipient            *model.Profile `json:"recipient"`
}

// ListOptions mirrors store.ListOptions at the service boundary.
type ListOptions struct {
	ContinuationToken *string
	Limit             int
	SinceUnixTime     *int64
}

// ChatService coordinates conversation and message operations across the
// profile directory and the partitioned store.
type ChatService struct {
	conversations store.ConversationStore
	messages      store.MessageStore
	profiles      ProfileLookup
	now           func() time.Time
}

func NewChatService(conversations store.ConversationStore, messages store.MessageStore, profiles ProfileLookup) *ChatService {
	return &ChatService{
		conversations: conversations,
		messages:      messages,
		profiles:      profiles,
		now:           time.Now,
	}
}

// isBlank reports whether s is empty or whitespace only; blank values are
// rejected everywhere a non-empty identifier or text is required.
func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func validateMessage(msg SendMessageRequest) error {
	if isBlank(msg.ID) {
		return &store.ValidationError{Field: "id", Message: "message id must not be empty"}
	}
	if isBlank(msg.Text) {
		return &store.ValidationError{Field: "text", Message: "message text must not be empty"}
	}
	if isBlank(msg.SenderUsername) {
		return &store.ValidationError{Field: "senderUsername", Message: "sender username must not be empty"}
	}
	return nil
}

// SendMessageToConversation validates and delivers a message into an existing
// conversation, then bumps the conversation's last-modified time on both
// participant replicas using the same timestamp as the message.
func (s *ChatService) SendMessageToConversation(ctx context.Context, conversationID string, req SendMessageRequest) (*model.Message, error) {
	if isBlank(conversationID) {
		return nil, &store.ValidationError{Field: "conversationId", Message: "conversation id must not be empty"}
	}
	if err := validateMessage(req); err != nil {
		return nil, err
	}

	conv, err := s.conversations.GetConversationByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(req.SenderUsername) {
		return nil, &store.NotParticipantError{Username: req.SenderUsername, ConversationID: conversationID}
	}

	if _, err := s.messages.GetMessage(ctx, conversationID, req.ID); err == nil {
		return nil, &store.ConflictError{Message: fmt.Sprintf("message %s already exists in conversation %s", req.ID, conversationID)}
	} else if !store.IsNotFound(err) {
		return nil, err
	}

	msg := model.Message{
		MessageID:      req.ID,
		Text:           req.Text,
		SenderUsername: req.SenderUsername,
		ConversationID: conversationID,
		UnixTime:       s.now().Unix(),
	}
	if err := s.messages.PostMessage(ctx, msg); err != nil {
		return nil, err
	}

	conv.LastModifiedUnixTime = msg.UnixTime
	if _, err := s.conversations.UpsertConversation(ctx, *conv); err != nil {
		// Message delivery already succeeded; the conversation ordering is
		// stale until the next write. Surface the error so the client retries.
		return nil, fmt.Errorf("message %s delivered but conversation update failed: %w", msg.MessageID, err)
	}

	if security.MessagesPostedTotal != nil {
		security.MessagesPostedTotal.Inc()
	}
	log.Debug("Message delivered", "conversationId", conversationID, "messageId", msg.MessageID)
	return &msg, nil
}

// EnumerateMessagesInAConversation returns a page of the conversation's
// messages in ascending time order.
func (s *ChatService) EnumerateMessagesInAConversation(ctx context.Context, conversationID string, opts ListOptions) ([]MessageView, *string, error) {
	if isBlank(conversationID) {
		return nil, nil, &store.ValidationError{Field: "conversationId", Message: "conversation id must not be empty"}
	}
	if _, err := s.conversations.GetConversationByID(ctx, conversationID); err != nil {
		return nil, nil, err
	}

	messages, nextToken, err := s.messages.EnumerateMessages(ctx, conversationID, store.ListOptions{
		ContinuationToken: opts.ContinuationToken,
		Limit:             opts.Limit,
		SinceUnixTime:     opts.SinceUnixTime,
	})
	if err != nil {
		return nil, nil, err
	}

	views := make([]MessageView, len(messages))
	for i, m := range messages {
		views[i] = MessageView{
			Text:           m.Text,
			SenderUsername: m.SenderUsername,
			UnixTime:       m.UnixTime,
		}
	}
	return views, nextToken, nil
}

// StartConversation creates a conversation between the two participants and
// delivers its first message. Both participants must have profiles, the
// sender must be one of them, and no conversation may already exist for the
// pair.
func (s *ChatService) StartConversation(ctx context.Context, req StartConversationRequest) (*model.Conversation, error) {
	if len(req.Participants) != 2 {
		return nil, &store.ValidationError{Field: "participants", Message: "exactly two participants are required"}
	}
	userA, userB := req.Participants[0], req.Participants[1]
	if isBlank(userA) || isBlank(userB) {
		return nil, &store.ValidationError{Field: "participants", Message: "participant usernames must not be empty"}
	}
	if userA == userB {
		return nil, &store.ValidationError{Field: "participants", Message: "participants must be distinct users"}
	}
	if err := validateMessage(req.FirstMessage); err != nil {
		return nil, err
	}

	for _, username := range []string{userA, userB} {
		if _, err := s.profiles.GetProfile(ctx, username); err != nil {
			return nil, err
		}
	}

	if req.FirstMessage.SenderUsername != userA && req.FirstMessage.SenderUsername != userB {
		return nil, &store.NotParticipantError{
			Username:       req.FirstMessage.SenderUsername,
			ConversationID: model.ConversationID(userA, userB),
		}
	}

	conversationID := model.ConversationID(userA, userB)
	if _, err := s.conversations.GetConversationByID(ctx, conversationID); err == nil {
		return nil, &store.ConflictError{Message: fmt.Sprintf("conversation between %s and %s already exists", userA, userB)}
	} else if !store.IsNotFound(err) {
		return nil, err
	}

	now := s.now().Unix()
	conv := model.Conversation{
		ConversationID:       conversationID,
		UserID1:              userA,
		UserID2:              userB,
		LastModifiedUnixTime: now,
	}
	if _, err := s.conversations.UpsertConversation(ctx, conv); err != nil {
		return nil, err
	}

	msg := model.Message{
		MessageID:      req.FirstMessage.ID,
		Text:           req.FirstMessage.Text,
		SenderUsername: req.FirstMessage.SenderUsername,
		ConversationID: conversationID,
		UnixTime:       now,
	}
	if err := s.messages.PostMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("conversation %s created but first message delivery failed: %w", conversationID, err)
	}

	if security.ConversationsStartedTotal != nil {
		security.ConversationsStartedTotal.Inc()
	}
	log.Info("Conversation started", "conversationId", conversationID)
	return &conv, nil
}

// EnumerateConversationsOfAGivenUser returns a page of the user's
// conversations, each with the other participant's profile resolved.
func (s *ChatService) EnumerateConversationsOfAGivenUser(ctx context.Context, username string, opts ListOptions) ([]ConversationView, *string, error) {
	if isBlank(username) {
		return nil, nil, &store.ValidationError{Field: "username", Message: "username must not be empty"}
	}
	if _, err := s.profiles.GetProfile(ctx, username); err != nil {
		return nil, nil, err
	}

	conversations, nextToken, err := s.conversations.EnumerateConversationsForUser(ctx, username, store.ListOptions{
		ContinuationToken: opts.ContinuationToken,
		Limit:             opts.Limit,
		SinceUnixTime:     opts.SinceUnixTime,
	})
	if err != nil {
		return nil, nil, err
	}

	views := make([]ConversationView, len(conversations))
	for i, conv := range conversations {
		other, ok := conv.OtherParticipant(username)
		if !ok {
			return nil, nil, fmt.Errorf("conversation %s does not include user %s", conv.ConversationID, username)
		}
		recipient, err := s.profiles.GetProfile(ctx, other)
		if err != nil {
			return nil, nil, err
		}
		views[i] = ConversationView{
			ConversationID:       conv.ConversationID,
			LastModifiedUnixTime: conv.LastModifiedUnixTime,
			Recipient:            recipient,
		}
	}
	return views, nextToken, nil
}
