package store

import (
	"context"
	"fmt"

	"github.com/ajoubeir/chat-service/internal/model"
)

// ListOptions carries the optional pagination parameters shared by all
// enumerate operations. ContinuationToken is an opaque position produced by a
// previous page from the same store; Limit <= 0 means no explicit page cap;
// SinceUnixTime, when set, restricts results to strictly greater timestamps.
type ListOptions struct {
	ContinuationToken *string
	Limit             int
	SinceUnixTime     *int64
}

// ConversationStore persists conversation records. Each logical conversation
// is written twice, once under each participant's partition, so that
// per-user listing is a single-partition range query. The two replica writes
// are not transactional; a failure between them is surfaced, not masked.
type ConversationStore interface {
	// UpsertConversation writes both replica records and returns the
	// canonical conversation id.
	UpsertConversation(ctx context.Context, conv model.Conversation) (string, error)
	// GetConversation reads the conversation between the two users from the
	// first user's partition. Either argument order resolves the same record.
	GetConversation(ctx context.Context, userIDa, userIDb string) (*model.Conversation, error)
	// GetConversationByID looks up a conversation by its canonical id. Both
	// replicas carry identical payload, so either one satisfies the read.
	GetConversationByID(ctx context.Context, conversationID string) (*model.Conversation, error)
	// EnumerateConversationsForUser pages through the user's partition in
	// ascending lastModifiedUnixTime order. An unknown user yields an empty
	// page, not an error.
	EnumerateConversationsForUser(ctx context.Context, userID string, opts ListOptions) ([]model.Conversation, *string, error)
	// DeleteConversation removes both replicas. Returns false when the
	// conversation did not exist.
	DeleteConversation(ctx context.Context, userIDa, userIDb string) (bool, error)
}

// MessageStore persists messages, partitioned by canonical conversation id.
type MessageStore interface {
	// PostMessage upserts by (conversationId, messageId); last write wins.
	// Duplicate rejection is an orchestrator policy, not a store concern.
	PostMessage(ctx context.Context, msg model.Message) error
	GetMessage(ctx context.Context, conversationID, messageID string) (*model.Message, error)
	// EnumerateMessages pages through the conversation's partition in
	// ascending unixTime order.
	EnumerateMessages(ctx context.Context, conversationID string, opts ListOptions) ([]model.Message, *string, error)
	// DeleteMessage returns false when the message did not exist.
	DeleteMessage(ctx context.Context, conversationID, messageID string) (bool, error)
}

// ProfileStore persists user profiles, partitioned by username.
type ProfileStore interface {
	UpsertProfile(ctx context.Context, profile model.Profile) error
	GetProfile(ctx context.Context, username string) (*model.Profile, error)
	// DeleteProfile returns false when the profile did not exist.
	DeleteProfile(ctx context.Context, username string) (bool, error)
}

// Store is the primary data access interface for the chat service.
type Store interface {
	ConversationStore
	MessageStore
	ProfileStore
}

// Loader creates a Store from config.
type Loader func(ctx context.Context) (Store, error)

// Plugin represents a store plugin.
type Plugin struct {
	Name   string
	Loader Loader
}

var plugins []Plugin

// Register adds a store plugin.
func Register(p Plugin) {
	plugins = append(plugins, p)
}

// Names returns all registered store plugin names.
func Names() []string {
	names := make([]string, len(plugins))
	for i, p := range plugins {
		names[i] = p.Name
	}
	return names
}

// Select returns the loader for the named store plugin.
func Select(name string) (Loader, error) {
	for _, p := range plugins {
		if p.Name == name {
			return p.Loader, nil
		}
	}
	return nil, fmt.Errorf("unknown store %q; valid: %v", name, Names())
}
