package metrics

import (
	"context"
	"time"

	"github.com/ajoubeir/chat-service/internal/model"
	"github.com/ajoubeir/chat-service/internal/registry/store"
	"github.com/ajoubeir/chat-service/internal/security"
)

// Wrap returns a Store that records StoreLatency for every operation.
func Wrap(inner store.Store) store.Store {
	return &metricsStore{inner: inner}
}

type metricsStore struct {
	inner store.Store
}

func observe(op string, start time.Time) {
	security.StoreLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (m *metricsStore) UpsertConversation(ctx context.Context, conv model.Conversation) (string, error) {
	defer observe("upsert_conversation", time.Now())
	return m.inner.UpsertConversation(ctx, conv)
}

func (m *metricsStore) GetConversation(ctx context.Context, userIDa, userIDb string) (*model.Conversation, error) {
	defer observe("get_conversation", time.Now())
	return m.inner.GetConversation(ctx, userIDa, userIDb)
}

func (m *metricsStore) GetConversationByID(ctx context.Context, conversationID string) (*model.Conversation, error) {
	defer observe("get_conversation", time.Now())
	return m.inner.GetConversationByID(ctx, conversationID)
}

func (m *metricsStore) EnumerateConversationsForUser(ctx context.Context, userID string, opts store.ListOptions) ([]model.Conversation, *string, error) {
	defer observe("enumerate_conversations", time.Now())
	return m.inner.EnumerateConversationsForUser(ctx, userID, opts)
}

func (m *metricsStore) DeleteConversation(ctx context.Context, userIDa, userIDb string) (bool, error) {
	defer observe("delete_conversation", time.Now())
	return m.inner.DeleteConversation(ctx, userIDa, userIDb)
}

func (m *metricsStore) PostMessage(ctx context.Context, msg model.Message) error {
	defer observe("post_message", time.Now())
	return m.inner.PostMessage(ctx, msg)
}

func (m *metricsStore) GetMessage(ctx context.Context, conversationID, messageID string) (*model.Message, error) {
	defer observe("get_message", time.Now())
	return m.inner.GetMessage(ctx, conversationID, messageID)
}

func (m *metricsStore) EnumerateMessages(ctx context.Context, conversationID string, opts store.ListOptions) ([]model.Message, *string, error) {
	defer observe("enumerate_messages", time.Now())
	return m.inner.EnumerateMessages(ctx, conversationID, opts)
}

func (m *metricsStore) DeleteMessage(ctx context.Context, conversationID, messageID string) (bool, error) {
	defer observe("delete_message", time.Now())
	return m.inner.DeleteMessage(ctx, conversationID, messageID)
}

func (m *metricsStore) UpsertProfile(ctx context.Context, profile model.Profile) error {
	defer observe("upsert_profile", time.Now())
	return m.inner.UpsertProfile(ctx, profile)
}

func (m *metricsStore) GetProfile(ctx context.Context, username string) (*model.Profile, error) {
	defer observe("get_profile", time.Now())
	return m.inner.GetProfile(ctx, username)
}

func (m *metricsStore) DeleteProfile(ctx context.Context, username string) (bool, error) {
	defer observe("delete_profile", time.Now())
	return m.inner.DeleteProfile(ctx, username)
}
