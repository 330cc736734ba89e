// Package memstore provides an in-memory Store used by service and route
// tests. It mirrors the pagination semantics of the mongo store.
package memstore

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/ajoubeir/chat-service/internal/model"
	"github.com/ajoubeir/chat-service/internal/registry/store"
)

type MemStore struct {
	mu            sync.Mutex
	profiles      map[string]model.Profile
	conversations map[string]model.Conversation // keyed by conversation id
	messages      map[string][]model.Message    // keyed by conversation id
}

func New() *MemStore {
	return &MemStore{
		profiles:      map[string]model.Profile{},
		conversations: map[string]model.Conversation{},
		messages:      map[string][]model.Message{},
	}
}

var _ store.Store = (*MemStore)(nil)

func formatToken(unixTime int64, id string) *string {
	t := strconv.FormatInt(unixTime, 10) + ":" + id
	return &t
}

func parseToken(token string) (int64, string, error) {
	tsPart, id, ok := strings.Cut(token, ":")
	if !ok || id == "" {
		return 0, "", &store.ValidationError{Field: "continuationToken", Message: "malformed continuation token"}
	}
	ts, err := strconv.ParseInt(tsPart, 10, 64)
	if err != nil {
		return 0, "", &store.ValidationError{Field: "continuationToken", Message: "malformed continuation token"}
	}
	return ts, id, nil
}

// paginate applies the (time ASC, id ASC) page protocol to a pre-sorted slice.
func paginate[T any](items []T, opts store.ListOptions, timeOf func(T) int64, idOf func(T) string) ([]T, *string, error) {
	if opts.ContinuationToken != nil {
		ts, id, err := parseToken(*opts.ContinuationToken)
		if err != nil {
			return nil, nil, err
		}
		filtered := items[:0:0]
		for _, item := range items {
			if timeOf(item) > ts || (timeOf(item) == ts && idOf(item) > id) {
				filtered = append(filtered, item)
			}
		}
		items = filtered
	}
	if opts.SinceUnixTime != nil {
		filtered := items[:0:0]
		for _, item := range items {
			if timeOf(item) > *opts.SinceUnixTime {
				filtered = append(filtered, item)
			}
		}
		items = filtered
	}
	if opts.Limit > 0 && len(items) > opts.Limit {
		items = items[:opts.Limit]
		last := items[len(items)-1]
		return items, formatToken(timeOf(last), idOf(last)), nil
	}
	return items, nil, nil
}

// --- Conversations ---

func (s *MemStore) UpsertConversation(ctx context.Context, conv model.Conversation) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations[conv.ConversationID] = conv
	return conv.ConversationID, nil
}

func (s *MemStore) GetConversation(ctx context.Context, userIDa, userIDb string) (*model.Conversation, error) {
	return s.GetConversationByID(ctx, model.ConversationID(userIDa, userIDb))
}

func (s *MemStore) GetConversationByID(ctx context.Context, conversationID string) (*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[conversationID]
	if !ok {
		return nil, &store.NotFoundError{Resource: "conversation", ID: conversationID}
	}
	return &conv, nil
}

func (s *MemStore) EnumerateConversationsForUser(ctx context.Context, userID string, opts store.ListOptions) ([]model.Conversation, *string, error) {
	s.mu.Lock()
	var items []model.Conversation
	for _, conv := range s.conversations {
		if conv.HasParticipant(userID) {
			items = append(items, conv)
		}
	}
	s.mu.Unlock()

	sort.Slice(items, func(i, j int) bool {
		if items[i].LastModifiedUnixTime != items[j].LastModifiedUnixTime {
			return items[i].LastModifiedUnixTime < items[j].LastModifiedUnixTime
		}
		return items[i].ConversationID < items[j].ConversationID
	})
	return paginate(items, opts,
		func(c model.Conversation) int64 { return c.LastModifiedUnixTime },
		func(c model.Conversation) string { return c.ConversationID })
}

func (s *MemStore) DeleteConversation(ctx context.Context, userIDa, userIDb string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conversationID := model.ConversationID(userIDa, userIDb)
	if _, ok := s.conversations[conversationID]; !ok {
		return false, nil
	}
	delete(s.conversations, conversationID)
	return true, nil
}

// --- Messages ---

func (s *MemStore) PostMessage(ctx context.Context, msg model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.messages[msg.ConversationID] {
		if existing.MessageID == msg.MessageID {
			s.messages[msg.ConversationID][i] = msg
			return nil
		}
	}
	s.messages[msg.ConversationID] = append(s.messages[msg.ConversationID], msg)
	return nil
}

func (s *MemStore) GetMessage(ctx context.Context, conversationID, messageID string) (*model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, msg := range s.messages[conversationID] {
		if msg.MessageID == messageID {
			return &msg, nil
		}
	}
	return nil, &store.NotFoundError{Resource: "message", ID: messageID}
}

func (s *MemStore) EnumerateMessages(ctx context.Context, conversationID string, opts store.ListOptions) ([]model.Message, *string, error) {
	s.mu.Lock()
	items := append([]model.Message(nil), s.messages[conversationID]...)
	s.mu.Unlock()

	sort.Slice(items, func(i, j int) bool {
		if items[i].UnixTime != items[j].UnixTime {
			return items[i].UnixTime < items[j].UnixTime
		}
		return items[i].MessageID < items[j].MessageID
	})
	return paginate(items, opts,
		func(m model.Message) int64 { return m.UnixTime },
		func(m model.Message) string { return m.MessageID })
}

func (s *MemStore) DeleteMessage(ctx context.Context, conversationID, messageID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.messages[conversationID]
	for i, msg := range msgs {
		if msg.MessageID == messageID {
			s.messages[conversationID] = append(msgs[:i], msgs[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

// --- Profiles ---

func (s *MemStore) UpsertProfile(ctx context.Context, profile model.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[profile.Username] = profile
	return nil
}

func (s *MemStore) GetProfile(ctx context.Context, username string) (*model.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	profile, ok := s.profiles[username]
	if !ok {
		return nil, &store.NotFoundError{Resource: "profile", ID: username}
	}
	return &profile, nil
}

func (s *MemStore) DeleteProfile(ctx context.Context, username string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[username]; !ok {
		return false, nil
	}
	delete(s.profiles, username)
	return true, nil
}
