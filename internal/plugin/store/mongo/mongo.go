package mongo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ajoubeir/chat-service/internal/config"
	"github.com/ajoubeir/chat-service/internal/model"
	registrymigrate "github.com/ajoubeir/chat-service/internal/registry/migrate"
	registrystore "github.com/ajoubeir/chat-service/internal/registry/store"
	"github.com/charmbracelet/log"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

func init() {
	registrystore.Register(registrystore.Plugin{
		Name: "mongo",
		Loader: func(ctx context.Context) (registrystore.Store, error) {
			cfg := config.FromContext(ctx)
			opts := options.Client().ApplyURI(cfg.DBURL)
			if cfg.DBMaxOpenConns > 0 {
				opts.SetMaxPoolSize(uint64(cfg.DBMaxOpenConns))
			}
			if cfg.DBMaxIdleConns > 0 {
				opts.SetMinPoolSize(uint64(cfg.DBMaxIdleConns))
			}
			client, err := mongo.Connect(opts)
			if err != nil {
				return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
			}
			if err := client.Ping(ctx, nil); err != nil {
				return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
			}
			return &MongoStore{
				client: client,
				db:     client.Database(dbName),
			}, nil
		},
	})

	registrymigrate.Register(registrymigrate.Plugin{Order: 100, Migrator: &mongoMigrator{}})
}

const dbName = "chat_service"

type mongoMigrator struct{}

func (m *mongoMigrator) Name() string { return "mongo-schema" }
func (m *mongoMigrator) Migrate(ctx context.Context) error {
	cfg := config.FromContext(ctx)
	if cfg != nil && !cfg.DatastoreMigrateAtStart {
		return nil
	}
	if cfg.DatastoreType != "mongo" {
		return nil // skip if not using mongo
	}

	log.Info("Running migration", "name", m.Name())
	client, err := mongo.Connect(options.Client().ApplyURI(cfg.DBURL))
	if err != nil {
		return fmt.Errorf("mongo migration: failed to connect: %w", err)
	}
	defer client.Disconnect(ctx)

	db := client.Database(dbName)

	collections := map[string][]mongo.IndexModel{
		"profiles": nil,
		"conversations": {
			// Each participant's partition holds its own replica of the conversation.
			{
				Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "conversation_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "last_modified_unix_time", Value: 1}}},
			{Keys: bson.D{{Key: "conversation_id", Value: 1}}},
		},
		"messages": {
			{
				Keys:    bson.D{{Key: "conversation_id", Value: 1}, {Key: "message_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "unix_time", Value: 1}}},
		},
	}

	for name, indexes := range collections {
		// Ensure collection exists
		db.CreateCollection(ctx, name)
		if len(indexes) > 0 {
			if _, err := db.Collection(name).Indexes().CreateMany(ctx, indexes); err != nil {
				return fmt.Errorf("mongo migration: failed to create indexes for %s: %w", name, err)
			}
		}
	}

	log.Info("MongoDB schema migration complete")
	return nil
}

// MongoStore implements the Store interfaces using MongoDB. Conversations are
// written twice, once per participant partition, so that listing a user's
// conversations is always a single-partition query.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

// ForceImport is a no-op variable that can be referenced to ensure this package's init() runs.
var ForceImport = 0

// --- MongoDB document types ---

type profileDoc struct {
	Username         string  `bson:"_id"`
	FirstName        string  `bson:"first_name"`
	LastName         string  `bson:"last_name"`
	ProfilePictureID *string `bson:"profile_picture_id,omitempty"`
}

type convDoc struct {
	UserID               string `bson:"user_id"`
	ConversationID       string `bson:"conversation_id"`
	UserID1              string `bson:"user_id1"`
	UserID2              string `bson:"user_id2"`
	LastModifiedUnixTime int64  `bson:"last_modified_unix_time"`
}

type msgDoc struct {
	ConversationID string `bson:"conversation_id"`
	MessageID      string `bson:"message_id"`
	Text           string `bson:"text"`
	SenderUsername string `bson:"sender_username"`
	UnixTime       int64  `bson:"unix_time"`
}

// --- Collection accessors ---

func (s *MongoStore) profiles() *mongo.Collection      { return s.db.Collection("profiles") }
func (s *MongoStore) conversations() *mongo.Collection { return s.db.Collection("conversations") }
func (s *MongoStore) messages() *mongo.Collection      { return s.db.Collection("messages") }

// --- Continuation tokens ---

// Continuation tokens encode the position of the last item returned as
// "<unixTime>:<id>". Ordering is (time ASC, id ASC); the id breaks ties
// between items sharing a timestamp so no item is skipped or repeated.

func formatToken(unixTime int64, id string) *string {
	t := strconv.FormatInt(unixTime, 10) + ":" + id
	return &t
}

func parseToken(token string) (int64, string, error) {
	tsPart, id, ok := strings.Cut(token, ":")
	if !ok || id == "" {
		return 0, "", &registrystore.ValidationError{Field: "continuationToken", Message: "malformed continuation token"}
	}
	ts, err := strconv.ParseInt(tsPart, 10, 64)
	if err != nil {
		return 0, "", &registrystore.ValidationError{Field: "continuationToken", Message: "malformed continuation token"}
	}
	return ts, id, nil
}

// afterPositionFilter matches items strictly after (ts, id) in the
// (time ASC, id ASC) order.
func afterPositionFilter(timeField, idField string, ts int64, id string) bson.M {
	return bson.M{"$or": bson.A{
		bson.M{timeField: bson.M{"$gt": ts}},
		bson.M{timeField: ts, idField: bson.M{"$gt": id}},
	}}
}

// --- Conversations ---

func (s *MongoStore) UpsertConversation(ctx context.Context, conv model.Conversation) (string, error) {
	for _, userID := range []string{conv.UserID1, conv.UserID2} {
		doc := convDoc{
			UserID:               userID,
			ConversationID:       conv.ConversationID,
			UserID1:              conv.UserID1,
			UserID2:              conv.UserID2,
			LastModifiedUnixTime: conv.LastModifiedUnixTime,
		}
		// The two partition writes are independent; a failure on the second
		// leaves the first replica in place, so name the partition we failed on.
		_, err := s.conversations().ReplaceOne(ctx,
			bson.M{"user_id": userID, "conversation_id": conv.ConversationID},
			doc,
			options.Replace().SetUpsert(true),
		)
		if err != nil {
			return "", fmt.Errorf("failed to upsert conversation %s in partition %s: %w", conv.ConversationID, userID, err)
		}
	}
	return conv.ConversationID, nil
}

func (s *MongoStore) GetConversation(ctx context.Context, userIDa, userIDb string) (*model.Conversation, error) {
	conversationID := model.ConversationID(userIDa, userIDb)
	var doc convDoc
	err := s.conversations().FindOne(ctx, bson.M{
		"user_id":         userIDa,
		"conversation_id": conversationID,
	}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, &registrystore.NotFoundError{Resource: "conversation", ID: conversationID}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation %s: %w", conversationID, err)
	}
	return convDocToModel(doc), nil
}

func (s *MongoStore) GetConversationByID(ctx context.Context, conversationID string) (*model.Conversation, error) {
	var doc convDoc
	err := s.conversations().FindOne(ctx, bson.M{
		"conversation_id": conversationID,
	}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, &registrystore.NotFoundError{Resource: "conversation", ID: conversationID}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation %s: %w", conversationID, err)
	}
	return convDocToModel(doc), nil
}

func (s *MongoStore) EnumerateConversationsForUser(ctx context.Context, userID string, listOpts registrystore.ListOptions) ([]model.Conversation, *string, error) {
	filter := bson.M{"user_id": userID}
	var position []bson.M
	if listOpts.ContinuationToken != nil {
		ts, id, err := parseToken(*listOpts.ContinuationToken)
		if err != nil {
			return nil, nil, err
		}
		position = append(position, afterPositionFilter("last_modified_unix_time", "conversation_id", ts, id))
	}
	if listOpts.SinceUnixTime != nil {
		position = append(position, bson.M{"last_modified_unix_time": bson.M{"$gt": *listOpts.SinceUnixTime}})
	}
	if len(position) > 0 {
		filter["$and"] = position
	}

	opts := options.Find().SetSort(bson.D{
		{Key: "last_modified_unix_time", Value: 1},
		{Key: "conversation_id", Value: 1},
	})
	if listOpts.Limit > 0 {
		opts.SetLimit(int64(listOpts.Limit + 1))
	}
	cur, err := s.conversations().Find(ctx, filter, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	var docs []convDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, nil, fmt.Errorf("failed to decode conversations: %w", err)
	}

	hasMore := listOpts.Limit > 0 && len(docs) > listOpts.Limit
	if hasMore {
		docs = docs[:listOpts.Limit]
	}

	result := make([]model.Conversation, len(docs))
	for i, d := range docs {
		result[i] = *convDocToModel(d)
	}

	var nextToken *string
	if hasMore {
		last := docs[len(docs)-1]
		nextToken = formatToken(last.LastModifiedUnixTime, last.ConversationID)
	}
	return result, nextToken, nil
}

func (s *MongoStore) DeleteConversation(ctx context.Context, userIDa, userIDb string) (bool, error) {
	conversationID := model.ConversationID(userIDa, userIDb)
	res, err := s.conversations().DeleteMany(ctx, bson.M{"conversation_id": conversationID})
	if err != nil {
		return false, fmt.Errorf("failed to delete conversation %s: %w", conversationID, err)
	}
	return res.DeletedCount > 0, nil
}

func convDocToModel(d convDoc) *model.Conversation {
	return &model.Conversation{
		ConversationID:       d.ConversationID,
		UserID1:              d.UserID1,
		UserID2:              d.UserID2,
		LastModifiedUnixTime: d.LastModifiedUnixTime,
	}
}

// --- Messages ---

func (s *MongoStore) PostMessage(ctx context.Context, msg model.Message) error {
	doc := msgDoc{
		ConversationID: msg.ConversationID,
		MessageID:      msg.MessageID,
		Text:           msg.Text,
		SenderUsername: msg.SenderUsername,
		UnixTime:       msg.UnixTime,
	}
	filter := bson.M{"conversation_id": msg.ConversationID, "message_id": msg.MessageID}
	_, err := s.messages().ReplaceOne(ctx, filter, doc, options.Replace().SetUpsert(true))
	if mongo.IsDuplicateKeyError(err) {
		// Two writers raced the upsert-insert; replace the loser's document.
		_, err = s.messages().ReplaceOne(ctx, filter, doc)
	}
	if err != nil {
		return fmt.Errorf("failed to post message %s: %w", msg.MessageID, err)
	}
	return nil
}

func (s *MongoStore) GetMessage(ctx context.Context, conversationID, messageID string) (*model.Message, error) {
	var doc msgDoc
	err := s.messages().FindOne(ctx, bson.M{
		"conversation_id": conversationID,
		"message_id":      messageID,
	}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, &registrystore.NotFoundError{Resource: "message", ID: messageID}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message %s: %w", messageID, err)
	}
	return &model.Message{
		MessageID:      doc.MessageID,
		Text:           doc.Text,
		SenderUsername: doc.SenderUsername,
		ConversationID: doc.ConversationID,
		UnixTime:       doc.UnixTime,
	}, nil
}

func (s *MongoStore) EnumerateMessages(ctx context.Context, conversationID string, listOpts registrystore.ListOptions) ([]model.Message, *string, error) {
	filter := bson.M{"conversation_id": conversationID}
	var position []bson.M
	if listOpts.ContinuationToken != nil {
		ts, id, err := parseToken(*listOpts.ContinuationToken)
		if err != nil {
			return nil, nil, err
		}
		position = append(position, afterPositionFilter("unix_time", "message_id", ts, id))
	}
	if listOpts.SinceUnixTime != nil {
		position = append(position, bson.M{"unix_time": bson.M{"$gt": *listOpts.SinceUnixTime}})
	}
	if len(position) > 0 {
		filter["$and"] = position
	}

	opts := options.Find().SetSort(bson.D{
		{Key: "unix_time", Value: 1},
		{Key: "message_id", Value: 1},
	})
	if listOpts.Limit > 0 {
		opts.SetLimit(int64(listOpts.Limit + 1))
	}
	cur, err := s.messages().Find(ctx, filter, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list messages: %w", err)
	}
	var docs []msgDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, nil, fmt.Errorf("failed to decode messages: %w", err)
	}

	hasMore := listOpts.Limit > 0 && len(docs) > listOpts.Limit
	if hasMore {
		docs = docs[:listOpts.Limit]
	}

	result := make([]model.Message, len(docs))
	for i, d := range docs {
		result[i] = model.Message{
			MessageID:      d.MessageID,
			Text:           d.Text,
			SenderUsername: d.SenderUsername,
			ConversationID: d.ConversationID,
			UnixTime:       d.UnixTime,
		}
	}

	var nextToken *string
	if hasMore {
		last := docs[len(docs)-1]
		nextToken = formatToken(last.UnixTime, last.MessageID)
	}
	return result, nextToken, nil
}

func (s *MongoStore) DeleteMessage(ctx context.Context, conversationID, messageID string) (bool, error) {
	res, err := s.messages().DeleteOne(ctx, bson.M{
		"conversation_id": conversationID,
		"message_id":      messageID,
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete message %s: %w", messageID, err)
	}
	return res.DeletedCount > 0, nil
}

// --- Profiles ---

func (s *MongoStore) UpsertProfile(ctx context.Context, profile model.Profile) error {
	doc := profileDoc{
		Username:         profile.Username,
		FirstName:        profile.FirstName,
		LastName:         profile.LastName,
		ProfilePictureID: profile.ProfilePictureID,
	}
	_, err := s.profiles().ReplaceOne(ctx,
		bson.M{"_id": profile.Username},
		doc,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert profile %s: %w", profile.Username, err)
	}
	return nil
}

func (s *MongoStore) GetProfile(ctx context.Context, username string) (*model.Profile, error) {
	var doc profileDoc
	err := s.profiles().FindOne(ctx, bson.M{"_id": username}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, &registrystore.NotFoundError{Resource: "profile", ID: username}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile %s: %w", username, err)
	}
	return &model.Profile{
		Username:         doc.Username,
		FirstName:        doc.FirstName,
		LastName:         doc.LastName,
		ProfilePictureID: doc.ProfilePictureID,
	}, nil
}

func (s *MongoStore) DeleteProfile(ctx context.Context, username string) (bool, error) {
	res, err := s.profiles().DeleteOne(ctx, bson.M{"_id": username})
	if err != nil {
		return false, fmt.Errorf("failed to delete profile %s: %w", username, err)
	}
	return res.DeletedCount > 0, nil
}
