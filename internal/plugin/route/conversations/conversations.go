package conversations

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ajoubeir/chat-service/internal/config"
	registryroute "github.com/ajoubeir/chat-service/internal/registry/route"
	registrystore "github.com/ajoubeir/chat-service/internal/registry/store"
	"github.com/ajoubeir/chat-service/internal/service"
	"github.com/gin-gonic/gin"
)

func init() {
	registryroute.Register(registryroute.Plugin{
		Order: 100,
		Loader: func(r *gin.Engine) error {
			return nil // routes are mounted by the serve command after store init
		},
	})
}

// MountRoutes mounts conversation and message routes on the given engine.
// Called after store initialization so the chat service is available.
func MountRoutes(r *gin.Engine, chat *service.ChatService, cfg *config.Config) {
	defaultLimit := 20
	if cfg != nil && cfg.DefaultPageLimit > 0 {
		defaultLimit = cfg.DefaultPageLimit
	}

	g := r.Group("/api")

	g.POST("/conversations", func(c *gin.Context) {
		startConversation(c, chat)
	})
	g.GET("/conversations", func(c *gin.Context) {
		listConversations(c, chat, defaultLimit)
	})
	g.POST("/conversations/:conversationId/messages", func(c *gin.Context) {
		sendMessage(c, chat)
	})
	g.GET("/conversations/:conversationId/messages", func(c *gin.Context) {
		listMessages(c, chat, defaultLimit)
	})
}

func startConversation(c *gin.Context, chat *service.ChatService) {
	var req struct {
		Participants []string `json:"participants"`
		FirstMessage struct {
			ID             string `json:"id"`
			Text           string `json:"text"`
			SenderUsername string `json:"senderUsername"`
		} `json:"firstMessage"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	conv, err := chat.StartConversation(c.Request.Context(), service.StartConversationRequest{
		Participants: req.Participants,
		FirstMessage: service.SendMessageRequest{
			ID:             req.FirstMessage.ID,
			Text:           req.FirstMessage.Text,
			SenderUsername: req.FirstMessage.SenderUsername,
		},
	})
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":                   conv.ConversationID,
		"lastModifiedUnixTime": conv.LastModifiedUnixTime,
	})
}

func listConversations(c *gin.Context, chat *service.ChatService, defaultLimit int) {
	username := c.Query("username")
	opts, err := listOptions(c, "lastSeenConversationTime", defaultLimit)
	if err != nil {
		handleError(c, err)
		return
	}

	views, nextToken, err := chat.EnumerateConversationsOfAGivenUser(c.Request.Context(), username, opts)
	if err != nil {
		handleError(c, err)
		return
	}

	resp := gin.H{"conversations": views}
	if nextToken != nil {
		resp["nextUri"] = nextURI(c, *nextToken, map[string]string{"username": username})
	}
	c.JSON(http.StatusOK, resp)
}

func sendMessage(c *gin.Context, chat *service.ChatService) {
	conversationID := c.Param("conversationId")
	var req struct {
		ID             string `json:"id"`
		Text           string `json:"text"`
		SenderUsername string `json:"senderUsername"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := chat.SendMessageToConversation(c.Request.Context(), conversationID, service.SendMessageRequest{
		ID:             req.ID,
		Text:           req.Text,
		SenderUsername: req.SenderUsername,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":       msg.MessageID,
		"unixTime": msg.UnixTime,
	})
}

func listMessages(c *gin.Context, chat *service.ChatService, defaultLimit int) {
	conversationID := c.Param("conversationId")
	opts, err := listOptions(c, "lastSeenMessageTime", defaultLimit)
	if err != nil {
		handleError(c, err)
		return
	}

	views, nextToken, err := chat.EnumerateMessagesInAConversation(c.Request.Context(), conversationID, opts)
	if err != nil {
		handleError(c, err)
		return
	}

	resp := gin.H{"messages": views}
	if nextToken != nil {
		resp["nextUri"] = nextURI(c, *nextToken, nil)
	}
	c.JSON(http.StatusOK, resp)
}

// listOptions reads the shared paging query parameters. Continuation tokens
// travel base64url-encoded over the wire; the store sees the decoded form.
func listOptions(c *gin.Context, sinceParam string, defaultLimit int) (service.ListOptions, error) {
	opts := service.ListOptions{Limit: queryInt(c, "limit", defaultLimit)}
	if encoded := c.Query("continuationToken"); encoded != "" {
		decoded, err := base64.URLEncoding.DecodeString(encoded)
		if err != nil {
			return opts, &registrystore.ValidationError{Field: "continuationToken", Message: "malformed continuation token"}
		}
		token := string(decoded)
		opts.ContinuationToken = &token
	}
	if v := c.Query(sinceParam); v != "" {
		var since int64
		if _, err := fmt.Sscanf(v, "%d", &since); err != nil {
			return opts, &registrystore.ValidationError{Field: sinceParam, Message: "must be a unix timestamp"}
		}
		opts.SinceUnixTime = &since
	}
	return opts, nil
}

// nextURI builds the URL of the next page, preserving the request's limit and
// carrying the encoded continuation token.
func nextURI(c *gin.Context, token string, extraParams map[string]string) string {
	params := url.Values{}
	for k, v := range extraParams {
		if v != "" {
			params.Set(k, v)
		}
	}
	if limit := c.Query("limit"); limit != "" {
		params.Set("limit", limit)
	}
	params.Set("continuationToken", base64.URLEncoding.EncodeToString([]byte(token)))
	return c.Request.URL.Path + "?" + params.Encode()
}

func handleError(c *gin.Context, err error) {
	var notFound *registrystore.NotFoundError
	var validation *registrystore.ValidationError
	var conflict *registrystore.ConflictError
	var notParticipant *registrystore.NotParticipantError

	switch {
	case errors.As(err, &notFound):
		c.JSON(http.StatusNotFound, gin.H{"code": "not_found", "error": err.Error()})
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"code": "validation_error", "error": err.Error(), "field": validation.Field})
	case errors.As(err, &conflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.As(err, &notParticipant):
		c.JSON(http.StatusBadRequest, gin.H{"code": "not_participant", "error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func queryInt(c *gin.Context, key string, def int) int {
	v := c.Query(key)
	if v == "" {
		return def
	}
	var i int
	if _, err := fmt.Sscanf(v, "%d", &i); err != nil {
		return def
	}
	return i
}
