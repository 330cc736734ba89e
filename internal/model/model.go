package model

// Conversation is a pairwise conversation between two users. The id is a
// deterministic function of the participant pair (see ConversationID), so the
// same logical conversation is reachable from either participant.
type Conversation struct {
	ConversationID       string `json:"conversationId"`
	UserID1              string `json:"userId1"`
	UserID2              string `json:"userId2"`
	LastModifiedUnixTime int64  `json:"lastModifiedUnixTime"`
}

// OtherParticipant returns the participant that is not userID. The second
// return is false when userID is not part of the conversation.
func (c Conversation) OtherParticipant(userID string) (string, bool) {
	switch userID {
	case c.UserID1:
		return c.UserID2, true
	case c.UserID2:
		return c.UserID1, true
	}
	return "", false
}

// HasParticipant reports whether userID is one of the two participants.
func (c Conversation) HasParticipant(userID string) bool {
	return userID == c.UserID1 || userID == c.UserID2
}

// Message is a single message in a conversation. Messages are immutable once
// stored and are partitioned by the canonical conversation id.
type Message struct {
	MessageID      string `json:"messageId"`
	Text           string `json:"text"`
	SenderUsername string `json:"senderUsername"`
	ConversationID string `json:"conversationId"`
	UnixTime       int64  `json:"unixTime"`
}

// Profile is a user profile.
type Profile struct {
	Username         string  `json:"username"`
	FirstName        string  `json:"firstName"`
	LastName         string  `json:"lastName"`
	ProfilePictureID *string `json:"profilePictureId,omitempty"`
}
