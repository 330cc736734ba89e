package model

import (
	"fmt"
	"strings"
)

// conversationIDSeparator joins the two participant ids in a canonical
// conversation id. Usernames may not contain it.
const conversationIDSeparator = "_"

// ConversationID derives the canonical conversation id for a participant
// pair. The ordinally smaller id is placed first, so
// ConversationID(a, b) == ConversationID(b, a). The function does not reject
// a == b; callers enforce that a user cannot converse with themself.
func ConversationID(userIDa, userIDb string) string {
	if userIDa < userIDb {
		return userIDa + conversationIDSeparator + userIDb
	}
	return userIDb + conversationIDSeparator + userIDa
}

// Participants is the inverse of ConversationID. It fails when the id does
// not split into exactly two non-empty participant ids.
func Participants(conversationID string) (string, string, error) {
	first, second, ok := strings.Cut(conversationID, conversationIDSeparator)
	if !ok || first == "" || second == "" || strings.Contains(second, conversationIDSeparator) {
		return "", "", fmt.Errorf("invalid conversation id %q", conversationID)
	}
	return first, second, nil
}
