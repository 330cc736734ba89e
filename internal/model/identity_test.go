package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversationIDOrderIndependent(t *testing.T) {
	cases := []struct {
		a, b string
		want string
	}{
		{"john", "ripper", "john_ripper"},
		{"ripper", "john", "john_ripper"},
		{"alice", "bob", "alice_bob"},
		{"Bob", "alice", "Bob_alice"}, // ordinal compare, uppercase sorts first
		{"a", "b", "a_b"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ConversationID(tc.a, tc.b))
		assert.Equal(t, ConversationID(tc.a, tc.b), ConversationID(tc.b, tc.a))
	}
}

func TestParticipantsRoundTrip(t *testing.T) {
	pairs := [][2]string{
		{"john", "ripper"},
		{"zoe", "adam"},
		{"user1", "user2"},
	}
	for _, p := range pairs {
		id := ConversationID(p[0], p[1])
		a, b, err := Participants(id)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{p[0], p[1]}, []string{a, b})
		assert.Equal(t, id, ConversationID(a, b))
	}
}

func TestParticipantsInvalid(t *testing.T) {
	for _, id := range []string{"", "john", "_ripper", "john_", "a_b_c"} {
		_, _, err := Participants(id)
		assert.Error(t, err, "id %q", id)
	}
}

func TestOtherParticipant(t *testing.T) {
	conv := Conversation{ConversationID: "john_ripper", UserID1: "john", UserID2: "ripper"}

	other, ok := conv.OtherParticipant("john")
	require.True(t, ok)
	assert.Equal(t, "ripper", other)

	other, ok = conv.OtherParticipant("ripper")
	require.True(t, ok)
	assert.Equal(t, "john", other)

	_, ok = conv.OtherParticipant("mallory")
	assert.False(t, ok)
	assert.False(t, conv.HasParticipant("mallory"))
	assert.True(t, conv.HasParticipant("john"))
}
