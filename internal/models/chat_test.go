package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestConversationPairIsOrderIndependent(t *testing.T) {
	low, high := ConversationPair("bob", "alice")
	require.Equal(t, "alice", low)
	require.Equal(t, "bob", high)

	low2, high2 := ConversationPair("alice", "bob")
	require.Equal(t, low, low2)
	require.Equal(t, high, high2)
}

func TestConversationPairKeepsColonIdentitiesDistinct(t *testing.T) {
	first := NewConversation("a", "b:c")
	second := NewConversation("a:b", "c")

	require.NotEqual(t,
		[]string{first.ParticipantLow, first.ParticipantHigh},
		[]string{second.ParticipantLow, second.ParticipantHigh},
	)
}

func TestConversationParticipantHelpers(t *testing.T) {
	conv := NewConversation("alice", "bob")
	require.Equal(t, []string{"alice", "bob"}, conv.Participants())
	require.True(t, conv.HasParticipant("bob"))
	require.False(t, conv.HasParticipant("carol"))
	require.False(t, conv.HasParticipant(""))
	require.Equal(t, "bob", conv.Counterpart("alice"))
	require.Equal(t, "alice", conv.Counterpart("bob"))
}

func TestMessageWithinWindow(t *testing.T) {
	created := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	msg := Message{CreatedAt: created}

	require.True(t, msg.WithinWindow(created.Add(15*time.Minute), 15*time.Minute))
	require.False(t, msg.WithinWindow(created.Add(15*time.Minute+time.Second), 15*time.Minute))
}

func TestNotificationTypeValid(t *testing.T) {
	for _, kind := range NotificationTypes {
		require.True(t, kind.Valid())
	}
	require.False(t, NotificationType("mention").Valid())
}
