package repositories

import (
	"fmt"
	"testing"
	"time"

	"chat-core/domain"
	"chat-core/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func Test_Append_Requires_Conversation(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(testDB(t), testLogger())

	_, err := repository.Append(domain.Message{
		ConversationID: "ghost",
		SenderID:       "alice",
		Kind:           domain.KindText,
		Text:           "hello?",
	})
	req.ErrorIs(err, errors.ErrNotFound)
}

func Test_Append_Fills_Defaults_And_Moves_Pointer(t *testing.T) {
	req := require.New(t)
	db := testDB(t)
	convs := NewConversationRepository(db)
	repository := NewMessageRepository(db, testLogger())

	conv, _, err := convs.CreateDirect("alice", "bob")
	req.NoError(err)

	msg, err := repository.Append(domain.Message{
		ConversationID: conv.ID,
		SenderID:       "alice",
		Kind:           domain.KindText,
		Text:           "hi bob",
	})
	req.NoError(err)
	req.NotEqual(uuid.Nil, msg.ID)
	req.False(msg.CreatedAt.IsZero())
	req.Contains(msg.ReadBy, "alice")

	fetched, err := repository.GetByID(msg.ID)
	req.NoError(err)
	req.Equal("hi bob", fetched.Text)

	updated, err := convs.GetByID(conv.ID)
	req.NoError(err)
	req.Equal(msg.ID.String(), updated.LastMessageID)
	req.Equal(msg.CreatedAt, updated.UpdatedAt)
}

func Test_MarkRead_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	db := testDB(t)
	convs := NewConversationRepository(db)
	repository := NewMessageRepository(db, testLogger())

	conv, _, err := convs.CreateDirect("alice", "bob")
	req.NoError(err)
	msg, err := repository.Append(domain.Message{
		ConversationID: conv.ID,
		SenderID:       "alice",
		Kind:           domain.KindText,
		Text:           "read me",
	})
	req.NoError(err)

	first, changed, err := repository.MarkRead(msg.ID, "bob")
	req.NoError(err)
	req.True(changed)
	req.ElementsMatch([]string{"alice", "bob"}, first.ReadBy)

	// The set never shrinks and the repeated call is not an error.
	second, changed, err := repository.MarkRead(msg.ID, "bob")
	req.NoError(err)
	req.False(changed)
	req.ElementsMatch([]string{"alice", "bob"}, second.ReadBy)
}

func Test_MarkRead_Unknown_Message(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(testDB(t), testLogger())

	_, _, err := repository.MarkRead(uuid.New(), "bob")
	req.ErrorIs(err, errors.ErrNotFound)
}

func Test_List_Pages_From_Newest_Backward(t *testing.T) {
	req := require.New(t)
	db := testDB(t)
	convs := NewConversationRepository(db)
	repository := NewMessageRepository(db, testLogger())

	conv, _, err := convs.CreateDirect("alice", "bob")
	req.NoError(err)

	at := time.Now().UTC()
	for i := 0; i < 7; i++ {
		_, err := repository.Append(domain.Message{
			ConversationID: conv.ID,
			SenderID:       "alice",
			Kind:           domain.KindText,
			Text:           fmt.Sprintf("message %d", i),
			CreatedAt:      at.Add(time.Duration(i) * time.Second),
		})
		req.NoError(err)
	}

	// Page 1 holds the three most recent messages, oldest of them first.
	page1, hasMore, err := repository.List(conv.ID, 1, 3)
	req.NoError(err)
	req.True(hasMore)
	req.Len(page1, 3)
	req.Equal("message 4", page1[0].Text)
	req.Equal("message 6", page1[2].Text)

	page2, hasMore, err := repository.List(conv.ID, 2, 3)
	req.NoError(err)
	req.True(hasMore)
	req.Equal("message 1", page2[0].Text)
	req.Equal("message 3", page2[2].Text)

	page3, hasMore, err := repository.List(conv.ID, 3, 3)
	req.NoError(err)
	req.False(hasMore)
	req.Len(page3, 1)
	req.Equal("message 0", page3[0].Text)

	// Past the history: an empty page, never an error.
	page4, hasMore, err := repository.List(conv.ID, 4, 3)
	req.NoError(err)
	req.False(hasMore)
	req.Empty(page4)
}

func Test_List_Clamps_Page_And_Limit(t *testing.T) {
	req := require.New(t)
	db := testDB(t)
	convs := NewConversationRepository(db)
	repository := NewMessageRepository(db, testLogger())

	conv, _, err := convs.CreateDirect("alice", "bob")
	req.NoError(err)

	at := time.Now().UTC()
	for i := 0; i < 3; i++ {
		_, err := repository.Append(domain.Message{
			ConversationID: conv.ID,
			SenderID:       "alice",
			Kind:           domain.KindText,
			Text:           fmt.Sprintf("message %d", i),
			CreatedAt:      at.Add(time.Duration(i) * time.Second),
		})
		req.NoError(err)
	}

	// Page zero is treated as the first, a zero limit as the default.
	all, hasMore, err := repository.List(conv.ID, 0, 0)
	req.NoError(err)
	req.False(hasMore)
	req.Len(all, 3)

	// An oversized limit is clamped rather than rejected.
	all, hasMore, err = repository.List(conv.ID, 1, MaxPageLimit*10)
	req.NoError(err)
	req.False(hasMore)
	req.Len(all, 3)
	req.Equal("message 0", all[0].Text)
}

func Test_List_Unknown_Conversation_Is_Empty(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(testDB(t), testLogger())

	page, hasMore, err := repository.List("ghost", 1, 10)
	req.NoError(err)
	req.False(hasMore)
	req.Empty(page)
}
