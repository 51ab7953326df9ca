package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"chat-core/identity"
	"chat-core/moderation"
	"chat-core/repositories"
	"chat-core/rooms"
	"chat-core/services"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"net/http/httptest"
)

// stubVerifier resolves fixed tokens to fixed profiles, standing in for
// the external identity provider.
type stubVerifier struct {
	profiles map[string]identity.Profile
}

func (v stubVerifier) Verify(_ context.Context, bearer string) (identity.Profile, error) {
	p, ok := v.profiles[bearer]
	if !ok {
		return identity.Profile{}, fmt.Errorf("unknown token %q", bearer)
	}
	return p, nil
}

type testStack struct {
	server *httptest.Server
	convs  repositories.IConversationRepository
	msgs   repositories.IMessageRepository
}

func newTestStack(t *testing.T) testStack {
	t.Helper()
	req := require.New(t)
	log := slog.Default()

	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	t.Cleanup(func() { _ = db.Close() })

	users := repositories.NewUserRepository(db)
	convs := repositories.NewConversationRepository(db)
	msgs := repositories.NewMessageRepository(db, log)

	moderator, err := moderation.NewModerator([]string{"idiot"}, '*')
	req.NoError(err)

	verifier := stubVerifier{profiles: map[string]identity.Profile{
		"alice-token": {ExternalID: "ext-alice", Name: "Alice", Email: "alice@example.com"},
		"bob-token":   {ExternalID: "ext-bob", Name: "Bob", Email: "bob@example.com"},
	}}
	bridge := identity.NewBridge(verifier, users, log)

	registry := rooms.NewRegistry(log)
	chat := services.NewChatService(convs, msgs, registry, &moderator, log)

	handler := NewHandler(bridge, chat, registry, 16, log)
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return testStack{server: server, convs: convs, msgs: msgs}
}

// client wraps one websocket connection and classifies incoming frames.
// Pushes arriving while waiting for an ack are buffered, not lost.
type client struct {
	t       *testing.T
	conn    *websocket.Conn
	userID  string
	nextID  int64
	pending []map[string]json.RawMessage
}

func connect(t *testing.T, ctx context.Context, serverURL, token string) *client {
	t.Helper()
	req := require.New(t)

	wsURL := "ws" + strings.TrimPrefix(serverURL, "http") + "?token=" + token
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	req.NoError(err)
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "") })

	c := &client{t: t, conn: conn}

	// The first frame is always the identity echo.
	me := c.expectEvent(ctx, "me")
	var payload struct {
		Identity struct {
			ID string `json:"id"`
		} `json:"identity"`
	}
	req.NoError(json.Unmarshal(me, &payload))
	req.NotEmpty(payload.Identity.ID)
	c.userID = payload.Identity.ID
	return c
}

func (c *client) read(ctx context.Context) map[string]json.RawMessage {
	c.t.Helper()
	var frame map[string]json.RawMessage
	require.NoError(c.t, wsjson.Read(ctx, c.conn, &frame))
	return frame
}

// expectEvent returns the next pushed event, which must carry the given
// name. Buffered pushes are served before the socket is read again.
func (c *client) expectEvent(ctx context.Context, name string) json.RawMessage {
	c.t.Helper()

	var frame map[string]json.RawMessage
	if len(c.pending) > 0 {
		frame, c.pending = c.pending[0], c.pending[1:]
	} else {
		frame = c.read(ctx)
	}

	eventRaw, ok := frame["event"]
	require.True(c.t, ok, "expected a pushed event, got %v", frame)
	var eventName string
	require.NoError(c.t, json.Unmarshal(eventRaw, &eventName))
	require.Equal(c.t, name, eventName)
	return frame["data"]
}

// send emits an acknowledged client event and returns the raw ack frame.
// Pushes interleaved before the ack are kept for later expectEvent calls.
func (c *client) send(ctx context.Context, eventName string, payload any) map[string]json.RawMessage {
	c.t.Helper()
	req := require.New(c.t)

	data, err := json.Marshal(payload)
	req.NoError(err)
	c.nextID++
	req.NoError(wsjson.Write(ctx, c.conn, Envelope{ID: c.nextID, Event: eventName, Data: data}))

	for {
		frame := c.read(ctx)
		if _, isPush := frame["event"]; isPush {
			c.pending = append(c.pending, frame)
			continue
		}
		var id int64
		req.NoError(json.Unmarshal(frame["id"], &id))
		req.Equal(c.nextID, id)
		return frame
	}
}

func (c *client) sendOK(ctx context.Context, eventName string, payload any) map[string]json.RawMessage {
	c.t.Helper()
	frame := c.send(ctx, eventName, payload)
	var ok bool
	require.NoError(c.t, json.Unmarshal(frame["ok"], &ok))
	require.True(c.t, ok, "ack reported failure: %v", frame)
	return frame
}

func Test_Handshake_Rejects_Unknown_Token(t *testing.T) {
	req := require.New(t)
	stack := newTestStack(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(stack.server.URL, "http") + "?token=forged"
	_, resp, err := websocket.Dial(ctx, wsURL, nil)
	req.Error(err)
	req.NotNil(resp)
	req.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func Test_Message_Flow_Between_Two_Clients(t *testing.T) {
	req := require.New(t)
	stack := newTestStack(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	alice := connect(t, ctx, stack.server.URL, "alice-token")
	bob := connect(t, ctx, stack.server.URL, "bob-token")

	conv, created, err := stack.convs.CreateDirect(alice.userID, bob.userID)
	req.NoError(err)
	req.True(created)

	alice.sendOK(ctx, EventJoinConversation, map[string]string{"conversationId": conv.ID})
	bob.sendOK(ctx, EventJoinConversation, map[string]string{"conversationId": conv.ID})

	// Alice sends; her ack carries the persisted record.
	ack := alice.sendOK(ctx, EventSendMessage, map[string]string{
		"conversationId": conv.ID,
		"text":           "hi bob",
	})
	var sent struct {
		ID     string `json:"id"`
		Text   string `json:"text"`
		Sender string `json:"senderId"`
	}
	req.NoError(json.Unmarshal(ack["message"], &sent))
	req.Equal("hi bob", sent.Text)
	req.Equal(alice.userID, sent.Sender)

	// Bob observes the message first, then the list-view summary on his
	// personal room.
	newMsg := bob.expectEvent(ctx, "message:new")
	var pushed struct {
		Message struct {
			ID   string `json:"id"`
			Text string `json:"text"`
		} `json:"message"`
	}
	req.NoError(json.Unmarshal(newMsg, &pushed))
	req.Equal(sent.ID, pushed.Message.ID)

	update := bob.expectEvent(ctx, "conversation:update")
	var summary struct {
		ConversationID string `json:"conversationId"`
		LastMessage    struct {
			Text string `json:"text"`
		} `json:"lastMessage"`
	}
	req.NoError(json.Unmarshal(update, &summary))
	req.Equal(conv.ID, summary.ConversationID)
	req.Equal("hi bob", summary.LastMessage.Text)

	// Bob acknowledges the message; Alice receives the read receipt.
	bob.sendOK(ctx, EventMessageRead, map[string]string{
		"conversationId": conv.ID,
		"messageId":      sent.ID,
	})

	// Alice drains her own copy of the fan-out before the receipt.
	alice.expectEvent(ctx, "message:new")
	alice.expectEvent(ctx, "conversation:update")
	receipt := alice.expectEvent(ctx, "message:read")
	var read struct {
		MessageID string `json:"messageId"`
		UserID    string `json:"userId"`
	}
	req.NoError(json.Unmarshal(receipt, &read))
	req.Equal(sent.ID, read.MessageID)
	req.Equal(bob.userID, read.UserID)
}

func Test_Send_Into_Foreign_Conversation_Is_Acked_As_Forbidden(t *testing.T) {
	req := require.New(t)
	stack := newTestStack(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	alice := connect(t, ctx, stack.server.URL, "alice-token")
	bob := connect(t, ctx, stack.server.URL, "bob-token")

	// A conversation alice is not part of.
	conv, _, err := stack.convs.CreateDirect(bob.userID, "someone-else")
	req.NoError(err)

	frame := alice.send(ctx, EventSendMessage, map[string]string{
		"conversationId": conv.ID,
		"text":           "let me in",
	})
	var ok bool
	req.NoError(json.Unmarshal(frame["ok"], &ok))
	req.False(ok)
	var msg string
	req.NoError(json.Unmarshal(frame["error"], &msg))
	req.Equal("forbidden", msg)

	// The connection survives the rejection.
	alice.sendOK(ctx, EventJoinConversation, map[string]string{
		"conversationId": mustDirect(t, stack, alice.userID, bob.userID),
	})
}

func mustDirect(t *testing.T, stack testStack, a, b string) string {
	t.Helper()
	conv, _, err := stack.convs.CreateDirect(a, b)
	require.NoError(t, err)
	return conv.ID
}

func Test_Typing_Reaches_Peers_Not_The_Emitter(t *testing.T) {
	req := require.New(t)
	stack := newTestStack(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	alice := connect(t, ctx, stack.server.URL, "alice-token")
	bob := connect(t, ctx, stack.server.URL, "bob-token")

	conv, _, err := stack.convs.CreateDirect(alice.userID, bob.userID)
	req.NoError(err)
	alice.sendOK(ctx, EventJoinConversation, map[string]string{"conversationId": conv.ID})
	bob.sendOK(ctx, EventJoinConversation, map[string]string{"conversationId": conv.ID})

	// No id: typing is fire-and-forget and never acked.
	req.NoError(wsjson.Write(ctx, bob.conn, Envelope{
		Event: EventTypingStart,
		Data:  json.RawMessage(fmt.Sprintf(`{"conversationId":%q}`, conv.ID)),
	}))

	indicator := alice.expectEvent(ctx, "typing")
	var typing struct {
		UserID   string `json:"userId"`
		IsTyping bool   `json:"isTyping"`
	}
	req.NoError(json.Unmarshal(indicator, &typing))
	req.Equal(bob.userID, typing.UserID)
	req.True(typing.IsTyping)
}

func Test_Unknown_Event_Is_Acked_As_Validation_Error(t *testing.T) {
	req := require.New(t)
	stack := newTestStack(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	alice := connect(t, ctx, stack.server.URL, "alice-token")

	frame := alice.send(ctx, "time_travel", nil)
	var ok bool
	req.NoError(json.Unmarshal(frame["ok"], &ok))
	req.False(ok)
}
