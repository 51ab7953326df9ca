package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

type testChatSuite struct {
	BaseSuite
}

func TestChatSuite(t *testing.T) {
	suite.Run(t, &testChatSuite{})
}

type session struct {
	AccessToken string `json:"accessToken"`
	User        struct {
		ID string `json:"id"`
	} `json:"user"`
}

type envelope struct {
	ID    int64           `json:"id,omitempty"`
	Event string          `json:"event,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
	Ok    *bool           `json:"ok,omitempty"`
	Error string          `json:"error,omitempty"`
	// Message is present on acknowledged sends.
	Message json.RawMessage `json:"message,omitempty"`
}

func (s *testChatSuite) readUntil(ctx context.Context, conn *websocket.Conn, match func(envelope) bool) envelope {
	for {
		var frame envelope
		s.Require().NoError(wsjson.Read(ctx, conn, &frame))
		if match(frame) {
			return frame
		}
	}
}

func (s *testChatSuite) TestFullConversationFlow() {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	// Unique addresses per run so the scenario can be replayed against the
	// same server instance.
	run := uuid.New().String()[:8]
	var alice, bob session

	s.Run("Step 0: Register two accounts", func() {
		s.Header("Registering Alice and Bob")
		resp := s.JSON(http.MethodPost, "/api/auth/register", "", map[string]string{
			"name": "Alice", "email": fmt.Sprintf("alice-%s@example.com", run), "password": "ComplexPass123!",
		}, &alice)
		s.Require().Equal(http.StatusCreated, resp.StatusCode)

		resp = s.JSON(http.MethodPost, "/api/auth/register", "", map[string]string{
			"name": "Bob", "email": fmt.Sprintf("bob-%s@example.com", run), "password": "ComplexPass123!",
		}, &bob)
		s.Require().Equal(http.StatusCreated, resp.StatusCode)
	})

	var convID string
	s.Run("Step 1: Alice starts a direct conversation", func() {
		s.Header("Opening the direct conversation")
		var conv struct {
			ID string `json:"id"`
		}
		resp := s.JSON(http.MethodPost, "/api/conversations/start", alice.AccessToken,
			map[string]string{"participantId": bob.User.ID}, &conv)
		s.Require().Equal(http.StatusOK, resp.StatusCode)
		s.Require().NotEmpty(conv.ID)
		convID = conv.ID
	})

	s.Run("Step 2: Exchange a message and a read receipt over websockets", func() {
		s.Header("Connecting both parties")
		aliceConn, aliceID := s.Dial(ctx, alice.AccessToken)
		defer aliceConn.Close(websocket.StatusNormalClosure, "")
		bobConn, _ := s.Dial(ctx, bob.AccessToken)
		defer bobConn.Close(websocket.StatusNormalClosure, "")
		s.Require().Equal(alice.User.ID, aliceID)

		join := func(conn *websocket.Conn, id int64) {
			s.Require().NoError(wsjson.Write(ctx, conn, envelope{
				ID: id, Event: "join_conversation",
				Data: json.RawMessage(fmt.Sprintf(`{"conversationId":%q}`, convID)),
			}))
			ack := s.readUntil(ctx, conn, func(e envelope) bool { return e.Ok != nil && e.ID == id })
			s.Require().True(*ack.Ok, "join rejected: %s", ack.Error)
		}
		join(aliceConn, 1)
		join(bobConn, 1)

		s.Header("Alice sends, Bob receives")
		s.Require().NoError(wsjson.Write(ctx, aliceConn, envelope{
			ID: 2, Event: "send_message",
			Data: json.RawMessage(fmt.Sprintf(`{"conversationId":%q,"text":"hello from the outside"}`, convID)),
		}))
		ack := s.readUntil(ctx, aliceConn, func(e envelope) bool { return e.Ok != nil && e.ID == 2 })
		s.Require().True(*ack.Ok, "send rejected: %s", ack.Error)

		var sent struct {
			ID string `json:"id"`
		}
		s.Require().NoError(json.Unmarshal(ack.Message, &sent))

		pushed := s.readUntil(ctx, bobConn, func(e envelope) bool { return e.Event == "message:new" })
		var payload struct {
			Message struct {
				ID   string `json:"id"`
				Text string `json:"text"`
			} `json:"message"`
		}
		s.Require().NoError(json.Unmarshal(pushed.Data, &payload))
		s.Require().Equal(sent.ID, payload.Message.ID)
		s.Require().Equal("hello from the outside", payload.Message.Text)

		update := s.readUntil(ctx, bobConn, func(e envelope) bool { return e.Event == "conversation:update" })
		s.Require().NotNil(update.Data)

		s.Header("Bob acknowledges, Alice observes the receipt")
		s.Require().NoError(wsjson.Write(ctx, bobConn, envelope{
			ID: 2, Event: "message:read",
			Data: json.RawMessage(fmt.Sprintf(`{"conversationId":%q,"messageId":%q}`, convID, sent.ID)),
		}))
		readAck := s.readUntil(ctx, bobConn, func(e envelope) bool { return e.Ok != nil && e.ID == 2 })
		s.Require().True(*readAck.Ok)

		receipt := s.readUntil(ctx, aliceConn, func(e envelope) bool { return e.Event == "message:read" })
		var read struct {
			MessageID string `json:"messageId"`
			UserID    string `json:"userId"`
		}
		s.Require().NoError(json.Unmarshal(receipt.Data, &read))
		s.Require().Equal(sent.ID, read.MessageID)
		s.Require().Equal(bob.User.ID, read.UserID)
	})

	s.Run("Step 3: History shows the exchange", func() {
		s.Header("Paging the history")
		var history struct {
			Messages []struct {
				Text   string   `json:"text"`
				ReadBy []string `json:"readBy"`
			} `json:"messages"`
			HasMore bool `json:"hasMore"`
		}
		resp := s.JSON(http.MethodGet, "/api/conversations/"+convID+"/messages?page=1&limit=10",
			bob.AccessToken, nil, &history)
		s.Require().Equal(http.StatusOK, resp.StatusCode)
		s.Require().NotEmpty(history.Messages)
		last := history.Messages[len(history.Messages)-1]
		s.Require().Equal("hello from the outside", last.Text)
		s.Require().Contains(last.ReadBy, alice.User.ID)
		s.Require().Contains(last.ReadBy, bob.User.ID)
	})
}
