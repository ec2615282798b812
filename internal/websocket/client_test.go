package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"denguespot-chat/internal/auth"
	"denguespot-chat/internal/service"
	"denguespot-chat/internal/testutil"

	"github.com/gorilla/websocket"
)

// socketFixture wires a real websocket pair: the server side runs a
// Client with both pumps, the test holds the dialer side.
type socketFixture struct {
	hub      *Hub
	users    *testutil.MockUserRepository
	messages *testutil.MockMessageRepository
	issuer   *auth.TokenIssuer
	conn     *websocket.Conn
}

func newSocketFixture(t *testing.T) *socketFixture {
	t.Helper()

	users := testutil.NewMockUserRepository()
	messages := testutil.NewMockMessageRepository()
	issuer := auth.NewTokenIssuer("test-secret")
	chatService := service.NewChatService(messages)
	moderation := service.NewModerationService(users)

	hub := NewHub()
	hubCtx, hubCancel := context.WithCancel(context.Background())
	t.Cleanup(hubCancel)
	go hub.Run(hubCtx)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upgrader := websocket.Upgrader{}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := NewClient(context.Background(), hub, conn, chatService, moderation, issuer)
		go client.WritePump()
		go client.ReadPump()
	}))
	t.Cleanup(server.Close)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	testutil.AssertNoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return &socketFixture{
		hub:      hub,
		users:    users,
		messages: messages,
		issuer:   issuer,
		conn:     conn,
	}
}

func (f *socketFixture) writeEvent(t *testing.T, event string, payload any) {
	t.Helper()
	data, err := json.Marshal(payload)
	testutil.AssertNoError(t, err)
	err = f.conn.WriteJSON(Envelope{Event: event, Data: data})
	testutil.AssertNoError(t, err)
}

// readEvent drains frames until the named event arrives or the deadline
// passes.
func (f *socketFixture) readEvent(t *testing.T, event string) json.RawMessage {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		f.conn.SetReadDeadline(deadline)
		var env Envelope
		if err := f.conn.ReadJSON(&env); err != nil {
			t.Fatalf("reading for event %q: %v", event, err)
		}
		if env.Event == event {
			return env.Data
		}
	}
	t.Fatalf("event %q never arrived", event)
	return nil
}

func (f *socketFixture) assertNoEvent(t *testing.T, event string) {
	t.Helper()
	f.conn.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	for {
		var env Envelope
		if err := f.conn.ReadJSON(&env); err != nil {
			return
		}
		if env.Event == event {
			t.Fatalf("unexpected event %q", event)
		}
	}
}

func (f *socketFixture) tokenFor(t *testing.T, userID string) string {
	t.Helper()
	user, ok := f.users.Users[userID]
	if !ok {
		t.Fatalf("no such test user %q", userID)
	}
	token, err := f.issuer.Issue(user)
	testutil.AssertNoError(t, err)
	return token
}

func TestClient_JoinRoomFlow(t *testing.T) {
	f := newSocketFixture(t)
	user := testutil.NewTestUser(testutil.WithUserID("user-1"))
	f.users.Users[user.ID] = user

	f.writeEvent(t, EventJoinRoom, JoinRoomPayload{Room: "patna", Token: f.tokenFor(t, "user-1")})

	var joined JoinedPayload
	err := json.Unmarshal(f.readEvent(t, EventJoined), &joined)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, joined.Room, "patna")
	testutil.AssertEqual(t, joined.RoomName, "Patna")

	var count OnlineCountPayload
	err = json.Unmarshal(f.readEvent(t, EventOnlineCount), &count)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, count.Count, 1)
}

func TestClient_JoinRoom_InvalidToken(t *testing.T) {
	f := newSocketFixture(t)

	f.writeEvent(t, EventJoinRoom, JoinRoomPayload{Room: "patna", Token: "garbage"})

	var errPayload ErrorPayload
	err := json.Unmarshal(f.readEvent(t, EventError), &errPayload)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, errPayload.Message, "Authentication required")
}

func TestClient_JoinRoom_UnknownRoom(t *testing.T) {
	f := newSocketFixture(t)
	user := testutil.NewTestUser(testutil.WithUserID("user-1"))
	f.users.Users[user.ID] = user

	f.writeEvent(t, EventJoinRoom, JoinRoomPayload{Room: "atlantis", Token: f.tokenFor(t, "user-1")})

	var errPayload ErrorPayload
	err := json.Unmarshal(f.readEvent(t, EventError), &errPayload)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, errPayload.Message, "Room not found")
}

func TestClient_SendMessage_Broadcast(t *testing.T) {
	f := newSocketFixture(t)
	user := testutil.NewTestUser(testutil.WithUserID("user-1"), testutil.WithUserName("Ravi"))
	f.users.Users[user.ID] = user
	token := f.tokenFor(t, "user-1")

	f.writeEvent(t, EventJoinRoom, JoinRoomPayload{Room: "patna", Token: token})
	f.readEvent(t, EventJoined)

	f.writeEvent(t, EventSendMessage, SendMessagePayload{
		Room:  "patna",
		Text:  "  Fogging drive on Saturday  ",
		Token: token,
	})

	var msg NewMessagePayload
	err := json.Unmarshal(f.readEvent(t, EventNewMessage), &msg)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, msg.Text, "Fogging drive on Saturday")
	testutil.AssertEqual(t, msg.UserName, "Ravi")
	testutil.AssertEqual(t, msg.Room, "patna")
}

func TestClient_SendMessage_TooLong(t *testing.T) {
	f := newSocketFixture(t)
	user := testutil.NewTestUser(testutil.WithUserID("user-1"))
	f.users.Users[user.ID] = user
	token := f.tokenFor(t, "user-1")

	f.writeEvent(t, EventJoinRoom, JoinRoomPayload{Room: "patna", Token: token})
	f.readEvent(t, EventJoined)

	f.writeEvent(t, EventSendMessage, SendMessagePayload{
		Room:  "patna",
		Text:  strings.Repeat("x", 501),
		Token: token,
	})

	var errPayload ErrorPayload
	err := json.Unmarshal(f.readEvent(t, EventError), &errPayload)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, errPayload.Message, "Message is too long")
}

func TestClient_ChatBannedUserDenied(t *testing.T) {
	f := newSocketFixture(t)
	banned := testutil.NewTestUser(testutil.WithUserID("user-1"), testutil.WithChatBanned("spamming"))
	f.users.Users[banned.ID] = banned

	f.writeEvent(t, EventJoinRoom, JoinRoomPayload{Room: "patna", Token: f.tokenFor(t, "user-1")})

	var errPayload ErrorPayload
	err := json.Unmarshal(f.readEvent(t, EventError), &errPayload)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, errPayload.Message, "You are banned from chat: spamming")
}

func TestClient_DeleteMessage_NotOwnerSilentlyIgnored(t *testing.T) {
	f := newSocketFixture(t)
	user := testutil.NewTestUser(testutil.WithUserID("user-2"))
	f.users.Users[user.ID] = user
	msg := testutil.NewTestMessage(
		testutil.WithMessageID("msg-1"),
		testutil.WithMessageUserID("user-1"),
		testutil.WithMessageRoom("patna"),
	)
	f.messages.Messages[msg.ID] = msg

	f.writeEvent(t, EventJoinRoom, JoinRoomPayload{Room: "patna", Token: f.tokenFor(t, "user-2")})
	f.readEvent(t, EventJoined)

	f.writeEvent(t, EventDeleteMessage, DeleteMessagePayload{
		MessageID: "msg-1",
		Token:     f.tokenFor(t, "user-2"),
	})

	// No error, no broadcast: the non-author gets no acknowledgment.
	f.assertNoEvent(t, EventError)
	f.assertNoEvent(t, EventMessageDeleted)

	stored, err := f.messages.GetByID(context.Background(), "msg-1")
	testutil.AssertNoError(t, err)
	if stored.IsDeleted {
		t.Error("message should survive a delete attempt by a non-author")
	}
}

func TestClient_ToggleReaction_UnknownEmojiIgnored(t *testing.T) {
	f := newSocketFixture(t)
	user := testutil.NewTestUser(testutil.WithUserID("user-1"))
	f.users.Users[user.ID] = user
	msg := testutil.NewTestMessage(testutil.WithMessageID("msg-1"), testutil.WithMessageRoom("patna"))
	f.messages.Messages[msg.ID] = msg

	token := f.tokenFor(t, "user-1")
	f.writeEvent(t, EventJoinRoom, JoinRoomPayload{Room: "patna", Token: token})
	f.readEvent(t, EventJoined)

	f.writeEvent(t, EventToggleReaction, ToggleReactionPayload{
		MessageID: "msg-1",
		Emoji:     "🦟",
		Token:     token,
	})

	f.assertNoEvent(t, EventReactionUpdated)
}

func TestEnvelope_JSON(t *testing.T) {
	tests := []struct {
		name    string
		json    string
		want    string
		wantErr bool
	}{
		{
			name: "join room",
			json: `{"event":"join-room","data":{"room":"patna","token":"t"}}`,
			want: EventJoinRoom,
		},
		{
			name: "send message",
			json: `{"event":"send-message","data":{"room":"patna","text":"hi","token":"t"}}`,
			want: EventSendMessage,
		},
		{
			name: "typing without data",
			json: `{"event":"typing"}`,
			want: EventTyping,
		},
		{
			name:    "invalid json",
			json:    `{invalid}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var env Envelope
			err := json.Unmarshal([]byte(tt.json), &env)

			if tt.wantErr {
				testutil.AssertError(t, err)
				return
			}

			testutil.AssertNoError(t, err)
			testutil.AssertEqual(t, env.Event, tt.want)
		})
	}
}

func TestClient_CloseConnection_Idempotent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upgrader := websocket.Upgrader{}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		time.Sleep(100 * time.Millisecond)
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	testutil.AssertNoError(t, err)

	client := NewClient(context.Background(), NewHub(), conn, nil, nil, nil)

	client.closeConnection()
	client.closeConnection()

	if !client.closed.Load() {
		t.Fatal("connection should be marked closed")
	}
}
