package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rajivgeraev/reloop-api/internal/apperrors"
	"github.com/rajivgeraev/reloop-api/internal/auth"
	"github.com/rajivgeraev/reloop-api/internal/logger"
	"github.com/rajivgeraev/reloop-api/internal/mocks"
	"github.com/rajivgeraev/reloop-api/internal/models"
)

type fakeStreamer struct {
	ch  chan models.Message
	ctx chan context.Context
}

func (f *fakeStreamer) StreamMessages(ctx context.Context, conversationID, userID string) (<-chan models.Message, error) {
	if userID != "buyer" {
		return nil, apperrors.ErrNotParticipant
	}
	if conversationID != "c1" {
		return nil, apperrors.ErrChatNotFound
	}
	f.ctx <- ctx
	return f.ch, nil
}

func newTestServer(t *testing.T) (*Server, *httptest.Server, *fakeStreamer) {
	t.Helper()
	ctrl := gomock.NewController(t)
	verifier := mocks.NewMockTokenVerifier(ctrl)
	verifier.EXPECT().Verify(gomock.Any(), "buyer-token").Return(&auth.Identity{UserID: "buyer"}, nil).AnyTimes()
	verifier.EXPECT().Verify(gomock.Any(), "other-token").Return(&auth.Identity{UserID: "other"}, nil).AnyTimes()
	verifier.EXPECT().Verify(gomock.Any(), "bad-token").Return(nil, assert.AnError).AnyTimes()

	streamer := &fakeStreamer{ch: make(chan models.Message, 4), ctx: make(chan context.Context, 1)}
	s := NewServer(":0", verifier, streamer, logger.Discard())
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts, streamer
}

func wsURL(ts *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + path
}

func TestChatStream_DeliversMessages(t *testing.T) {
	s, ts, streamer := newTestServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, "/ws/chats/c1?token=buyer-token"), nil)
	require.NoError(t, err)
	defer conn.Close()

	streamCtx := <-streamer.ctx
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	streamer.ch <- models.Message{ID: "01A", ConversationID: "c1", SenderID: "seller", Text: "Привет", CreatedAt: created}

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var event Event
	require.NoError(t, json.Unmarshal(data, &event))
	assert.Equal(t, EventNewMessage, event.Type)
	assert.Equal(t, "c1", event.ChatID)
	assert.Equal(t, "01A", event.MessageID)

	var msg models.Message
	require.NoError(t, json.Unmarshal(event.Payload, &msg))
	assert.Equal(t, "Привет", msg.Text)

	assert.Eventually(t, func() bool { return s.Manager().UserConnections("buyer") == 1 }, time.Second, 10*time.Millisecond)

	// разрыв соединения клиентом отменяет поток
	require.NoError(t, conn.Close())
	select {
	case <-streamCtx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("поток не отменен после закрытия соединения")
	}
	assert.Eventually(t, func() bool { return s.Manager().Count() == 0 }, time.Second, 10*time.Millisecond)
}

func TestChatStream_ClosedStreamClosesSocket(t *testing.T) {
	_, ts, streamer := newTestServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, "/ws/chats/c1?token=buyer-token"), nil)
	require.NoError(t, err)
	defer conn.Close()

	<-streamer.ctx
	close(streamer.ch)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNoStatusReceived, websocket.CloseNormalClosure), "получено: %v", err)
}

func TestChatStream_Shutdown(t *testing.T) {
	s, ts, streamer := newTestServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, "/ws/chats/c1?token=buyer-token"), nil)
	require.NoError(t, err)
	defer conn.Close()

	streamCtx := <-streamer.ctx
	require.Eventually(t, func() bool { return s.Manager().Count() == 1 }, time.Second, 10*time.Millisecond)

	s.Manager().Shutdown()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "получено: %v", err)
	<-streamCtx.Done()
}

func TestChatStream_Rejections(t *testing.T) {
	_, ts, _ := newTestServer(t)

	tests := []struct {
		name   string
		path   string
		status int
	}{
		{"без токена", "/ws/chats/c1", http.StatusUnauthorized},
		{"плохой токен", "/ws/chats/c1?token=bad-token", http.StatusUnauthorized},
		{"не участник", "/ws/chats/c1?token=other-token", http.StatusForbidden},
		{"нет переписки", "/ws/chats/missing?token=buyer-token", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts, tt.path), nil)
			require.ErrorIs(t, err, websocket.ErrBadHandshake)
			require.NotNil(t, resp)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}
