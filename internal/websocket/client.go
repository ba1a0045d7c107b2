package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/rajivgeraev/reloop-api/internal/logger"
	"github.com/rajivgeraev/reloop-api/internal/models"
)

const (
	// Максимальное время ожидания для pong от клиента
	pongWait = 60 * time.Second

	// Отправлять ping-сообщения клиенту с этим интервалом
	pingPeriod = (pongWait * 9) / 10

	writeWait = 10 * time.Second

	// Клиент ничего не отправляет, кроме служебных кадров
	maxMessageSize = 4 * 1024
)

// Client представляет собой отдельное WebSocket соединение с потоком одной переписки
type Client struct {
	ID             uuid.UUID
	UserID         string
	ConversationID string

	conn    *websocket.Conn
	stream  <-chan models.Message
	cancel  context.CancelFunc
	manager *Manager
	log     *slog.Logger
}

// NewClient создает новый экземпляр Client. cancel останавливает поток сообщений.
func NewClient(userID, conversationID string, conn *websocket.Conn, stream <-chan models.Message, cancel context.CancelFunc, manager *Manager, log *slog.Logger) *Client {
	return &Client{
		ID:             uuid.New(),
		UserID:         userID,
		ConversationID: conversationID,
		conn:           conn,
		stream:         stream,
		cancel:         cancel,
		manager:        manager,
		log:            log,
	}
}

// Run регистрирует клиента и обслуживает соединение до его закрытия
func (c *Client) Run() {
	c.manager.AddClient(c)
	go c.writePump()
	c.readPump()
}

// Close останавливает поток и отправляет клиенту кадр закрытия
func (c *Client) Close() {
	c.cancel()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
		time.Now().Add(writeWait))
}

// readPump читает служебные кадры и отслеживает разрыв соединения
func (c *Client) readPump() {
	defer func() {
		c.cancel()
		c.manager.RemoveClient(c.ID)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.log.Warn("неожиданное закрытие websocket", slog.String("client_id", c.ID.String()), logger.Err(err))
			}
			return
		}
	}
}

// writePump отправляет сообщения потока клиенту
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.stream:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// поток закрыт: отмена или медленный клиент
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			event, err := newMessageEvent(msg)
			if err != nil {
				c.log.Error("ошибка сериализации сообщения", slog.String("message_id", msg.ID), logger.Err(err))
				continue
			}
			data, err := json.Marshal(event)
			if err != nil {
				c.log.Error("ошибка сериализации события", slog.String("message_id", msg.ID), logger.Err(err))
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.log.Debug("ошибка записи в websocket", slog.String("client_id", c.ID.String()), logger.Err(err))
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
