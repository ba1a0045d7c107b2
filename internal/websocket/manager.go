package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rajivgeraev/reloop-api/internal/models"
)

// EventType определяет тип события WebSocket
type EventType string

const (
	EventNewMessage EventType = "new_message"
	EventConnected  EventType = "connected"
)

// Event представляет структуру сообщения для WebSocket
type Event struct {
	Type      EventType       `json:"type"`
	ChatID    string          `json:"chat_id,omitempty"`
	MessageID string          `json:"message_id,omitempty"`
	UserID    string          `json:"user_id,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// newMessageEvent упаковывает сообщение переписки в событие
func newMessageEvent(msg models.Message) (Event, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return Event{}, err
	}
	return Event{
		Type:      EventNewMessage,
		ChatID:    msg.ConversationID,
		MessageID: msg.ID,
		UserID:    msg.SenderID,
		Timestamp: msg.CreatedAt,
		Payload:   payload,
	}, nil
}

// Manager учитывает активные WebSocket соединения
type Manager struct {
	clients      map[uuid.UUID]*Client
	clientsMutex sync.RWMutex
	userClients  map[string]map[uuid.UUID]bool // userID -> map[clientID]bool
	log          *slog.Logger
}

// NewManager создает новый экземпляр Manager
func NewManager(log *slog.Logger) *Manager {
	return &Manager{
		clients:     make(map[uuid.UUID]*Client),
		userClients: make(map[string]map[uuid.UUID]bool),
		log:         log,
	}
}

// AddClient регистрирует нового клиента
func (m *Manager) AddClient(client *Client) {
	m.clientsMutex.Lock()
	m.clients[client.ID] = client
	if _, exists := m.userClients[client.UserID]; !exists {
		m.userClients[client.UserID] = make(map[uuid.UUID]bool)
	}
	m.userClients[client.UserID][client.ID] = true
	m.clientsMutex.Unlock()

	m.log.Debug("websocket клиент подключен",
		slog.String("client_id", client.ID.String()),
		slog.String("user_id", client.UserID),
		slog.String("conversation_id", client.ConversationID),
	)
}

// RemoveClient удаляет клиента
func (m *Manager) RemoveClient(clientID uuid.UUID) {
	m.clientsMutex.Lock()
	client, exists := m.clients[clientID]
	if !exists {
		m.clientsMutex.Unlock()
		return
	}
	delete(m.clients, clientID)
	if clients, ok := m.userClients[client.UserID]; ok {
		delete(clients, clientID)
		if len(clients) == 0 {
			delete(m.userClients, client.UserID)
		}
	}
	m.clientsMutex.Unlock()

	m.log.Debug("websocket клиент отключен",
		slog.String("client_id", clientID.String()),
		slog.String("user_id", client.UserID),
	)
}

// Count возвращает число активных соединений
func (m *Manager) Count() int {
	m.clientsMutex.RLock()
	defer m.clientsMutex.RUnlock()
	return len(m.clients)
}

// UserConnections возвращает число соединений пользователя
func (m *Manager) UserConnections(userID string) int {
	m.clientsMutex.RLock()
	defer m.clientsMutex.RUnlock()
	return len(m.userClients[userID])
}

// Shutdown закрывает все соединения
func (m *Manager) Shutdown() {
	m.clientsMutex.RLock()
	clients := make([]*Client, 0, len(m.clients))
	for _, c := range m.clients {
		clients = append(clients, c)
	}
	m.clientsMutex.RUnlock()

	for _, c := range clients {
		c.Close()
	}
}
