package chat

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/rajivgeraev/reloop-api/internal/models"
)

// Размер буфера подписки по умолчанию
const defaultSubscriptionBuffer = 64

// Subscription - подписка на новые сообщения одной переписки.
// Канал C закрывается при Close или если подписчик не успевает читать.
type Subscription struct {
	ID             uuid.UUID
	ConversationID string
	C              <-chan models.Message

	ch     chan models.Message
	broker *Broker
	once   sync.Once
}

// Close отписывает подписчика. Повторный вызов безопасен.
func (s *Subscription) Close() {
	s.broker.remove(s)
}

// Broker рассылает сообщения подписчикам внутри процесса
type Broker struct {
	mu   sync.RWMutex
	subs map[string]map[uuid.UUID]*Subscription // conversationID -> подписчики
	log  *slog.Logger
}

// NewBroker создает новый экземпляр Broker
func NewBroker(log *slog.Logger) *Broker {
	return &Broker{
		subs: make(map[string]map[uuid.UUID]*Subscription),
		log:  log,
	}
}

// Subscribe регистрирует подписчика на переписку
func (b *Broker) Subscribe(conversationID string, buffer int) *Subscription {
	if buffer <= 0 {
		buffer = defaultSubscriptionBuffer
	}
	ch := make(chan models.Message, buffer)
	sub := &Subscription{
		ID:             uuid.New(),
		ConversationID: conversationID,
		C:              ch,
		ch:             ch,
		broker:         b,
	}

	b.mu.Lock()
	if _, ok := b.subs[conversationID]; !ok {
		b.subs[conversationID] = make(map[uuid.UUID]*Subscription)
	}
	b.subs[conversationID][sub.ID] = sub
	b.mu.Unlock()

	return sub
}

// Publish отправляет сообщение всем подписчикам переписки без блокировки.
// Медленный подписчик с заполненным буфером отключается.
func (b *Broker) Publish(msg models.Message) {
	var slow []*Subscription

	b.mu.RLock()
	for _, sub := range b.subs[msg.ConversationID] {
		select {
		case sub.ch <- msg:
		default:
			slow = append(slow, sub)
		}
	}
	b.mu.RUnlock()

	for _, sub := range slow {
		b.log.Warn("буфер подписчика заполнен, отключаем",
			slog.String("conversation_id", sub.ConversationID),
			slog.String("subscription_id", sub.ID.String()),
		)
		b.remove(sub)
	}
}

// Subscribers возвращает число подписчиков переписки
func (b *Broker) Subscribers(conversationID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[conversationID])
}

// Pending возвращает число сообщений в буферах подписчиков переписки
func (b *Broker) Pending(conversationID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := 0
	for _, sub := range b.subs[conversationID] {
		n += len(sub.ch)
	}
	return n
}

func (b *Broker) remove(sub *Subscription) {
	sub.once.Do(func() {
		b.mu.Lock()
		if subs, ok := b.subs[sub.ConversationID]; ok {
			delete(subs, sub.ID)
			if len(subs) == 0 {
				delete(b.subs, sub.ConversationID)
			}
		}
		// закрываем под блокировкой записи: Publish не пишет в закрытый канал
		close(sub.ch)
		b.mu.Unlock()
	})
}
