package models

import (
	"time"
)

// Conversation представляет переписку покупателя и продавца в контексте объявления
type Conversation struct {
	ID            string    `json:"id"`
	Participants  []string  `json:"participants"`
	BuyerID       string    `json:"buyer_id"`
	SellerID      string    `json:"seller_id"`
	ListingID     string    `json:"listing_id,omitempty"`
	LastMessage   string    `json:"last_message"`
	LastMessageAt time.Time `json:"last_message_at"`
	CreatedAt     time.Time `json:"created_at"`

	// Дополнительные поля для API
	Role      string       `json:"role,omitempty"` // buying, selling
	OtherUser *UserSummary `json:"other_user,omitempty"`
	Listing   *Listing     `json:"listing,omitempty"`
}

// HasParticipant проверяет, участвует ли пользователь в переписке
func (c *Conversation) HasParticipant(userID string) bool {
	for _, id := range c.Participants {
		if id == userID {
			return true
		}
	}
	return false
}

// OtherParticipant возвращает второго участника переписки
func (c *Conversation) OtherParticipant(userID string) string {
	for _, id := range c.Participants {
		if id != userID {
			return id
		}
	}
	return ""
}

// Message представляет сообщение в переписке
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	Text           string    `json:"text"`
	IsSystem       bool      `json:"is_system"`
	CreatedAt      time.Time `json:"created_at"`
}

// Before задает порядок сообщений: по времени, затем по ID
func (m Message) Before(other Message) bool {
	if m.CreatedAt.Equal(other.CreatedAt) {
		return m.ID < other.ID
	}
	return m.CreatedAt.Before(other.CreatedAt)
}
