package models

import (
	"time"
)

// TradeStatus - статус обмена
type TradeStatus string

const (
	TradePending   TradeStatus = "pending"
	TradeCompleted TradeStatus = "completed"
	TradeRejected  TradeStatus = "rejected"
)

// Terminal сообщает, что обмен уже не может менять статус
func (s TradeStatus) Terminal() bool {
	return s == TradeCompleted || s == TradeRejected
}

// Trade представляет сделку покупателя с продавцом по одному объявлению
type Trade struct {
	ID        string      `json:"id"`
	ListingID string      `json:"listing_id"`
	BuyerID   string      `json:"buyer_id"`
	SellerID  string      `json:"seller_id"`
	Status    TradeStatus `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`

	// Дополнительные поля для API
	Listing *Listing `json:"listing,omitempty"`
	Role    string   `json:"role,omitempty"` // buyer, seller
}
