package models

import (
	"time"
)

// ListingStatus - статус объявления
type ListingStatus string

const (
	ListingAvailable ListingStatus = "available"
	ListingPending   ListingStatus = "pending"
	ListingSold      ListingStatus = "sold"
)

// ListingTTL - срок жизни объявления с момента создания
const ListingTTL = 7 * 24 * time.Hour

// Valid проверяет, что статус входит в допустимый набор
func (s ListingStatus) Valid() bool {
	switch s {
	case ListingAvailable, ListingPending, ListingSold:
		return true
	}
	return false
}

// Listing представляет объявление в системе
type Listing struct {
	ID          string        `json:"id"`
	SellerID    string        `json:"seller_id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Category    string        `json:"category"`
	Condition   string        `json:"condition"`
	Price       int64         `json:"price"`
	Images      []string      `json:"images"`
	Status      ListingStatus `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	ExpiresAt   time.Time     `json:"expires_at"`

	// Дополнительные поля для API
	Seller *UserSummary `json:"seller,omitempty"`
}

// ListingFilter задает выборку объявлений
type ListingFilter struct {
	Status   ListingStatus
	Category string
	SellerID string
	Limit    int
}
