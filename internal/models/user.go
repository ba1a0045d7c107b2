package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PlaceholderName подставляется, когда профиль пользователя не удалось получить
const PlaceholderName = "Unknown"

// User представляет пользователя и его счет
type User struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	AvatarURL   string          `json:"avatar_url,omitempty"`
	Campus      string          `json:"campus,omitempty"`
	Coins       int64           `json:"coins"`
	XP          int64           `json:"xp"`
	ItemsTraded int             `json:"items_traded"`
	CO2Saved    decimal.Decimal `json:"co2_saved"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`

	// Дополнительные поля для API
	Badges []string `json:"badges,omitempty"`
}

// Summary возвращает публичную карточку пользователя
func (u *User) Summary() UserSummary {
	name := u.Name
	if name == "" {
		name = PlaceholderName
	}
	return UserSummary{ID: u.ID, Name: name, AvatarURL: u.AvatarURL, Campus: u.Campus}
}

// UserSummary - денормализованная карточка пользователя для выдачи
type UserSummary struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url,omitempty"`
	Campus    string `json:"campus,omitempty"`
}

// PlaceholderSummary используется вместо профиля, который не удалось загрузить
func PlaceholderSummary(userID string) UserSummary {
	return UserSummary{ID: userID, Name: PlaceholderName}
}

// LedgerEntry - запись журнала движения монет
type LedgerEntry struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Amount       int64     `json:"amount"`
	BalanceAfter int64     `json:"balance_after"`
	Reason       string    `json:"reason"`
	TradeID      string    `json:"trade_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// LeaderboardEntry - строка рейтинга пользователей по опыту
type LeaderboardEntry struct {
	Rank int `json:"rank"`
	UserSummary
	XP          int64 `json:"xp"`
	ItemsTraded int   `json:"items_traded"`
}
