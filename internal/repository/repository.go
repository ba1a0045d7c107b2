package repository

import (
	"context"
	"time"

	"github.com/rajivgeraev/reloop-api/internal/models"
)

// Repository - контракт хранилища ядра. Все методы доступны как вне транзакции,
// так и внутри WithTx.
type Repository interface {
	// Пользователи и счета
	EnsureUser(ctx context.Context, user *models.User) (created bool, err error)
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUsers(ctx context.Context, ids []string) (map[string]*models.User, error)
	// Блокирует запись пользователя до конца транзакции и читает актуальное значение
	GetUserForUpdate(ctx context.Context, id string) (*models.User, error)
	UpdateUserStats(ctx context.Context, user *models.User) error
	AddCoins(ctx context.Context, userID string, coins, xp int64) (balance int64, err error)
	Leaderboard(ctx context.Context, campus string, limit int) ([]models.User, error)

	// Журнал монет
	AppendLedgerEntry(ctx context.Context, entry *models.LedgerEntry) error
	ListLedgerEntries(ctx context.Context, userID string, limit int) ([]models.LedgerEntry, error)

	// Объявления
	CreateListing(ctx context.Context, listing *models.Listing) error
	GetListing(ctx context.Context, id string) (*models.Listing, error)
	GetListingForUpdate(ctx context.Context, id string) (*models.Listing, error)
	GetListings(ctx context.Context, ids []string) (map[string]*models.Listing, error)
	ListListings(ctx context.Context, filter models.ListingFilter) ([]models.Listing, error)
	UpdateListingStatus(ctx context.Context, id string, status models.ListingStatus) error

	// Обмены
	CreateTrade(ctx context.Context, trade *models.Trade) error
	GetTrade(ctx context.Context, id string) (*models.Trade, error)
	GetTradeForUpdate(ctx context.Context, id string) (*models.Trade, error)
	UpdateTradeStatus(ctx context.Context, id string, status models.TradeStatus) error
	ListUserTrades(ctx context.Context, userID string) ([]models.Trade, error)

	// Переписки
	CreateConversation(ctx context.Context, conv *models.Conversation) error
	GetConversation(ctx context.Context, id string) (*models.Conversation, error)
	// Переписки, где участвует пользователь, по убыванию last_message_at
	ListConversationsByParticipant(ctx context.Context, userID string) ([]models.Conversation, error)
	InsertMessage(ctx context.Context, msg *models.Message) error
	TouchConversation(ctx context.Context, id, lastMessage string, at time.Time) error
	ListMessages(ctx context.Context, conversationID string) ([]models.Message, error)

	// Миссии и значки
	IncrementMission(ctx context.Context, userID, kind string, count int) (total int, err error)
	AwardBadge(ctx context.Context, userID, badge string) (awarded bool, err error)
	ListBadges(ctx context.Context, userID string) ([]string, error)
}

// Store - хранилище с поддержкой изолированных транзакций чтение-изменение-запись.
// WithTx повторяет fn при конфликтах конкурентного доступа и после исчерпания
// попыток возвращает apperrors.ErrTxConflict.
type Store interface {
	Repository
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Repository) error) error
}
