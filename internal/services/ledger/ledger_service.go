package ledger

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rajivgeraev/reloop-api/internal/apperrors"
	"github.com/rajivgeraev/reloop-api/internal/logger"
	"github.com/rajivgeraev/reloop-api/internal/models"
	"github.com/rajivgeraev/reloop-api/internal/repository"
)

const (
	DefaultHistoryLimit     = 50
	DefaultLeaderboardLimit = 20
	maxLimit                = 100
)

// CO2PerTrade - экономия CO2, начисляемая продавцу за завершенный обмен
var CO2PerTrade = decimal.RequireFromString("2.5")

// LedgerService управляет балансами монет вне и внутри расчета по сделке
type LedgerService struct {
	store repository.Store
	log   *slog.Logger

	// последний успешно прочитанный баланс по userID
	balances sync.Map
}

// NewLedgerService создает новый экземпляр LedgerService
func NewLedgerService(store repository.Store, log *slog.Logger) *LedgerService {
	return &LedgerService{store: store, log: log}
}

// GetBalance читает баланс; если чтение не удалось, отдает последнее известное значение.
// Для несуществующего пользователя баланс равен нулю.
func (s *LedgerService) GetBalance(ctx context.Context, userID string) (int64, error) {
	if userID == "" {
		return 0, apperrors.ErrNotAuthenticated
	}

	u, err := s.store.GetUser(ctx, userID)
	if err == nil {
		s.Remember(userID, u.Coins)
		return u.Coins, nil
	}
	if apperrors.Is(err, apperrors.CodeNotFound) {
		return 0, nil
	}

	if cached, ok := s.balances.Load(userID); ok {
		s.log.Warn("баланс отдан из кеша", slog.String("user_id", userID), logger.Err(err))
		return cached.(int64), nil
	}
	return 0, apperrors.Internal("не удалось получить баланс", err)
}

// Remember обновляет кешированный баланс
func (s *LedgerService) Remember(userID string, balance int64) {
	s.balances.Store(userID, balance)
}

// Grant начисляет монеты вне сделки и добавляет опыт floor(amount/2)
func (s *LedgerService) Grant(ctx context.Context, userID string, amount int64, reason string) (int64, error) {
	var balance int64
	err := s.store.WithTx(ctx, func(ctx context.Context, tx repository.Repository) error {
		var err error
		balance, err = s.GrantTx(ctx, tx, userID, amount, reason)
		return err
	})
	if err != nil {
		return 0, err
	}

	s.Remember(userID, balance)
	s.log.Info("начислены монеты",
		slog.String("user_id", userID),
		slog.Int64("amount", amount),
		slog.String("reason", reason),
	)
	return balance, nil
}

// GrantTx начисляет монеты внутри транзакции tx вызывающего.
// Кеш баланса и журнал сервиса не трогаются: после фиксации это делает вызывающий.
func (s *LedgerService) GrantTx(ctx context.Context, tx repository.Repository, userID string, amount int64, reason string) (int64, error) {
	if userID == "" {
		return 0, apperrors.ErrNotAuthenticated
	}
	if amount <= 0 {
		return 0, apperrors.InvalidArg("сумма начисления должна быть положительной")
	}
	if reason == "" {
		reason = "grant"
	}

	balance, err := tx.AddCoins(ctx, userID, amount, amount/2)
	if err != nil {
		return 0, err
	}
	err = tx.AppendLedgerEntry(ctx, &models.LedgerEntry{
		ID:           uuid.NewString(),
		UserID:       userID,
		Amount:       amount,
		BalanceAfter: balance,
		Reason:       reason,
	})
	if err != nil {
		return 0, err
	}

	return balance, nil
}

// Settlement - итог расчета по сделке
type Settlement struct {
	BuyerBalance  int64
	SellerBalance int64
}

// Settle переводит price от покупателя продавцу внутри транзакции tx.
// Оба счета перечитываются с блокировкой в порядке возрастания ID.
// При нехватке средств ничего не изменяется.
func (s *LedgerService) Settle(ctx context.Context, tx repository.Repository, buyerID, sellerID string, price int64, tradeID string) (*Settlement, error) {
	if price <= 0 {
		return nil, apperrors.InvalidArg("цена должна быть положительной")
	}

	ids := []string{buyerID, sellerID}
	sort.Strings(ids)
	accounts := make(map[string]*models.User, 2)
	for _, id := range ids {
		u, err := tx.GetUserForUpdate(ctx, id)
		if err != nil {
			return nil, err
		}
		accounts[id] = u
	}

	buyer, seller := accounts[buyerID], accounts[sellerID]
	if buyer.Coins < price {
		return nil, apperrors.ErrInsufficientFunds(buyer.Coins, price)
	}

	buyer.Coins -= price
	buyer.ItemsTraded++
	seller.Coins += price
	seller.ItemsTraded++
	seller.CO2Saved = seller.CO2Saved.Add(CO2PerTrade)

	for _, u := range []*models.User{buyer, seller} {
		if err := tx.UpdateUserStats(ctx, u); err != nil {
			return nil, err
		}
	}

	entries := []*models.LedgerEntry{
		{ID: uuid.NewString(), UserID: buyerID, Amount: -price, BalanceAfter: buyer.Coins, Reason: "trade_debit", TradeID: tradeID},
		{ID: uuid.NewString(), UserID: sellerID, Amount: price, BalanceAfter: seller.Coins, Reason: "trade_credit", TradeID: tradeID},
	}
	for _, e := range entries {
		if err := tx.AppendLedgerEntry(ctx, e); err != nil {
			return nil, err
		}
	}

	return &Settlement{BuyerBalance: buyer.Coins, SellerBalance: seller.Coins}, nil
}

// History возвращает журнал движения монет пользователя, новые записи первыми
func (s *LedgerService) History(ctx context.Context, userID string, limit int) ([]models.LedgerEntry, error) {
	if userID == "" {
		return nil, apperrors.ErrNotAuthenticated
	}
	return s.store.ListLedgerEntries(ctx, userID, clampLimit(limit, DefaultHistoryLimit))
}

// Leaderboard возвращает рейтинг по опыту, опционально в пределах кампуса
func (s *LedgerService) Leaderboard(ctx context.Context, campus string, limit int) ([]models.LeaderboardEntry, error) {
	users, err := s.store.Leaderboard(ctx, campus, clampLimit(limit, DefaultLeaderboardLimit))
	if err != nil {
		return nil, apperrors.Internal("не удалось получить рейтинг", err)
	}

	res := make([]models.LeaderboardEntry, 0, len(users))
	for i := range users {
		res = append(res, models.LeaderboardEntry{
			Rank:        i + 1,
			UserSummary: users[i].Summary(),
			XP:          users[i].XP,
			ItemsTraded: users[i].ItemsTraded,
		})
	}
	return res, nil
}

func clampLimit(limit, def int) int {
	if limit <= 0 {
		return def
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}
