package trade

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rajivgeraev/reloop-api/internal/apperrors"
	"github.com/rajivgeraev/reloop-api/internal/logger"
	"github.com/rajivgeraev/reloop-api/internal/models"
	"github.com/rajivgeraev/reloop-api/internal/notifier"
	"github.com/rajivgeraev/reloop-api/internal/repository"
	"github.com/rajivgeraev/reloop-api/internal/services/ledger"
)

const (
	RoleBuyer  = "buyer"
	RoleSeller = "seller"
)

// ConversationOpener находит или создает переписку для обмена
type ConversationOpener interface {
	FindOrCreate(ctx context.Context, buyerID, sellerID, listingID string) (conversationID string, existing bool, err error)
}

// Settler выполняет денежную часть расчета внутри транзакции
type Settler interface {
	Settle(ctx context.Context, tx repository.Repository, buyerID, sellerID string, price int64, tradeID string) (*ledger.Settlement, error)
	Remember(userID string, balance int64)
}

// RequestResult - результат запроса обмена. Пустой ConversationID означает,
// что обмен создан, а переписку нужно создать повторным запросом.
type RequestResult struct {
	TradeID        string `json:"trade_id"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// TradeService координирует жизненный цикл обмена: pending -> completed | rejected
type TradeService struct {
	store    repository.Store
	ledger   Settler
	chats    ConversationOpener
	notifier notifier.ProgressNotifier
	log      *slog.Logger
	now      func() time.Time
}

// NewTradeService создает новый экземпляр TradeService
func NewTradeService(store repository.Store, settler Settler, chats ConversationOpener, n notifier.ProgressNotifier, log *slog.Logger) *TradeService {
	if n == nil {
		n = notifier.Nop{}
	}
	return &TradeService{
		store:    store,
		ledger:   settler,
		chats:    chats,
		notifier: n,
		log:      log,
		now:      time.Now,
	}
}

// RequestTrade создает обмен и переводит объявление в pending.
// Проверка статуса, вставка обмена и смена статуса выполняются в одной транзакции.
func (s *TradeService) RequestTrade(ctx context.Context, buyerID, listingID string) (*RequestResult, error) {
	if buyerID == "" {
		return nil, apperrors.ErrNotAuthenticated
	}
	if _, err := s.store.GetUser(ctx, buyerID); err != nil {
		if apperrors.Is(err, apperrors.CodeNotFound) {
			return nil, apperrors.ErrUnknownUser
		}
		return nil, err
	}

	listing, err := s.store.GetListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if listing.SellerID == buyerID {
		return nil, apperrors.ErrSelfTrade
	}

	now := s.now().UTC()
	t := &models.Trade{
		ID:        uuid.NewString(),
		ListingID: listingID,
		BuyerID:   buyerID,
		SellerID:  listing.SellerID,
		Status:    models.TradePending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.store.WithTx(ctx, func(ctx context.Context, tx repository.Repository) error {
		l, err := tx.GetListingForUpdate(ctx, listingID)
		if err != nil {
			return err
		}
		// статус объявления служит блокировкой: не более одного pending обмена
		if l.Status != models.ListingAvailable {
			return apperrors.ErrListingUnavailable
		}
		if err := tx.CreateTrade(ctx, t); err != nil {
			return err
		}
		return tx.UpdateListingStatus(ctx, listingID, models.ListingPending)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("создан обмен",
		slog.String("trade_id", t.ID),
		slog.String("listing_id", listingID),
		slog.String("buyer_id", buyerID),
	)

	res := &RequestResult{TradeID: t.ID}
	convID, _, err := s.chats.FindOrCreate(ctx, buyerID, listing.SellerID, listingID)
	if err != nil {
		s.log.Warn("обмен создан, но переписку открыть не удалось",
			slog.String("trade_id", t.ID),
			logger.Err(err),
		)
		return res, nil
	}
	res.ConversationID = convID
	return res, nil
}

// AcceptTrade - атомарный расчет. Принять обмен может только продавец.
// При любой ошибке все четыре записи (два счета, обмен, объявление) остаются прежними.
func (s *TradeService) AcceptTrade(ctx context.Context, actorID, tradeID string) (*models.Trade, error) {
	if actorID == "" {
		return nil, apperrors.ErrNotAuthenticated
	}

	t, err := s.store.GetTrade(ctx, tradeID)
	if err != nil {
		return nil, err
	}
	if t.SellerID != actorID {
		return nil, apperrors.Forbidden("принять обмен может только продавец")
	}
	if t.Status.Terminal() {
		return nil, apperrors.ErrTradeNotPending
	}

	var settlement *ledger.Settlement
	err = s.store.WithTx(ctx, func(ctx context.Context, tx repository.Repository) error {
		cur, err := tx.GetTradeForUpdate(ctx, tradeID)
		if err != nil {
			return err
		}
		if cur.Status != models.TradePending {
			return apperrors.ErrTradeNotPending
		}

		l, err := tx.GetListingForUpdate(ctx, cur.ListingID)
		if err != nil {
			return err
		}
		if l.Status != models.ListingPending {
			return apperrors.ErrListingNotPending
		}

		settlement, err = s.ledger.Settle(ctx, tx, cur.BuyerID, cur.SellerID, l.Price, cur.ID)
		if err != nil {
			return err
		}
		if err := tx.UpdateTradeStatus(ctx, cur.ID, models.TradeCompleted); err != nil {
			return err
		}
		return tx.UpdateListingStatus(ctx, l.ID, models.ListingSold)
	})
	if err != nil {
		return nil, err
	}

	s.ledger.Remember(t.BuyerID, settlement.BuyerBalance)
	s.ledger.Remember(t.SellerID, settlement.SellerBalance)
	s.log.Info("обмен завершен", slog.String("trade_id", tradeID))

	for _, userID := range []string{t.BuyerID, t.SellerID} {
		if err := s.notifier.NotifyProgress(ctx, userID, notifier.EventCompleteTrade, 1); err != nil {
			s.log.Warn("ошибка уведомления о прогрессе", slog.String("user_id", userID), logger.Err(err))
		}
	}

	t.Status = models.TradeCompleted
	return t, nil
}

// RejectTrade отклоняет (продавец) или отзывает (покупатель) обмен и
// возвращает объявление в available. Для завершенного обмена - InvalidState.
func (s *TradeService) RejectTrade(ctx context.Context, actorID, tradeID string) (*models.Trade, error) {
	if actorID == "" {
		return nil, apperrors.ErrNotAuthenticated
	}

	t, err := s.store.GetTrade(ctx, tradeID)
	if err != nil {
		return nil, err
	}
	if actorID != t.SellerID && actorID != t.BuyerID {
		return nil, apperrors.Forbidden("отклонить обмен может только его участник")
	}

	err = s.store.WithTx(ctx, func(ctx context.Context, tx repository.Repository) error {
		cur, err := tx.GetTradeForUpdate(ctx, tradeID)
		if err != nil {
			return err
		}
		if cur.Status.Terminal() {
			return apperrors.ErrTradeNotPending
		}
		if err := tx.UpdateTradeStatus(ctx, cur.ID, models.TradeRejected); err != nil {
			return err
		}

		l, err := tx.GetListingForUpdate(ctx, cur.ListingID)
		if err != nil {
			return err
		}
		if l.Status != models.ListingPending {
			return nil
		}
		return tx.UpdateListingStatus(ctx, l.ID, models.ListingAvailable)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("обмен отклонен", slog.String("trade_id", tradeID), slog.String("actor_id", actorID))
	t.Status = models.TradeRejected
	return t, nil
}

// GetUserTrades возвращает обмены пользователя с объявлением и ролью
func (s *TradeService) GetUserTrades(ctx context.Context, userID string) ([]models.Trade, error) {
	if userID == "" {
		return nil, apperrors.ErrNotAuthenticated
	}

	trades, err := s.store.ListUserTrades(ctx, userID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(trades))
	for _, t := range trades {
		ids = append(ids, t.ListingID)
	}
	listings, err := s.store.GetListings(ctx, ids)
	if err != nil {
		s.log.Warn("не удалось загрузить объявления обменов", logger.Err(err))
		listings = nil
	}

	for i := range trades {
		trades[i].Listing = listings[trades[i].ListingID]
		trades[i].Role = RoleBuyer
		if trades[i].SellerID == userID {
			trades[i].Role = RoleSeller
		}
	}
	return trades, nil
}
