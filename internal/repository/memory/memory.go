// Package memory - хранилище в памяти процесса. Транзакции сериализуются одной
// блокировкой и применяются целиком только при успехе fn.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rajivgeraev/reloop-api/internal/apperrors"
	"github.com/rajivgeraev/reloop-api/internal/models"
	"github.com/rajivgeraev/reloop-api/internal/repository"
)

type state struct {
	users         map[string]models.User
	listings      map[string]models.Listing
	trades        map[string]models.Trade
	conversations map[string]models.Conversation
	messages      map[string][]models.Message
	ledger        []models.LedgerEntry
	missions      map[string]map[string]int
	badges        map[string][]string
}

func newState() *state {
	return &state{
		users:         make(map[string]models.User),
		listings:      make(map[string]models.Listing),
		trades:        make(map[string]models.Trade),
		conversations: make(map[string]models.Conversation),
		messages:      make(map[string][]models.Message),
		missions:      make(map[string]map[string]int),
		badges:        make(map[string][]string),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.listings {
		v.Images = append([]string(nil), v.Images...)
		c.listings[k] = v
	}
	for k, v := range s.trades {
		c.trades[k] = v
	}
	for k, v := range s.conversations {
		v.Participants = append([]string(nil), v.Participants...)
		c.conversations[k] = v
	}
	for k, v := range s.messages {
		c.messages[k] = append([]models.Message(nil), v...)
	}
	c.ledger = append([]models.LedgerEntry(nil), s.ledger...)
	for k, v := range s.missions {
		m := make(map[string]int, len(v))
		for kind, n := range v {
			m[kind] = n
		}
		c.missions[k] = m
	}
	for k, v := range s.badges {
		c.badges[k] = append([]string(nil), v...)
	}
	return c
}

type nopLocker struct{}

func (nopLocker) Lock()   {}
func (nopLocker) Unlock() {}

// Store реализует repository.Store в памяти
type Store struct {
	mu sync.Mutex
	st *state
	// Hook вызывается внутри каждой транзакции до fn; используется тестами
	// для имитации конфликтов
	Hook func(attempt int) error
	// MaxAttempts - число попыток транзакции при конфликте
	MaxAttempts int
	view
}

var _ repository.Store = (*Store)(nil)

// New создает пустое хранилище
func New() *Store {
	s := &Store{st: newState(), MaxAttempts: 5}
	s.view = view{st: func() *state { return s.st }, lock: &s.mu}
	return s
}

// WithTx выполняет fn над копией состояния и применяет ее только при успехе
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx repository.Repository) error) error {
	attempts := s.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := s.runOnce(ctx, attempt, fn)
		if err == nil {
			return nil
		}
		if err != errConflict {
			return err
		}
	}
	return apperrors.ErrTxConflict
}

var errConflict = apperrors.New(apperrors.CodeTxConflict, "memory: conflict")

func (s *Store) runOnce(ctx context.Context, attempt int, fn func(ctx context.Context, tx repository.Repository) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Hook != nil {
		if err := s.Hook(attempt); err != nil {
			return errConflict
		}
	}

	work := s.st.clone()
	tx := &view{st: func() *state { return work }, lock: nopLocker{}}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	s.st = work
	return nil
}

// view реализует repository.Repository поверх состояния
type view struct {
	st   func() *state
	lock sync.Locker
}

func (v *view) EnsureUser(_ context.Context, user *models.User) (bool, error) {
	v.lock.Lock()
	defer v.lock.Unlock()

	st := v.st()
	if existing, ok := st.users[user.ID]; ok {
		*user = existing
		return false, nil
	}
	now := time.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	st.users[user.ID] = *user
	return true, nil
}

func (v *view) GetUser(_ context.Context, id string) (*models.User, error) {
	v.lock.Lock()
	defer v.lock.Unlock()

	u, ok := v.st().users[id]
	if !ok {
		return nil, apperrors.ErrUserNotFound
	}
	return &u, nil
}

func (v *view) GetUsers(_ context.Context, ids []string) (map[string]*models.User, error) {
	v.lock.Lock()
	defer v.lock.Unlock()

	res := make(map[string]*models.User, len(ids))
	for _, id := range ids {
		if u, ok := v.st().users[id]; ok {
			res[id] = &u
		}
	}
	return res, nil
}

func (v *view) GetUserForUpdate(ctx context.Context, id string) (*models.User, error) {
	return v.GetUser(ctx, id)
}

func (v *view) UpdateUserStats(_ context.Context, user *models.User) error {
	v.lock.Lock()
	defer v.lock.Unlock()

	st := v.st()
	existing, ok := st.users[user.ID]
	if !ok {
		return apperrors.ErrUserNotFound
	}
	if user.Coins < 0 || user.XP < 0 {
		return apperrors.InvalidArg("баланс не может быть отрицательным")
	}
	existing.Coins = user.Coins
	existing.XP = user.XP
	existing.ItemsTraded = user.ItemsTraded
	existing.CO2Saved = user.CO2Saved
	existing.UpdatedAt = time.Now()
	st.users[user.ID] = existing
	return nil
}

func (v *view) AddCoins(_ context.Context, userID string, coins, xp int64) (int64, error) {
	v.lock.Lock()
	defer v.lock.Unlock()

	st := v.st()
	u, ok := st.users[userID]
	if !ok {
		return 0, apperrors.ErrUserNotFound
	}
	if u.Coins+coins < 0 {
		return 0, apperrors.ErrInsufficientFunds(u.Coins, -coins)
	}
	u.Coins += coins
	u.XP += xp
	u.UpdatedAt = time.Now()
	st.users[userID] = u
	return u.Coins, nil
}

func (v *view) Leaderboard(_ context.Context, campus string, limit int) ([]models.User, error) {
	v.lock.Lock()
	defer v.lock.Unlock()

	var res []models.User
	for _, u := range v.st().users {
		if campus != "" && u.Campus != campus {
			continue
		}
		res = append(res, u)
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].XP == res[j].XP {
			return res[i].ID < res[j].ID
		}
		return res[i].XP > res[j].XP
	})
	if limit > 0 && len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

func (v *view) AppendLedgerEntry(_ context.Context, entry *models.LedgerEntry) error {
	v.lock.Lock()
	defer v.lock.Unlock()

	st := v.st()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	st.ledger = append(st.ledger, *entry)
	return nil
}

func (v *view) ListLedgerEntries(_ context.Context, userID string, limit int) ([]models.LedgerEntry, error) {
	v.lock.Lock()
	defer v.lock.Unlock()

	var res []models.LedgerEntry
	ledger := v.st().ledger
	for i := len(ledger) - 1; i >= 0; i-- {
		if ledger[i].UserID != userID {
			continue
		}
		res = append(res, ledger[i])
		if limit > 0 && len(res) == limit {
			break
		}
	}
	return res, nil
}

func (v *view) CreateListing(_ context.Context, listing *models.Listing) error {
	v.lock.Lock()
	defer v.lock.Unlock()

	st := v.st()
	if _, ok := st.users[listing.SellerID]; !ok {
		return apperrors.ErrUserNotFound
	}
	l := *listing
	l.Images = append([]string(nil), listing.Images...)
	st.listings[listing.ID] = l
	return nil
}

func (v *view) GetListing(_ context.Context, id string) (*models.Listing, error) {
	v.lock.Lock()
	defer v.lock.Unlock()

	l, ok := v.st().listings[id]
	if !ok {
		return nil, apperrors.ErrListingNotFound
	}
	return &l, nil
}

func (v *view) GetListingForUpdate(ctx context.Context, id string) (*models.Listing, error) {
	return v.GetListing(ctx, id)
}

func (v *view) GetListings(_ context.Context, ids []string) (map[string]*models.Listing, error) {
	v.lock.Lock()
	defer v.lock.Unlock()

	res := make(map[string]*models.Listing, len(ids))
	for _, id := range ids {
		if l, ok := v.st().listings[id]; ok {
			res[id] = &l
		}
	}
	return res, nil
}

func (v *view) ListListings(_ context.Context, filter models.ListingFilter) ([]models.Listing, error) {
	v.lock.Lock()
	defer v.lock.Unlock()

	var res []models.Listing
	for _, l := range v.st().listings {
		if filter.Status != "" && l.Status != filter.Status {
			continue
		}
		if filter.Category != "" && l.Category != filter.Category {
			continue
		}
		if filter.SellerID != "" && l.SellerID != filter.SellerID {
			continue
		}
		res = append(res, l)
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].CreatedAt.Equal(res[j].CreatedAt) {
			return res[i].ID > res[j].ID
		}
		return res[i].CreatedAt.After(res[j].CreatedAt)
	})
	if filter.Limit > 0 && len(res) > filter.Limit {
		res = res[:filter.Limit]
	}
	return res, nil
}

func (v *view) UpdateListingStatus(_ context.Context, id string, status models.ListingStatus) error {
	v.lock.Lock()
	defer v.lock.Unlock()

	st := v.st()
	l, ok := st.listings[id]
	if !ok {
		return apperrors.ErrListingNotFound
	}
	l.Status = status
	st.listings[id] = l
	return nil
}

func (v *view) CreateTrade(_ context.Context, trade *models.Trade) error {
	v.lock.Lock()
	defer v.lock.Unlock()

	st := v.st()
	if _, ok := st.listings[trade.ListingID]; !ok {
		return apperrors.ErrListingNotFound
	}
	if trade.BuyerID == trade.SellerID {
		return apperrors.ErrSelfTrade
	}
	st.trades[trade.ID] = *trade
	return nil
}

func (v *view) GetTrade(_ context.Context, id string) (*models.Trade, error) {
	v.lock.Lock()
	defer v.lock.Unlock()

	t, ok := v.st().trades[id]
	if !ok {
		return nil, apperrors.ErrTradeNotFound
	}
	return &t, nil
}

func (v *view) GetTradeForUpdate(ctx context.Context, id string) (*models.Trade, error) {
	return v.GetTrade(ctx, id)
}

func (v *view) UpdateTradeStatus(_ context.Context, id string, status models.TradeStatus) error {
	v.lock.Lock()
	defer v.lock.Unlock()

	st := v.st()
	t, ok := st.trades[id]
	if !ok {
		return apperrors.ErrTradeNotFound
	}
	t.Status = status
	t.UpdatedAt = time.Now()
	st.trades[id] = t
	return nil
}

func (v *view) ListUserTrades(_ context.Context, userID string) ([]models.Trade, error) {
	v.lock.Lock()
	defer v.lock.Unlock()

	var res []models.Trade
	for _, t := range v.st().trades {
		if t.BuyerID == userID || t.SellerID == userID {
			res = append(res, t)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	return res, nil
}

func (v *view) CreateConversation(_ context.Context, conv *models.Conversation) error {
	v.lock.Lock()
	defer v.lock.Unlock()

	c := *conv
	c.Participants = append([]string(nil), conv.Participants...)
	v.st().conversations[conv.ID] = c
	return nil
}

func (v *view) GetConversation(_ context.Context, id string) (*models.Conversation, error) {
	v.lock.Lock()
	defer v.lock.Unlock()

	c, ok := v.st().conversations[id]
	if !ok {
		return nil, apperrors.ErrChatNotFound
	}
	return &c, nil
}

func (v *view) ListConversationsByParticipant(_ context.Context, userID string) ([]models.Conversation, error) {
	v.lock.Lock()
	defer v.lock.Unlock()

	var res []models.Conversation
	for _, c := range v.st().conversations {
		if c.HasParticipant(userID) {
			res = append(res, c)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].LastMessageAt.Equal(res[j].LastMessageAt) {
			return res[i].CreatedAt.After(res[j].CreatedAt)
		}
		return res[i].LastMessageAt.After(res[j].LastMessageAt)
	})
	return res, nil
}

func (v *view) InsertMessage(_ context.Context, msg *models.Message) error {
	v.lock.Lock()
	defer v.lock.Unlock()

	st := v.st()
	if _, ok := st.conversations[msg.ConversationID]; !ok {
		return apperrors.ErrChatNotFound
	}
	st.messages[msg.ConversationID] = append(st.messages[msg.ConversationID], *msg)
	return nil
}

func (v *view) TouchConversation(_ context.Context, id, lastMessage string, at time.Time) error {
	v.lock.Lock()
	defer v.lock.Unlock()

	st := v.st()
	c, ok := st.conversations[id]
	if !ok {
		return apperrors.ErrChatNotFound
	}
	c.LastMessage = lastMessage
	c.LastMessageAt = at
	st.conversations[id] = c
	return nil
}

func (v *view) ListMessages(_ context.Context, conversationID string) ([]models.Message, error) {
	v.lock.Lock()
	defer v.lock.Unlock()

	res := append([]models.Message(nil), v.st().messages[conversationID]...)
	sort.SliceStable(res, func(i, j int) bool { return res[i].Before(res[j]) })
	return res, nil
}

func (v *view) IncrementMission(_ context.Context, userID, kind string, count int) (int, error) {
	v.lock.Lock()
	defer v.lock.Unlock()

	st := v.st()
	if st.missions[userID] == nil {
		st.missions[userID] = make(map[string]int)
	}
	st.missions[userID][kind] += count
	return st.missions[userID][kind], nil
}

func (v *view) AwardBadge(_ context.Context, userID, badge string) (bool, error) {
	v.lock.Lock()
	defer v.lock.Unlock()

	st := v.st()
	for _, b := range st.badges[userID] {
		if b == badge {
			return false, nil
		}
	}
	st.badges[userID] = append(st.badges[userID], badge)
	return true, nil
}

func (v *view) ListBadges(_ context.Context, userID string) ([]string, error) {
	v.lock.Lock()
	defer v.lock.Unlock()

	return append([]string(nil), v.st().badges[userID]...), nil
}
