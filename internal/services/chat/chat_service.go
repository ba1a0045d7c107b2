package chat

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/rajivgeraev/reloop-api/internal/apperrors"
	"github.com/rajivgeraev/reloop-api/internal/logger"
	"github.com/rajivgeraev/reloop-api/internal/models"
	"github.com/rajivgeraev/reloop-api/internal/notifier"
	"github.com/rajivgeraev/reloop-api/internal/repository"
)

const (
	RoleAll     = "all"
	RoleBuying  = "buying"
	RoleSelling = "selling"

	// Первое сообщение новой переписки
	GreetingText = "👋 Привет! Хочу обменяться на этот товар!"

	MaxMessageLength = 4000

	// Сколько новых сообщений поток держит для медленного читателя
	maxStreamBacklog = 1024
)

// SummaryResolver возвращает карточки пользователей; ошибок не бывает
type SummaryResolver interface {
	ResolveSummaries(ctx context.Context, ids []string) map[string]models.UserSummary
}

// ChatService - реестр переписок: одна переписка на тройку (покупатель, продавец, объявление)
type ChatService struct {
	repo     repository.Repository
	users    SummaryResolver
	broker   *Broker
	notifier notifier.ProgressNotifier
	log      *slog.Logger
	now      func() time.Time
}

// NewChatService создает новый экземпляр ChatService
func NewChatService(repo repository.Repository, users SummaryResolver, broker *Broker, n notifier.ProgressNotifier, log *slog.Logger) *ChatService {
	if n == nil {
		n = notifier.Nop{}
	}
	if broker == nil {
		broker = NewBroker(log)
	}
	return &ChatService{
		repo:     repo,
		users:    users,
		broker:   broker,
		notifier: n,
		log:      log,
		now:      time.Now,
	}
}

// FindOrCreate возвращает переписку покупателя и продавца по объявлению или создает новую
// с приветственным сообщением. Если указано объявление, продавцом считается его владелец:
// пустой sellerID берется из объявления, чужой отклоняется. Проверка и создание
// не атомарны: два одновременных запроса могут создать две переписки.
func (s *ChatService) FindOrCreate(ctx context.Context, buyerID, sellerID, listingID string) (string, bool, error) {
	if buyerID == "" {
		return "", false, apperrors.ErrNotAuthenticated
	}

	if listingID != "" {
		listing, err := s.repo.GetListing(ctx, listingID)
		if err != nil {
			return "", false, err
		}
		if sellerID == "" {
			sellerID = listing.SellerID
		}
		if sellerID != listing.SellerID {
			return "", false, apperrors.InvalidArg("объявление принадлежит другому продавцу")
		}
	}
	if sellerID == "" {
		return "", false, apperrors.InvalidArg("необходимо указать продавца или объявление")
	}
	if buyerID == sellerID {
		return "", false, apperrors.ErrSelfTrade
	}
	if _, err := s.repo.GetUser(ctx, sellerID); err != nil {
		if apperrors.Is(err, apperrors.CodeNotFound) {
			return "", false, apperrors.NotFound("продавец не найден")
		}
		return "", false, err
	}

	convs, err := s.repo.ListConversationsByParticipant(ctx, buyerID)
	if err != nil {
		return "", false, err
	}
	for _, c := range convs {
		if c.HasParticipant(sellerID) && c.ListingID == listingID {
			return c.ID, true, nil
		}
	}

	now := s.now().UTC()
	conv := &models.Conversation{
		ID:            uuid.NewString(),
		Participants:  []string{buyerID, sellerID},
		BuyerID:       buyerID,
		SellerID:      sellerID,
		ListingID:     listingID,
		LastMessage:   GreetingText,
		LastMessageAt: now,
		CreatedAt:     now,
	}
	if err := s.repo.CreateConversation(ctx, conv); err != nil {
		return "", false, err
	}

	greeting := models.Message{
		ID:             ulid.Make().String(),
		ConversationID: conv.ID,
		SenderID:       buyerID,
		Text:           GreetingText,
		IsSystem:       true,
		CreatedAt:      now,
	}
	if err := s.repo.InsertMessage(ctx, &greeting); err != nil {
		return "", false, err
	}
	s.broker.Publish(greeting)

	s.log.Info("создана переписка",
		slog.String("conversation_id", conv.ID),
		slog.String("buyer_id", buyerID),
		slog.String("seller_id", sellerID),
	)
	return conv.ID, false, nil
}

// SendMessage добавляет сообщение и обновляет last_message переписки
func (s *ChatService) SendMessage(ctx context.Context, conversationID, senderID, text string) (*models.Message, error) {
	if senderID == "" {
		return nil, apperrors.ErrNotAuthenticated
	}
	if _, err := s.repo.GetUser(ctx, senderID); err != nil {
		if apperrors.Is(err, apperrors.CodeNotFound) {
			return nil, apperrors.ErrUnknownUser
		}
		return nil, err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperrors.ErrEmptyMessage
	}
	if len([]rune(text)) > MaxMessageLength {
		return nil, apperrors.Newf(apperrors.CodeInvalidArgument, "сообщение длиннее %d символов", MaxMessageLength)
	}

	if _, err := s.participantConversation(ctx, conversationID, senderID); err != nil {
		return nil, err
	}

	msg := models.Message{
		ID:             ulid.Make().String(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Text:           text,
		CreatedAt:      s.now().UTC(),
	}
	if err := s.repo.InsertMessage(ctx, &msg); err != nil {
		return nil, err
	}
	if err := s.repo.TouchConversation(ctx, conversationID, text, msg.CreatedAt); err != nil {
		// сообщение уже сохранено, устаревший last_message не критичен
		s.log.Warn("не удалось обновить last_message", slog.String("conversation_id", conversationID), logger.Err(err))
	}
	s.broker.Publish(msg)

	if err := s.notifier.NotifyProgress(ctx, senderID, notifier.EventSendMessage, 1); err != nil {
		s.log.Warn("ошибка уведомления о прогрессе", slog.String("user_id", senderID), logger.Err(err))
	}
	return &msg, nil
}

// ListConversations возвращает переписки пользователя, свежие первыми,
// с карточкой собеседника и объявлением
func (s *ChatService) ListConversations(ctx context.Context, userID, role string) ([]models.Conversation, error) {
	if userID == "" {
		return nil, apperrors.ErrNotAuthenticated
	}
	if role == "" {
		role = RoleAll
	}
	if role != RoleAll && role != RoleBuying && role != RoleSelling {
		return nil, apperrors.Newf(apperrors.CodeInvalidArgument, "неизвестная роль: %q", role)
	}

	all, err := s.repo.ListConversationsByParticipant(ctx, userID)
	if err != nil {
		return nil, err
	}

	convs := make([]models.Conversation, 0, len(all))
	for _, c := range all {
		c.Role = RoleSelling
		if c.BuyerID == userID {
			c.Role = RoleBuying
		}
		if role != RoleAll && c.Role != role {
			continue
		}
		convs = append(convs, c)
	}
	s.hydrate(ctx, userID, convs)
	return convs, nil
}

// GetMessages возвращает все сообщения переписки по возрастанию времени
func (s *ChatService) GetMessages(ctx context.Context, conversationID, userID string) ([]models.Message, error) {
	if _, err := s.participantConversation(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	return s.repo.ListMessages(ctx, conversationID)
}

// StreamMessages отдает текущие сообщения переписки, затем новые по мере появления.
// Пока читатель принимает снимок, новые сообщения копятся в очереди потока.
// Канал закрывается при отмене ctx или если очередь превысила maxStreamBacklog.
func (s *ChatService) StreamMessages(ctx context.Context, conversationID, userID string) (<-chan models.Message, error) {
	if _, err := s.participantConversation(ctx, conversationID, userID); err != nil {
		return nil, err
	}

	// подписываемся до чтения снимка, чтобы не потерять сообщения между ними
	sub := s.broker.Subscribe(conversationID, 0)
	snapshot, err := s.repo.ListMessages(ctx, conversationID)
	if err != nil {
		sub.Close()
		return nil, err
	}

	out := make(chan models.Message)
	go func() {
		defer close(out)
		defer sub.Close()

		seen := make(map[string]struct{}, len(snapshot))
		for _, m := range snapshot {
			seen[m.ID] = struct{}{}
		}

		queue := snapshot
		in := sub.C
		for len(queue) > 0 || in != nil {
			// отправка включается, только когда есть что отдать
			var send chan<- models.Message
			var next models.Message
			if len(queue) > 0 {
				send, next = out, queue[0]
			}

			select {
			case send <- next:
				queue = queue[1:]
			case m, ok := <-in:
				if !ok {
					// брокер отключил подписку: отдаем накопленное
					in = nil
					continue
				}
				if _, dup := seen[m.ID]; dup {
					continue
				}
				if len(queue) >= maxStreamBacklog {
					s.log.Warn("читатель потока не успевает, отключаем",
						slog.String("conversation_id", conversationID),
						slog.String("user_id", userID),
					)
					return
				}
				queue = append(queue, m)
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (s *ChatService) participantConversation(ctx context.Context, conversationID, userID string) (*models.Conversation, error) {
	if userID == "" {
		return nil, apperrors.ErrNotAuthenticated
	}
	conv, err := s.repo.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(userID) {
		return nil, apperrors.ErrNotParticipant
	}
	return conv, nil
}

func (s *ChatService) hydrate(ctx context.Context, userID string, convs []models.Conversation) {
	if len(convs) == 0 {
		return
	}

	userIDs := make([]string, 0, len(convs))
	listingIDs := make([]string, 0, len(convs))
	for _, c := range convs {
		userIDs = append(userIDs, c.OtherParticipant(userID))
		if c.ListingID != "" {
			listingIDs = append(listingIDs, c.ListingID)
		}
	}

	summaries := s.users.ResolveSummaries(ctx, userIDs)
	var listings map[string]*models.Listing
	if len(listingIDs) > 0 {
		var err error
		listings, err = s.repo.GetListings(ctx, listingIDs)
		if err != nil {
			s.log.Warn("не удалось загрузить объявления переписок", logger.Err(err))
		}
	}

	for i := range convs {
		other := convs[i].OtherParticipant(userID)
		sum, ok := summaries[other]
		if !ok {
			sum = models.PlaceholderSummary(other)
		}
		convs[i].OtherUser = &sum
		convs[i].Listing = listings[convs[i].ListingID]
	}
}
