package listing

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rajivgeraev/reloop-api/internal/apperrors"
	"github.com/rajivgeraev/reloop-api/internal/logger"
	"github.com/rajivgeraev/reloop-api/internal/models"
	"github.com/rajivgeraev/reloop-api/internal/notifier"
	"github.com/rajivgeraev/reloop-api/internal/repository"
)

const (
	DefaultLimit = 50
	MaxLimit     = 100
	MaxImages    = 10

	// allCategories в фильтре означает отсутствие фильтра по категории
	allCategories = "All"
)

// SummaryResolver возвращает карточки пользователей; ошибок не бывает
type SummaryResolver interface {
	ResolveSummaries(ctx context.Context, ids []string) map[string]models.UserSummary
}

// CreateListingInput - данные нового объявления
type CreateListingInput struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Condition   string   `json:"condition"`
	Price       int64    `json:"price"`
	Images      []string `json:"images"`
}

// ListingQuery - параметры публичной выдачи
type ListingQuery struct {
	Category string
	Limit    int
}

// ListingService представляет сервис для работы с объявлениями
type ListingService struct {
	repo     repository.Repository
	users    SummaryResolver
	notifier notifier.ProgressNotifier
	log      *slog.Logger
	now      func() time.Time
}

// NewListingService создает новый экземпляр ListingService
func NewListingService(repo repository.Repository, users SummaryResolver, n notifier.ProgressNotifier, log *slog.Logger) *ListingService {
	if n == nil {
		n = notifier.Nop{}
	}
	return &ListingService{repo: repo, users: users, notifier: n, log: log, now: time.Now}
}

// CreateListing создает объявление в статусе available со сроком жизни ListingTTL
func (s *ListingService) CreateListing(ctx context.Context, sellerID string, in CreateListingInput) (*models.Listing, error) {
	if sellerID == "" {
		return nil, apperrors.ErrNotAuthenticated
	}

	in.Title = strings.TrimSpace(in.Title)
	in.Category = strings.TrimSpace(in.Category)
	in.Condition = strings.TrimSpace(in.Condition)
	switch {
	case in.Title == "":
		return nil, apperrors.InvalidArg("название обязательно")
	case in.Category == "":
		return nil, apperrors.InvalidArg("категория обязательна")
	case in.Condition == "":
		return nil, apperrors.InvalidArg("состояние обязательно")
	case in.Price <= 0:
		return nil, apperrors.InvalidArg("цена должна быть положительной")
	}

	images := make([]string, 0, len(in.Images))
	for _, img := range in.Images {
		if img = strings.TrimSpace(img); img != "" {
			images = append(images, img)
		}
	}
	if len(images) > MaxImages {
		return nil, apperrors.Newf(apperrors.CodeInvalidArgument, "не больше %d изображений", MaxImages)
	}

	if _, err := s.repo.GetUser(ctx, sellerID); err != nil {
		if apperrors.Is(err, apperrors.CodeNotFound) {
			return nil, apperrors.ErrUnknownUser
		}
		return nil, err
	}

	now := s.now().UTC()
	l := &models.Listing{
		ID:          uuid.NewString(),
		SellerID:    sellerID,
		Title:       in.Title,
		Description: strings.TrimSpace(in.Description),
		Category:    in.Category,
		Condition:   in.Condition,
		Price:       in.Price,
		Images:      images,
		Status:      models.ListingAvailable,
		CreatedAt:   now,
		ExpiresAt:   now.Add(models.ListingTTL),
	}
	if err := s.repo.CreateListing(ctx, l); err != nil {
		return nil, err
	}

	s.log.Info("создано объявление", slog.String("listing_id", l.ID), slog.String("seller_id", sellerID))
	if err := s.notifier.NotifyProgress(ctx, sellerID, notifier.EventListItem, 1); err != nil {
		s.log.Warn("ошибка уведомления о прогрессе", slog.String("user_id", sellerID), logger.Err(err))
	}
	return l, nil
}

// GetListings возвращает доступные объявления, новые первыми, с карточками продавцов
func (s *ListingService) GetListings(ctx context.Context, q ListingQuery) ([]models.Listing, error) {
	filter := models.ListingFilter{
		Status: models.ListingAvailable,
		Limit:  normalizeLimit(q.Limit),
	}
	if c := strings.TrimSpace(q.Category); c != "" && c != allCategories {
		filter.Category = c
	}

	listings, err := s.repo.ListListings(ctx, filter)
	if err != nil {
		return nil, err
	}
	s.hydrate(ctx, listings)
	return listings, nil
}

// GetListing возвращает одно объявление с карточкой продавца
func (s *ListingService) GetListing(ctx context.Context, id string) (*models.Listing, error) {
	l, err := s.repo.GetListing(ctx, id)
	if err != nil {
		return nil, err
	}
	one := []models.Listing{*l}
	s.hydrate(ctx, one)
	return &one[0], nil
}

// GetUserListings возвращает все объявления пользователя в любых статусах
func (s *ListingService) GetUserListings(ctx context.Context, userID string) ([]models.Listing, error) {
	if userID == "" {
		return nil, apperrors.ErrNotAuthenticated
	}
	return s.repo.ListListings(ctx, models.ListingFilter{SellerID: userID})
}

// UpdateStatus безусловно записывает статус. Вызывается только координатором обменов.
func (s *ListingService) UpdateStatus(ctx context.Context, listingID string, status models.ListingStatus) error {
	if !status.Valid() {
		return apperrors.Newf(apperrors.CodeInvalidArgument, "неизвестный статус объявления: %q", status)
	}
	return s.repo.UpdateListingStatus(ctx, listingID, status)
}

func (s *ListingService) hydrate(ctx context.Context, listings []models.Listing) {
	if len(listings) == 0 {
		return
	}
	ids := make([]string, 0, len(listings))
	for _, l := range listings {
		ids = append(ids, l.SellerID)
	}

	summaries := s.users.ResolveSummaries(ctx, ids)
	for i := range listings {
		sum, ok := summaries[listings[i].SellerID]
		if !ok {
			sum = models.PlaceholderSummary(listings[i].SellerID)
		}
		listings[i].Seller = &sum
	}
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}
