package user

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/rajivgeraev/reloop-api/internal/apperrors"
	"github.com/rajivgeraev/reloop-api/internal/logger"
	"github.com/rajivgeraev/reloop-api/internal/models"
	"github.com/rajivgeraev/reloop-api/internal/repository"
)

// UserService отвечает за учетные записи и публичные карточки пользователей
type UserService struct {
	repo          repository.Store
	startingCoins int64
	log           *slog.Logger
}

// NewUserService создает новый экземпляр UserService
func NewUserService(repo repository.Store, startingCoins int64, log *slog.Logger) *UserService {
	return &UserService{repo: repo, startingCoins: startingCoins, log: log}
}

// EnsureUser создает счет пользователя при первой аутентификации.
// Существующая запись возвращается без изменений.
func (s *UserService) EnsureUser(ctx context.Context, id, name, avatarURL string) (*models.User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperrors.ErrNotAuthenticated
	}

	var u *models.User
	created := false
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx repository.Repository) error {
		u = &models.User{
			ID:        id,
			Name:      strings.TrimSpace(name),
			AvatarURL: avatarURL,
			Coins:     s.startingCoins,
		}
		var err error
		created, err = tx.EnsureUser(ctx, u)
		if err != nil || !created || s.startingCoins <= 0 {
			return err
		}
		// стартовый бонус попадает в журнал вместе с созданием счета
		return tx.AppendLedgerEntry(ctx, &models.LedgerEntry{
			ID:           uuid.NewString(),
			UserID:       id,
			Amount:       s.startingCoins,
			BalanceAfter: s.startingCoins,
			Reason:       "signup_bonus",
		})
	})
	if err != nil {
		return nil, apperrors.Internal("не удалось создать пользователя", err)
	}

	if created {
		s.log.Info("создан новый пользователь", slog.String("user_id", id))
	}
	return u, nil
}

// GetProfile возвращает полный профиль пользователя вместе со значками
func (s *UserService) GetProfile(ctx context.Context, userID string) (*models.User, error) {
	if userID == "" {
		return nil, apperrors.ErrNotAuthenticated
	}

	u, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	badges, err := s.repo.ListBadges(ctx, userID)
	if err != nil {
		s.log.Warn("не удалось загрузить значки", slog.String("user_id", userID), logger.Err(err))
	}
	u.Badges = badges
	return u, nil
}

// ResolveSummaries загружает карточки пакетно. Ошибки не возвращаются:
// для отсутствующих пользователей и при сбое чтения подставляется заглушка.
func (s *UserService) ResolveSummaries(ctx context.Context, ids []string) map[string]models.UserSummary {
	unique := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}

	res := make(map[string]models.UserSummary, len(unique))
	if len(unique) == 0 {
		return res
	}

	users, err := s.repo.GetUsers(ctx, unique)
	if err != nil {
		s.log.Warn("не удалось загрузить карточки пользователей", slog.Int("count", len(unique)), logger.Err(err))
		users = nil
	}

	for _, id := range unique {
		if u, ok := users[id]; ok {
			res[id] = u.Summary()
			continue
		}
		res[id] = models.PlaceholderSummary(id)
	}
	return res
}

// ResolveSummary - одиночный вариант ResolveSummaries
func (s *UserService) ResolveSummary(ctx context.Context, id string) models.UserSummary {
	return s.ResolveSummaries(ctx, []string{id})[id]
}
