package auth

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	initdata "github.com/telegram-mini-apps/init-data-golang"

	"github.com/rajivgeraev/reloop-api/internal/apperrors"
	tokens "github.com/rajivgeraev/reloop-api/internal/auth"
	"github.com/rajivgeraev/reloop-api/internal/logger"
	"github.com/rajivgeraev/reloop-api/internal/middleware"
	"github.com/rajivgeraev/reloop-api/internal/models"
)

// Срок годности initData от Telegram
const initDataTTL = 24 * time.Hour

// LoginResult - выданный токен и учетная запись пользователя
type LoginResult struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// AuthService – вход через Telegram Mini App
type AuthService struct {
	botToken string
	jwt      *tokens.JWTService
	users    middleware.UserEnsurer
	log      *slog.Logger
}

// NewAuthService – конструктор AuthService
func NewAuthService(botToken string, jwt *tokens.JWTService, users middleware.UserEnsurer, log *slog.Logger) *AuthService {
	return &AuthService{botToken: botToken, jwt: jwt, users: users, log: log}
}

// TelegramLogin проверяет initData, создает счет при первом входе и выдает JWT
func (s *AuthService) TelegramLogin(ctx context.Context, rawInitData string) (*LoginResult, error) {
	if rawInitData == "" {
		return nil, apperrors.InvalidArg("необходимо передать init_data")
	}

	if err := initdata.Validate(rawInitData, s.botToken, initDataTTL); err != nil {
		s.log.Debug("initData отклонены", logger.Err(err))
		return nil, apperrors.Unauthenticated("недействительные данные Telegram")
	}

	data, err := initdata.Parse(rawInitData)
	if err != nil {
		return nil, apperrors.InvalidArg("не удалось разобрать initData")
	}
	if data.User.ID == 0 {
		return nil, apperrors.InvalidArg("в initData нет пользователя")
	}

	identity := tokens.Identity{
		UserID:    TelegramUserID(data.User.ID),
		Name:      displayName(data.User),
		AvatarURL: data.User.PhotoURL,
	}

	user, err := s.users.EnsureUser(ctx, identity.UserID, identity.Name, identity.AvatarURL)
	if err != nil {
		return nil, err
	}

	token, err := s.jwt.GenerateToken(identity)
	if err != nil {
		return nil, apperrors.Internal("не удалось создать токен", err)
	}

	s.log.Info("вход через Telegram", slog.String("user_id", identity.UserID))
	return &LoginResult{Token: token, User: user}, nil
}

// TelegramUserID возвращает ID пользователя ядра для Telegram-аккаунта
func TelegramUserID(id int64) string {
	return "tg:" + strconv.FormatInt(id, 10)
}

func displayName(u initdata.User) string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		name = u.Username
	}
	return name
}
