package middleware

import (
	"context"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v3"

	"github.com/rajivgeraev/reloop-api/internal/apperrors"
	"github.com/rajivgeraev/reloop-api/internal/auth"
	"github.com/rajivgeraev/reloop-api/internal/logger"
	"github.com/rajivgeraev/reloop-api/internal/models"
)

const userIDKey = "userID"

// UserEnsurer создает запись пользователя при первом входе
type UserEnsurer interface {
	EnsureUser(ctx context.Context, id, name, avatarURL string) (*models.User, error)
}

// AuthMiddleware проверяет bearer-токен и кладет userID в контекст запроса
func AuthMiddleware(verifier auth.TokenVerifier, users UserEnsurer, log *slog.Logger) fiber.Handler {
	return func(c fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return apperrors.Unauthenticated("отсутствует заголовок авторизации")
		}

		// Проверяем Bearer токен
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return apperrors.Unauthenticated("неверный формат заголовка авторизации")
		}

		identity, err := verifier.Verify(c.Context(), parts[1])
		if err != nil {
			log.Debug("токен отклонен", logger.Err(err))
			return apperrors.Unauthenticated("недействительный или просроченный токен")
		}

		if users != nil {
			if _, err := users.EnsureUser(c.Context(), identity.UserID, identity.Name, identity.AvatarURL); err != nil {
				return err
			}
		}

		c.Locals(userIDKey, identity.UserID)
		return c.Next()
	}
}

// UserID возвращает ID авторизованного пользователя или пустую строку
func UserID(c fiber.Ctx) string {
	id, _ := c.Locals(userIDKey).(string)
	return id
}
