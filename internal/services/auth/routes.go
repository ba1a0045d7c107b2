package auth

import (
	"github.com/gofiber/fiber/v3"

	"github.com/rajivgeraev/reloop-api/internal/apperrors"
)

// SetupRoutes регистрирует маршруты в Fiber
func (s *AuthService) SetupRoutes(router fiber.Router) {
	router.Post("/api/auth/telegram", s.TelegramAuthHandler)
}

// TelegramAuthHandler проверяет initData, создает JWT и возвращает его
func (s *AuthService) TelegramAuthHandler(c fiber.Ctx) error {
	var payload struct {
		InitData string `json:"init_data"`
	}
	if err := c.Bind().Body(&payload); err != nil {
		return apperrors.InvalidArg("неверный формат данных")
	}

	res, err := s.TelegramLogin(c.Context(), payload.InitData)
	if err != nil {
		return err
	}
	return c.JSON(res)
}
