package user

import (
	"github.com/gofiber/fiber/v3"

	"github.com/rajivgeraev/reloop-api/internal/middleware"
)

// SetupRoutes регистрирует маршруты профиля
func (s *UserService) SetupRoutes(router fiber.Router, authMiddleware fiber.Handler) {
	router.Get("/api/profile", authMiddleware, s.GetProfileHandler)
}

// GetProfileHandler возвращает профиль текущего пользователя
func (s *UserService) GetProfileHandler(c fiber.Ctx) error {
	profile, err := s.GetProfile(c.Context(), middleware.UserID(c))
	if err != nil {
		return err
	}
	return c.JSON(profile)
}
