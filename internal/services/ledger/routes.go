package ledger

import (
	"github.com/gofiber/fiber/v3"

	"github.com/rajivgeraev/reloop-api/internal/middleware"
)

// SetupRoutes регистрирует маршруты монет и рейтинга
func (s *LedgerService) SetupRoutes(router fiber.Router, authMiddleware fiber.Handler) {
	coins := router.Group("/api/coins", authMiddleware)
	coins.Get("/", s.GetBalanceHandler)
	coins.Get("/history", s.GetHistoryHandler)

	router.Get("/api/leaderboard", authMiddleware, s.GetLeaderboardHandler)
}

// GetBalanceHandler возвращает баланс текущего пользователя
func (s *LedgerService) GetBalanceHandler(c fiber.Ctx) error {
	balance, err := s.GetBalance(c.Context(), middleware.UserID(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"coins": balance})
}

// GetHistoryHandler возвращает журнал движения монет
func (s *LedgerService) GetHistoryHandler(c fiber.Ctx) error {
	limit := middleware.QueryInt(c, "limit", DefaultHistoryLimit)
	entries, err := s.History(c.Context(), middleware.UserID(c), limit)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"entries": entries})
}

// GetLeaderboardHandler возвращает рейтинг пользователей по опыту
func (s *LedgerService) GetLeaderboardHandler(c fiber.Ctx) error {
	limit := middleware.QueryInt(c, "limit", DefaultLeaderboardLimit)
	board, err := s.Leaderboard(c.Context(), c.Query("campus"), limit)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"leaderboard": board})
}
