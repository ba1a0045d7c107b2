package trade

import (
	"github.com/gofiber/fiber/v3"

	"github.com/rajivgeraev/reloop-api/internal/apperrors"
	"github.com/rajivgeraev/reloop-api/internal/middleware"
)

// SetupRoutes настраивает маршруты для API обменов
func (s *TradeService) SetupRoutes(router fiber.Router, authMiddleware fiber.Handler) {
	api := router.Group("/api/trades", authMiddleware)

	api.Post("/", s.RequestTradeHandler)
	api.Get("/", s.GetMyTradesHandler)
	api.Post("/:id/accept", s.AcceptTradeHandler)
	api.Post("/:id/reject", s.RejectTradeHandler)
}

// RequestTradeHandler создает запрос обмена по объявлению
func (s *TradeService) RequestTradeHandler(c fiber.Ctx) error {
	var req struct {
		ListingID string `json:"listing_id"`
	}
	if err := c.Bind().Body(&req); err != nil {
		return apperrors.InvalidArg("неверный формат данных")
	}
	if req.ListingID == "" {
		return apperrors.InvalidArg("необходимо указать ID объявления")
	}

	res, err := s.RequestTrade(c.Context(), middleware.UserID(c), req.ListingID)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(res)
}

// GetMyTradesHandler возвращает обмены текущего пользователя
func (s *TradeService) GetMyTradesHandler(c fiber.Ctx) error {
	trades, err := s.GetUserTrades(c.Context(), middleware.UserID(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"trades": trades})
}

// AcceptTradeHandler принимает обмен и проводит расчет
func (s *TradeService) AcceptTradeHandler(c fiber.Ctx) error {
	t, err := s.AcceptTrade(c.Context(), middleware.UserID(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(t)
}

// RejectTradeHandler отклоняет обмен
func (s *TradeService) RejectTradeHandler(c fiber.Ctx) error {
	t, err := s.RejectTrade(c.Context(), middleware.UserID(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(t)
}
