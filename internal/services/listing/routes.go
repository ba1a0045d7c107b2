package listing

import (
	"github.com/gofiber/fiber/v3"

	"github.com/rajivgeraev/reloop-api/internal/apperrors"
	"github.com/rajivgeraev/reloop-api/internal/middleware"
)

// SetupRoutes настраивает маршруты для API объявлений
func (s *ListingService) SetupRoutes(router fiber.Router, authMiddleware fiber.Handler) {
	api := router.Group("/api/listings", authMiddleware)

	api.Get("/", s.GetListingsHandler)
	// /my регистрируется раньше /:id
	api.Get("/my", s.GetMyListingsHandler)
	api.Get("/:id", s.GetListingHandler)
	api.Post("/", s.CreateListingHandler)
}

// CreateListingHandler обрабатывает создание нового объявления
func (s *ListingService) CreateListingHandler(c fiber.Ctx) error {
	var req CreateListingInput
	if err := c.Bind().Body(&req); err != nil {
		return apperrors.InvalidArg("неверный формат данных")
	}

	l, err := s.CreateListing(c.Context(), middleware.UserID(c), req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(l)
}

// GetListingsHandler возвращает ленту доступных объявлений
func (s *ListingService) GetListingsHandler(c fiber.Ctx) error {
	listings, err := s.GetListings(c.Context(), ListingQuery{
		Category: c.Query("category"),
		Limit:    middleware.QueryInt(c, "limit", DefaultLimit),
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"listings": listings})
}

// GetMyListingsHandler возвращает объявления текущего пользователя
func (s *ListingService) GetMyListingsHandler(c fiber.Ctx) error {
	listings, err := s.GetUserListings(c.Context(), middleware.UserID(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"listings": listings})
}

// GetListingHandler возвращает одно объявление по ID
func (s *ListingService) GetListingHandler(c fiber.Ctx) error {
	l, err := s.GetListing(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(l)
}
