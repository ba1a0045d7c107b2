package chat

import (
	"github.com/gofiber/fiber/v3"

	"github.com/rajivgeraev/reloop-api/internal/apperrors"
	"github.com/rajivgeraev/reloop-api/internal/middleware"
)

// SetupRoutes настраивает маршруты для API чатов
func (s *ChatService) SetupRoutes(router fiber.Router, authMiddleware fiber.Handler) {
	api := router.Group("/api/chats", authMiddleware)

	api.Get("/", s.GetChatsHandler)
	// повторное открытие переписки, если при запросе обмена она не создалась
	api.Post("/", s.CreateChatHandler)
	api.Get("/:id/messages", s.GetMessagesHandler)
	api.Post("/:id/messages", s.SendMessageHandler)
}

// GetChatsHandler возвращает переписки пользователя с фильтром по роли
func (s *ChatService) GetChatsHandler(c fiber.Ctx) error {
	convs, err := s.ListConversations(c.Context(), middleware.UserID(c), c.Query("role", RoleAll))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"chats": convs})
}

// CreateChatHandler находит или создает переписку с продавцом.
// С listing_id продавец определяется по объявлению, seller_id можно не передавать.
func (s *ChatService) CreateChatHandler(c fiber.Ctx) error {
	var req struct {
		SellerID  string `json:"seller_id"`
		ListingID string `json:"listing_id"`
	}
	if err := c.Bind().Body(&req); err != nil {
		return apperrors.InvalidArg("неверный формат данных")
	}

	id, existing, err := s.FindOrCreate(c.Context(), middleware.UserID(c), req.SellerID, req.ListingID)
	if err != nil {
		return err
	}

	status := fiber.StatusCreated
	if existing {
		status = fiber.StatusOK
	}
	return c.Status(status).JSON(fiber.Map{"id": id, "existing": existing})
}

// GetMessagesHandler возвращает сообщения переписки
func (s *ChatService) GetMessagesHandler(c fiber.Ctx) error {
	msgs, err := s.GetMessages(c.Context(), c.Params("id"), middleware.UserID(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"messages": msgs})
}

// SendMessageHandler отправляет сообщение в переписку
func (s *ChatService) SendMessageHandler(c fiber.Ctx) error {
	var req struct {
		Text string `json:"text"`
	}
	if err := c.Bind().Body(&req); err != nil {
		return apperrors.InvalidArg("неверный формат данных")
	}

	msg, err := s.SendMessage(c.Context(), c.Params("id"), middleware.UserID(c), req.Text)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(msg)
}
