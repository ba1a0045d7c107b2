package cloudinary

import (
	"github.com/gofiber/fiber/v3"
)

// SetupRoutes настраивает маршрут выдачи параметров загрузки
func (s *CloudinaryService) SetupRoutes(router fiber.Router, authMiddleware fiber.Handler) {
	router.Get("/api/upload/params", authMiddleware, s.UploadParamsHandler)
}

// UploadParamsHandler возвращает подписанные параметры загрузки
func (s *CloudinaryService) UploadParamsHandler(c fiber.Ctx) error {
	params, err := s.GenerateUploadParams(c.Query("listing_id"))
	if err != nil {
		return err
	}
	return c.JSON(params)
}
