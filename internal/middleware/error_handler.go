package middleware

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v3"

	"github.com/rajivgeraev/reloop-api/internal/apperrors"
	"github.com/rajivgeraev/reloop-api/internal/logger"
)

var statusByCode = map[apperrors.Code]int{
	apperrors.CodeUnauthenticated:    fiber.StatusUnauthorized,
	apperrors.CodeInvalidArgument:    fiber.StatusBadRequest,
	apperrors.CodeSelfTrade:          fiber.StatusBadRequest,
	apperrors.CodeListingUnavailable: fiber.StatusConflict,
	apperrors.CodeInvalidState:       fiber.StatusConflict,
	apperrors.CodeNotFound:           fiber.StatusNotFound,
	apperrors.CodeInsufficientFunds:  fiber.StatusPaymentRequired,
	apperrors.CodeTxConflict:         fiber.StatusServiceUnavailable,
	apperrors.CodePermissionDenied:   fiber.StatusForbidden,
}

// HTTPStatus возвращает HTTP-статус для ошибки ядра
func HTTPStatus(err error) int {
	if status, ok := statusByCode[apperrors.CodeOf(err)]; ok {
		return status
	}
	return fiber.StatusInternalServerError
}

// ErrorHandler отдает ошибки в JSON: {"error": ..., "code": ...}
func ErrorHandler(log *slog.Logger) fiber.ErrorHandler {
	return func(c fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
		}

		var appErr *apperrors.AppError
		if !errors.As(err, &appErr) || appErr.Code == apperrors.CodeInternal {
			log.Error("внутренняя ошибка",
				slog.String("method", c.Method()),
				slog.String("path", c.Path()),
				logger.Err(err),
			)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "внутренняя ошибка сервера",
				"code":  apperrors.CodeInternal,
			})
		}

		return c.Status(HTTPStatus(err)).JSON(fiber.Map{
			"error": appErr.Message,
			"code":  appErr.Code,
		})
	}
}
