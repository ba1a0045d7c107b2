package middleware

import (
	"strconv"

	"github.com/gofiber/fiber/v3"
)

// QueryInt читает целочисленный query-параметр; некорректное значение заменяется на def
func QueryInt(c fiber.Ctx, key string, def int) int {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
