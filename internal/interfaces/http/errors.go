package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/stocklink-api/internal/application/dto"
	"github.com/jhoicas/stocklink-api/internal/domain"
	"github.com/jhoicas/stocklink-api/pkg/logger"
)

// writeError traduce los errores del ledger a HTTP.
//   - 400: movimiento inválido o stock insuficiente (el cliente debe cambiar la petición).
//   - 404: producto inexistente.
//   - 500: commit incierto; no reintentar sin conciliar.
//   - 503: fallo de almacenamiento reintentable.
func writeError(c *fiber.Ctx, log *logger.Logger, err error) error {
	status, body := fiber.StatusInternalServerError, dto.ErrorResponse{Code: "INTERNAL", Message: "error interno del servidor"}

	switch {
	case errors.Is(err, domain.ErrInvalidMovement):
		status, body = fiber.StatusBadRequest, dto.ErrorResponse{Code: "INVALID_MOVEMENT", Message: err.Error()}
	case errors.Is(err, domain.ErrInsufficientStock):
		status, body = fiber.StatusBadRequest, dto.ErrorResponse{Code: "INSUFFICIENT_STOCK", Message: err.Error()}
	case errors.Is(err, domain.ErrProductNotFound):
		status, body = fiber.StatusNotFound, dto.ErrorResponse{Code: "PRODUCT_NOT_FOUND", Message: err.Error()}
	case errors.Is(err, domain.ErrCommitUncertain):
		status, body = fiber.StatusInternalServerError, dto.ErrorResponse{
			Code:    "COMMIT_UNCERTAIN",
			Message: "no se pudo confirmar si el movimiento quedó registrado; concilie el producto antes de reintentar",
		}
	case errors.Is(err, domain.ErrStorageFailure):
		c.Set(fiber.HeaderRetryAfter, "1")
		status, body = fiber.StatusServiceUnavailable, dto.ErrorResponse{Code: "STORAGE_UNAVAILABLE", Message: "almacenamiento no disponible, intente más tarde"}
	}

	if status >= fiber.StatusInternalServerError {
		log.Error().Err(err).
			Str("request_id", requestID(c)).
			Str("path", c.Path()).
			Int("status", status).
			Msg("petición fallida")
	}
	return c.Status(status).JSON(body)
}

func requestID(c *fiber.Ctx) string {
	s, _ := c.Locals("requestid").(string)
	return s
}
