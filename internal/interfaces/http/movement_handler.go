package http

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/stocklink-api/internal/application/dto"
	"github.com/jhoicas/stocklink-api/internal/application/inventory"
	"github.com/jhoicas/stocklink-api/internal/domain/entity"
	"github.com/jhoicas/stocklink-api/pkg/logger"
)

// MovementHandler maneja las peticiones HTTP del log de movimientos.
type MovementHandler struct {
	uc        *inventory.LedgerUseCase
	validator *requestValidator
	log       *logger.Logger
}

// NewMovementHandler construye el handler.
func NewMovementHandler(uc *inventory.LedgerUseCase, log *logger.Logger) *MovementHandler {
	return &MovementHandler{uc: uc, validator: newRequestValidator(), log: log}
}

// List godoc
// @Summary      Listar movimientos
// @Description  Todos los movimientos confirmados, del más reciente al más antiguo.
// @Tags         movements
// @Produce      json
// @Success      200  {array}   dto.MovementResponse
// @Failure      503  {object}  dto.ErrorResponse
// @Router       /api/movements [get]
func (h *MovementHandler) List(c *fiber.Ctx) error {
	list, err := h.uc.ListMovements(c.UserContext())
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.MovementsFromEntities(list))
}

// Create godoc
// @Summary      Registrar movimiento
// @Description  Aplica una entrada (IN) o salida (OUT) al stock del producto y la agrega al log.
// @Tags         movements
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body      dto.CreateMovementRequest  true  "type (IN|OUT), quantity > 0, product_id"
// @Success      201   {object}  dto.MovementResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      401   {object}  dto.ErrorResponse
// @Failure      403   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Failure      500   {object}  dto.ErrorResponse
// @Failure      503   {object}  dto.ErrorResponse
// @Router       /api/movements [post]
func (h *MovementHandler) Create(c *fiber.Ctx) error {
	userID := GetUserID(c)
	if userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	var in dto.CreateMovementRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	if fields := h.validator.Validate(in); fields != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "datos inválidos", Fields: fields})
	}
	m, err := h.uc.CreateMovement(c.UserContext(), inventory.CreateMovementInput{
		Direction: entity.Direction(in.Type),
		Quantity:  int64(in.Quantity),
		ProductID: int64(in.ProductID),
		ActorID:   userID,
	})
	if err != nil {
		return writeError(c, h.log, err)
	}
	c.Location(fmt.Sprintf("/api/products/%d/movements", m.ProductID))
	return c.Status(fiber.StatusCreated).JSON(dto.MovementFromEntity(m))
}

// Journal godoc
// @Summary      Libro de movimientos en PDF
// @Tags         movements
// @Security     Bearer
// @Produce      application/pdf
// @Success      200  {file}    binary
// @Failure      401  {object}  dto.ErrorResponse
// @Failure      403  {object}  dto.ErrorResponse
// @Failure      500  {object}  dto.ErrorResponse
// @Router       /api/movements/journal.pdf [get]
func (h *MovementHandler) Journal(c *fiber.Ctx) error {
	pdf, err := h.uc.ExportJournal(c.UserContext())
	if err != nil {
		return writeError(c, h.log, err)
	}
	name := fmt.Sprintf("movimientos-%s.pdf", time.Now().UTC().Format("20060102-150405"))
	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, name))
	return c.Send(pdf)
}
