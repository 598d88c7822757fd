package http

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/stocklink-api/internal/application/dto"
	"github.com/jhoicas/stocklink-api/internal/application/inventory"
	"github.com/jhoicas/stocklink-api/pkg/logger"
)

// StockHandler expone la proyección de stock por producto y su conciliación.
type StockHandler struct {
	uc  *inventory.LedgerUseCase
	log *logger.Logger
}

// NewStockHandler construye el handler.
func NewStockHandler(uc *inventory.LedgerUseCase, log *logger.Logger) *StockHandler {
	return &StockHandler{uc: uc, log: log}
}

// List godoc
// @Summary      Stock de todos los productos
// @Tags         stock
// @Produce      json
// @Success      200  {array}   dto.StockResponse
// @Failure      503  {object}  dto.ErrorResponse
// @Router       /api/stock [get]
func (h *StockHandler) List(c *fiber.Ctx) error {
	list, err := h.uc.ListStock(c.UserContext())
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.StocksFromEntities(list))
}

// Get godoc
// @Summary      Stock de un producto
// @Tags         stock
// @Produce      json
// @Param        id   path      int  true  "ID del producto"
// @Success      200  {object}  dto.StockResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/products/{id}/stock [get]
func (h *StockHandler) Get(c *fiber.Ctx) error {
	id, ok := productIDParam(c)
	if !ok {
		return invalidProductID(c)
	}
	level, err := h.uc.GetStock(c.UserContext(), id)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.StockFromEntity(level))
}

// Movements godoc
// @Summary      Historial de un producto
// @Description  Movimientos del producto en orden de aplicación (el más antiguo primero).
// @Tags         stock
// @Produce      json
// @Param        id   path      int  true  "ID del producto"
// @Success      200  {array}   dto.MovementResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/products/{id}/movements [get]
func (h *StockHandler) Movements(c *fiber.Ctx) error {
	id, ok := productIDParam(c)
	if !ok {
		return invalidProductID(c)
	}
	list, err := h.uc.ListProductMovements(c.UserContext(), id)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.MovementsFromEntities(list))
}

// Reconcile godoc
// @Summary      Conciliar un producto
// @Description  Compara la cantidad proyectada con la reproducción del log de movimientos.
// @Tags         stock
// @Security     Bearer
// @Produce      json
// @Param        id   path      int  true  "ID del producto"
// @Success      200  {object}  dto.ReconciliationResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Failure      401  {object}  dto.ErrorResponse
// @Failure      403  {object}  dto.ErrorResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/products/{id}/reconciliation [get]
func (h *StockHandler) Reconcile(c *fiber.Ctx) error {
	id, ok := productIDParam(c)
	if !ok {
		return invalidProductID(c)
	}
	report, err := h.uc.Reconcile(c.UserContext(), id)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.ReconciliationFromReport(report))
}

func productIDParam(c *fiber.Ctx) (int64, bool) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func invalidProductID(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_ID", Message: "id de producto inválido"})
}
