package http

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/utils"

	"github.com/jhoicas/stocklink-api/internal/application/dto"
	"github.com/jhoicas/stocklink-api/internal/application/inventory"
	"github.com/jhoicas/stocklink-api/pkg/config"
	"github.com/jhoicas/stocklink-api/pkg/logger"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Ledger      *inventory.LedgerUseCase
	JWTSecret   string
	Log         *logger.Logger
	Ping        func(ctx context.Context) error // health del almacenamiento; nil = siempre ok
	Backend     string
	ServiceName string
	SwaggerFile string // vacío o inexistente = sin /docs
}

// NewServer construye la app Fiber con middlewares y rutas registradas.
func NewServer(cfg config.HTTPConfig, deps RouterDeps) *fiber.App {
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	app := fiber.New(fiber.Config{
		AppName:      deps.ServiceName,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
		ErrorHandler: errorHandler(deps.Log),
	})
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(helmet.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: orDefault(cfg.CORSOrigins, "*"),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))
	app.Use(accessLog(deps.Log))

	// Swagger UI en local: http://localhost:<port>/docs
	if deps.SwaggerFile != "" {
		if _, err := os.Stat(deps.SwaggerFile); err == nil {
			app.Use(swagger.New(swagger.Config{
				BasePath: "/",
				FilePath: deps.SwaggerFile,
				Path:     "docs",
				Title:    deps.ServiceName,
			}))
		}
	}

	app.Get("/health", healthHandler(deps))

	if cfg.RateLimitMax > 0 {
		app.Use("/api", limiter.New(limiter.Config{
			Max:        cfg.RateLimitMax,
			Expiration: cfg.RateLimitWindow,
			LimitReached: func(c *fiber.Ctx) error {
				return c.Status(fiber.StatusTooManyRequests).JSON(dto.ErrorResponse{Code: "RATE_LIMITED", Message: "demasiadas peticiones"})
			},
		}))
	}
	Router(app, deps)

	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "ruta no encontrada"})
	})
	return app
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api")
	auth := AuthMiddleware(deps.JWTSecret)

	movementHandler := NewMovementHandler(deps.Ledger, deps.Log)
	stockHandler := NewStockHandler(deps.Ledger, deps.Log)

	// Movimientos: lectura pública, escritura protegida
	movements := api.Group("/movements")
	movements.Get("/", movementHandler.List)
	movements.Post("/", auth, RequireRole(RoleAdmin, RoleBodeguero, RoleUser), movementHandler.Create)
	movements.Get("/journal.pdf", auth, RequireRole(RoleAdmin, RoleAuditor), movementHandler.Journal)

	// Stock (público)
	api.Get("/stock", stockHandler.List)

	products := api.Group("/products")
	products.Get("/:id/stock", stockHandler.Get)
	products.Get("/:id/movements", stockHandler.Movements)
	products.Get("/:id/reconciliation", auth, RequireRole(RoleAdmin, RoleAuditor), stockHandler.Reconcile)
}

func healthHandler(deps RouterDeps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		resp := dto.HealthResponse{Status: "ok", Service: deps.ServiceName, Backend: deps.Backend}
		if deps.Ping != nil {
			ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
			defer cancel()
			if err := deps.Ping(ctx); err != nil {
				deps.Log.Warn().Err(err).Msg("health: almacenamiento no disponible")
				resp.Status = "degraded"
				return c.Status(fiber.StatusServiceUnavailable).JSON(resp)
			}
		}
		return c.JSON(resp)
	}
}

// errorHandler responde en JSON los errores que escapan de los handlers (body demasiado grande, 405, panics recuperados).
func errorHandler(log *logger.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
		}
		if code >= fiber.StatusInternalServerError {
			log.Error().Err(err).Str("request_id", requestID(c)).Str("path", c.Path()).Msg("error no controlado")
			return c.Status(code).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: "error interno del servidor"})
		}
		status := strings.ToUpper(strings.ReplaceAll(utils.StatusMessage(code), " ", "_"))
		return c.Status(code).JSON(dto.ErrorResponse{Code: status, Message: err.Error()})
	}
}

// accessLog una línea por petición con zerolog.
func accessLog(log *logger.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		status := c.Response().StatusCode()
		if err != nil {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}
		ev := log.Info()
		if status >= fiber.StatusInternalServerError {
			ev = log.Warn()
		}
		ev.Str("request_id", requestID(c)).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Msg("http")
		return err
	}
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
