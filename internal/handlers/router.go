package handlers

import (
	"fmt"

	"babcia/internal/app"
	"babcia/internal/handlers/middleware"
	"babcia/internal/logger"
	"babcia/internal/types"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

type Handler struct {
	middleware middleware.Middleware
	log        logger.Logger
	router     fiber.Router
}

func Router(router fiber.Router, app *app.App) (err error) {
	router.Use(app.Middleware.TraceID())
	setupWebSocketRoute(router, app)

	api := router.Group("/api")
	HealthHandler(api, app.Config)

	protected := api.Group("", app.Middleware.RequireAuth())
	NewRoomHandler(*app, protected).Register()
	NewSettingsHandler(*app, protected).Register()
	NewPersonaHandler(*app, protected).Register()
	NewImageHandler(*app, protected).Register()

	return nil
}

func setupWebSocketRoute(router fiber.Router, app *app.App) {
	router.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	router.Get("/ws", websocket.New(func(c *websocket.Conn) {
		app.Websocket.HandleWebSocket(c)
	}))
}

// respondError answers with the status the error taxonomy assigns. Server
// side failures are logged and their details withheld.
func respondError(c *fiber.Ctx, log logger.Logger, err error, message string) error {
	status := types.HTTPStatus(err)
	if status >= fiber.StatusInternalServerError {
		log.Er(message, err, "subject", middleware.GetSubject(c))
		if status == fiber.StatusInternalServerError {
			return c.Status(status).JSON(fiber.Map{
				"error":   message,
				"traceId": middleware.GetTraceID(c),
			})
		}
	}
	return c.Status(status).JSON(fiber.Map{
		"error":   message,
		"details": err.Error(),
	})
}

func parseUUIDParam(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid %s %q", types.ErrValidation, name, c.Params(name))
	}
	return id, nil
}
