package handlers

import (
	"babcia/internal/app"
	roomsController "babcia/internal/controllers/rooms"
	"babcia/internal/logger"
	"babcia/internal/models"

	"github.com/gofiber/fiber/v2"
)

type SettingsHandler struct {
	Handler
	roomsController roomsController.RoomsControllerInterface
}

func NewSettingsHandler(app app.App, router fiber.Router) *SettingsHandler {
	return &SettingsHandler{
		roomsController: app.Controllers.Rooms,
		Handler: Handler{
			log:        logger.New("handlers").File("settings_handler"),
			router:     router,
			middleware: app.Middleware,
		},
	}
}

func (h *SettingsHandler) Register() {
	settings := h.router.Group("/settings")

	settings.Get("", h.getSettings)
	settings.Put("", h.updateSettings)
	settings.Post("/test-key", h.testKey)
	settings.Post("/test-bridge", h.testBridge)

	h.router.Get("/cameras", h.listCameras)
}

func (h *SettingsHandler) getSettings(c *fiber.Ctx) error {
	log := h.log.TraceFromContext(c.UserContext()).Function("getSettings")

	view, err := h.roomsController.GetSettings(c.UserContext())
	if err != nil {
		return respondError(c, log, err, "Failed to load settings")
	}
	return c.JSON(fiber.Map{"settings": view})
}

func (h *SettingsHandler) updateSettings(c *fiber.Ctx) error {
	log := h.log.TraceFromContext(c.UserContext()).Function("updateSettings")

	var req models.SettingsUpdate
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	view, err := h.roomsController.UpdateSettings(c.UserContext(), req)
	if err != nil {
		return respondError(c, log, err, "Failed to update settings")
	}
	return c.JSON(fiber.Map{"settings": view})
}

func (h *SettingsHandler) testKey(c *fiber.Ctx) error {
	log := h.log.TraceFromContext(c.UserContext()).Function("testKey")

	var req roomsController.TestCredentialRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}
	}

	ok, err := h.roomsController.TestCredential(c.UserContext(), req)
	if err != nil {
		return respondError(c, log, err, "Failed to test API key")
	}
	return c.JSON(fiber.Map{"ok": ok})
}

func (h *SettingsHandler) testBridge(c *fiber.Ctx) error {
	log := h.log.TraceFromContext(c.UserContext()).Function("testBridge")

	var req roomsController.TestBridgeRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}
	}

	ok, err := h.roomsController.TestBridge(c.UserContext(), req)
	if err != nil {
		return respondError(c, log, err, "Failed to test camera bridge")
	}
	return c.JSON(fiber.Map{"ok": ok})
}

func (h *SettingsHandler) listCameras(c *fiber.Ctx) error {
	log := h.log.TraceFromContext(c.UserContext()).Function("listCameras")

	cameras, err := h.roomsController.ListCameras(c.UserContext())
	if err != nil {
		return respondError(c, log, err, "Failed to list cameras")
	}
	return c.JSON(fiber.Map{"cameras": cameras})
}
