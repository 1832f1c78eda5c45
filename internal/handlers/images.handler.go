package handlers

import (
	"path/filepath"

	"babcia/internal/app"
	roomsController "babcia/internal/controllers/rooms"
	"babcia/internal/logger"

	"github.com/gofiber/fiber/v2"
)

type ImageHandler struct {
	Handler
	roomsController roomsController.RoomsControllerInterface
}

func NewImageHandler(app app.App, router fiber.Router) *ImageHandler {
	return &ImageHandler{
		roomsController: app.Controllers.Rooms,
		Handler: Handler{
			log:        logger.New("handlers").File("images_handler"),
			router:     router,
			middleware: app.Middleware,
		},
	}
}

func (h *ImageHandler) Register() {
	h.router.Get("/images/:name", h.getImage)
}

// getImage serves a stored image; names are immutable so responses cache
func (h *ImageHandler) getImage(c *fiber.Ctx) error {
	log := h.log.TraceFromContext(c.UserContext()).Function("getImage")

	name := c.Params("name")
	data, err := h.roomsController.Image(c.UserContext(), name)
	if err != nil {
		return respondError(c, log, err, "Failed to load image")
	}

	c.Type(filepath.Ext(name))
	c.Set(fiber.HeaderCacheControl, "private, max-age=31536000, immutable")
	return c.Send(data)
}
