package handlers

import (
	"babcia/internal/app"
	roomsController "babcia/internal/controllers/rooms"
	"babcia/internal/logger"

	"github.com/gofiber/fiber/v2"
)

type PersonaHandler struct {
	Handler
	roomsController roomsController.RoomsControllerInterface
}

func NewPersonaHandler(app app.App, router fiber.Router) *PersonaHandler {
	return &PersonaHandler{
		roomsController: app.Controllers.Rooms,
		Handler: Handler{
			log:        logger.New("handlers").File("personas_handler"),
			router:     router,
			middleware: app.Middleware,
		},
	}
}

func (h *PersonaHandler) Register() {
	personas := h.router.Group("/personas")

	personas.Get("", h.listPersonas)
	personas.Get("/:persona/interactions", h.listInteractions)
}

func (h *PersonaHandler) listPersonas(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"personas": h.roomsController.Personas()})
}

func (h *PersonaHandler) listInteractions(c *fiber.Ctx) error {
	log := h.log.TraceFromContext(c.UserContext()).Function("listInteractions")

	interactions, err := h.roomsController.Interactions(
		c.UserContext(),
		c.Params("persona"),
		c.QueryInt("limit", 0),
	)
	if err != nil {
		return respondError(c, log, err, "Failed to load interactions")
	}
	return c.JSON(fiber.Map{"interactions": interactions})
}
