package handlers

import (
	"fmt"
	"io"

	"babcia/internal/app"
	roomsController "babcia/internal/controllers/rooms"
	"babcia/internal/logger"
	"babcia/internal/models"
	"babcia/internal/types"

	"github.com/gofiber/fiber/v2"
)

const (
	MaxImageUploadBytes = 10 * 1024 * 1024
	imageFormField      = "image"
	sourceFormField     = "source"
)

type RoomHandler struct {
	Handler
	roomsController roomsController.RoomsControllerInterface
}

type setTaskRequest struct {
	Completed bool `json:"completed"`
}

func NewRoomHandler(app app.App, router fiber.Router) *RoomHandler {
	log := logger.New("handlers").File("rooms_handler")
	return &RoomHandler{
		roomsController: app.Controllers.Rooms,
		Handler: Handler{
			log:        log,
			router:     router,
			middleware: app.Middleware,
		},
	}
}

func (h *RoomHandler) Register() {
	rooms := h.router.Group("/rooms")

	rooms.Get("", h.listRooms)
	rooms.Post("", h.createRoom)
	rooms.Get("/:id", h.getRoom)
	rooms.Delete("/:id", h.deleteRoom)
	rooms.Put("/:id/camera", h.updateCamera)
	rooms.Post("/:id/scan", h.scanRoom)
	rooms.Post("/:id/scan/camera", h.scanRoomFromCamera)
	rooms.Post("/:id/verify", h.verifyRoom)
	rooms.Post("/:id/verify/camera", h.verifyRoomFromCamera)
	rooms.Post("/:id/override", h.overrideRoom)
	rooms.Patch("/:id/tasks/:taskId", h.setTaskCompletion)
	rooms.Put("/:id/schedule", h.updateSchedule)

	h.router.Get("/progress", h.getProgress)
}

func (h *RoomHandler) listRooms(c *fiber.Ctx) error {
	log := h.log.TraceFromContext(c.UserContext()).Function("listRooms")

	rooms, err := h.roomsController.List(c.UserContext())
	if err != nil {
		return respondError(c, log, err, "Failed to list rooms")
	}
	return c.JSON(fiber.Map{"rooms": rooms})
}

func (h *RoomHandler) createRoom(c *fiber.Ctx) error {
	log := h.log.TraceFromContext(c.UserContext()).Function("createRoom")

	var req roomsController.CreateRoomRequest
	if err := c.BodyParser(&req); err != nil {
		log.Warn("Invalid request body", "error", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	room, err := h.roomsController.Create(c.UserContext(), req)
	if err != nil {
		return respondError(c, log, err, "Failed to create room")
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"room": room})
}

func (h *RoomHandler) getRoom(c *fiber.Ctx) error {
	log := h.log.TraceFromContext(c.UserContext()).Function("getRoom")

	roomID, err := parseUUIDParam(c, "id")
	if err != nil {
		return respondError(c, log, err, "Invalid room id")
	}

	room, err := h.roomsController.Get(c.UserContext(), roomID)
	if err != nil {
		return respondError(c, log, err, "Failed to load room")
	}
	return c.JSON(fiber.Map{"room": room})
}

func (h *RoomHandler) deleteRoom(c *fiber.Ctx) error {
	log := h.log.TraceFromContext(c.UserContext()).Function("deleteRoom")

	roomID, err := parseUUIDParam(c, "id")
	if err != nil {
		return respondError(c, log, err, "Invalid room id")
	}

	if err := h.roomsController.Delete(c.UserContext(), roomID); err != nil {
		return respondError(c, log, err, "Failed to delete room")
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *RoomHandler) updateCamera(c *fiber.Ctx) error {
	log := h.log.TraceFromContext(c.UserContext()).Function("updateCamera")

	roomID, err := parseUUIDParam(c, "id")
	if err != nil {
		return respondError(c, log, err, "Invalid room id")
	}

	var req roomsController.UpdateCameraRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	room, err := h.roomsController.UpdateCamera(c.UserContext(), roomID, req)
	if err != nil {
		return respondError(c, log, err, "Failed to update camera")
	}
	return c.JSON(fiber.Map{"room": room})
}

func (h *RoomHandler) scanRoom(c *fiber.Ctx) error {
	log := h.log.TraceFromContext(c.UserContext()).Function("scanRoom")

	roomID, err := parseUUIDParam(c, "id")
	if err != nil {
		return respondError(c, log, err, "Invalid room id")
	}
	image, source, err := readUpload(c, models.CaptureSourceScan)
	if err != nil {
		return respondError(c, log, err, "Invalid image upload")
	}

	room, err := h.roomsController.Scan(c.UserContext(), roomID, image, source)
	if err != nil {
		return respondError(c, log, err, "Failed to scan room")
	}
	return c.JSON(fiber.Map{"room": room})
}

func (h *RoomHandler) scanRoomFromCamera(c *fiber.Ctx) error {
	log := h.log.TraceFromContext(c.UserContext()).Function("scanRoomFromCamera")

	roomID, err := parseUUIDParam(c, "id")
	if err != nil {
		return respondError(c, log, err, "Invalid room id")
	}

	room, err := h.roomsController.ScanFromCamera(c.UserContext(), roomID)
	if err != nil {
		return respondError(c, log, err, "Failed to scan room from camera")
	}
	return c.JSON(fiber.Map{"room": room})
}

func (h *RoomHandler) verifyRoom(c *fiber.Ctx) error {
	log := h.log.TraceFromContext(c.UserContext()).Function("verifyRoom")

	roomID, err := parseUUIDParam(c, "id")
	if err != nil {
		return respondError(c, log, err, "Invalid room id")
	}
	image, source, err := readUpload(c, models.CaptureSourceVerify)
	if err != nil {
		return respondError(c, log, err, "Invalid image upload")
	}

	outcome, err := h.roomsController.Verify(c.UserContext(), roomID, image, source)
	if err != nil {
		return respondError(c, log, err, "Failed to verify room")
	}
	return c.JSON(outcome)
}

func (h *RoomHandler) verifyRoomFromCamera(c *fiber.Ctx) error {
	log := h.log.TraceFromContext(c.UserContext()).Function("verifyRoomFromCamera")

	roomID, err := parseUUIDParam(c, "id")
	if err != nil {
		return respondError(c, log, err, "Invalid room id")
	}

	outcome, err := h.roomsController.VerifyFromCamera(c.UserContext(), roomID)
	if err != nil {
		return respondError(c, log, err, "Failed to verify room from camera")
	}
	return c.JSON(outcome)
}

func (h *RoomHandler) overrideRoom(c *fiber.Ctx) error {
	log := h.log.TraceFromContext(c.UserContext()).Function("overrideRoom")

	roomID, err := parseUUIDParam(c, "id")
	if err != nil {
		return respondError(c, log, err, "Invalid room id")
	}

	room, err := h.roomsController.Override(c.UserContext(), roomID)
	if err != nil {
		return respondError(c, log, err, "Failed to override verification")
	}
	return c.JSON(fiber.Map{"room": room})
}

func (h *RoomHandler) setTaskCompletion(c *fiber.Ctx) error {
	log := h.log.TraceFromContext(c.UserContext()).Function("setTaskCompletion")

	roomID, err := parseUUIDParam(c, "id")
	if err != nil {
		return respondError(c, log, err, "Invalid room id")
	}
	taskID, err := parseUUIDParam(c, "taskId")
	if err != nil {
		return respondError(c, log, err, "Invalid task id")
	}

	var req setTaskRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	room, err := h.roomsController.SetTaskCompletion(c.UserContext(), roomID, taskID, req.Completed)
	if err != nil {
		return respondError(c, log, err, "Failed to update task")
	}
	return c.JSON(fiber.Map{"room": room})
}

func (h *RoomHandler) updateSchedule(c *fiber.Ctx) error {
	log := h.log.TraceFromContext(c.UserContext()).Function("updateSchedule")

	roomID, err := parseUUIDParam(c, "id")
	if err != nil {
		return respondError(c, log, err, "Invalid room id")
	}

	var req roomsController.UpdateScheduleRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	room, err := h.roomsController.UpdateSchedule(c.UserContext(), roomID, req)
	if err != nil {
		return respondError(c, log, err, "Failed to update schedule")
	}
	return c.JSON(fiber.Map{"room": room})
}

func (h *RoomHandler) getProgress(c *fiber.Ctx) error {
	log := h.log.TraceFromContext(c.UserContext()).Function("getProgress")

	progress, err := h.roomsController.Progress(c.UserContext())
	if err != nil {
		return respondError(c, log, err, "Failed to load progress")
	}
	return c.JSON(progress)
}

// readUpload pulls the multipart image and its optional source tag
func readUpload(c *fiber.Ctx, fallback models.CaptureSource) ([]byte, models.CaptureSource, error) {
	header, err := c.FormFile(imageFormField)
	if err != nil {
		return nil, "", fmt.Errorf("%w: multipart field %q is required", types.ErrValidation, imageFormField)
	}
	if header.Size > MaxImageUploadBytes {
		return nil, "", fmt.Errorf("%w: image larger than %d bytes", types.ErrValidation, MaxImageUploadBytes)
	}

	file, err := header.Open()
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", types.ErrImageProcessing, err)
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(io.LimitReader(file, MaxImageUploadBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", types.ErrImageProcessing, err)
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("%w: image is empty", types.ErrValidation)
	}

	switch source := models.CaptureSource(c.FormValue(sourceFormField)); source {
	case "":
		return data, fallback, nil
	case models.CaptureSourceCamera, models.CaptureSourceManual:
		return data, source, nil
	default:
		return nil, "", fmt.Errorf("%w: unknown capture source %q", types.ErrValidation, source)
	}
}
