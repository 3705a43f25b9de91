// Package web provides the HTTP ingestion and flow validation surface.
package web

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/dmflow/dmflow/pkg/eventbus"
	"github.com/dmflow/dmflow/pkg/events"
	"github.com/dmflow/dmflow/pkg/flow"
	"github.com/dmflow/dmflow/pkg/models"
	"github.com/dmflow/dmflow/pkg/persistence"
)

type APIHandlers struct {
	bus         eventbus.EventPublisher
	persistence persistence.Persistence
	validator   *validator.Validate
}

func NewAPIHandlers(bus eventbus.EventPublisher, p persistence.Persistence, validator *validator.Validate) *APIHandlers {
	return &APIHandlers{
		bus:         bus,
		persistence: p,
		validator:   validator,
	}
}

// Register mounts the API routes on the app.
func Register(app *fiber.App, handlers *APIHandlers) {
	app.Post("/events", handlers.IngestEvent)
	app.Post("/flows/validate", handlers.ValidateFlow)
	app.Get("/health", handlers.HealthCheck)
}

// IngestEvent accepts one normalized platform event and publishes it to the
// event bus for the worker to pick up.
func (h *APIHandlers) IngestEvent(c fiber.Ctx) error {
	var req IngestEventRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	event := events.NewPlatformEvent(req.AccountID, models.TriggerType(req.TriggerType), req.SenderID)
	event.SenderUsername = req.SenderUsername
	event.Text = req.Text
	event.PostID = req.PostID
	event.CommentText = req.CommentText
	event.StoryID = req.StoryID

	if err := h.bus.Publish(c.Context(), event.AccountID, event); err != nil {
		return internalError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(IngestEventResponse{
		EventID: event.ID,
		Status:  "accepted",
	})
}

// ValidateFlow runs the schema check and the semantic validator over a
// candidate flow document and reports every problem at once.
func (h *APIHandlers) ValidateFlow(c fiber.Ctx) error {
	raw := c.Body()

	schemaErrors, err := flow.ValidateDocument(raw)
	if err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if len(schemaErrors) > 0 {
		return c.JSON(ValidateFlowResponse{Valid: false, Errors: schemaErrors})
	}

	var candidate models.Flow
	if err := json.Unmarshal(raw, &candidate); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	result := flow.Validate(&candidate)

	return c.JSON(ValidateFlowResponse{Valid: result.Valid, Errors: result.Errors})
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	status := "healthy"
	message := "dmflow API is healthy"
	httpStatus := http.StatusOK

	if err := h.persistence.HealthCheck(c.Context()); err != nil {
		status = "unhealthy"
		message = "dmflow API is unhealthy: " + err.Error()
		httpStatus = http.StatusInternalServerError
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":    status,
		"message":   message,
		"timestamp": time.Now().UTC(),
	})
}
