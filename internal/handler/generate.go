package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/angelocurti/Agentic-Playlist-Generator/internal/model"
	"github.com/angelocurti/Agentic-Playlist-Generator/internal/orchestrator"
	"github.com/angelocurti/Agentic-Playlist-Generator/internal/store"
	"github.com/angelocurti/Agentic-Playlist-Generator/pkg/response"
)

type GenerateHandler struct {
	orch      *orchestrator.Orchestrator
	validator *validator.Validate
}

func NewGenerateHandler(orch *orchestrator.Orchestrator, v *validator.Validate) *GenerateHandler {
	return &GenerateHandler{
		orch:      orch,
		validator: v,
	}
}

// Generate handles POST /generate
func (h *GenerateHandler) Generate(c *fiber.Ctx) error {
	var req model.GenerateRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	job, err := h.orch.Submit(req.ToPlaylistRequest())
	if err != nil {
		return mapJobError(c, err)
	}

	return response.Accepted(c, model.SubmitResponse{
		JobID:   job.ID,
		Status:  job.Status,
		Message: "Playlist generation started",
	})
}

// Status handles GET /status/:jobId
func (h *GenerateHandler) Status(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	job, err := h.orch.GetStatus(jobID)
	if err != nil {
		return mapJobError(c, err)
	}

	return response.OK(c, job)
}

// List handles GET /jobs
func (h *GenerateHandler) List(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)
	return response.OK(c, fiber.Map{
		"jobs": h.orch.List(limit),
	})
}

// Cancel handles POST /jobs/:jobId/cancel
func (h *GenerateHandler) Cancel(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	job, err := h.orch.Cancel(jobID)
	if err != nil {
		return mapJobError(c, err)
	}

	return response.OK(c, job)
}

// Delete handles DELETE /jobs/:jobId
func (h *GenerateHandler) Delete(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	if err := h.orch.Delete(jobID); err != nil {
		return mapJobError(c, err)
	}

	return response.NoContent(c)
}

// mapJobError translates orchestrator errors onto the response envelope.
func mapJobError(c *fiber.Ctx, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return response.NotFound(c, "Job not found")
	}
	switch model.KindOf(err) {
	case model.ErrKindInvalidRequest:
		return response.ValidationError(c, err.Error(), nil)
	case model.ErrKindNotFound:
		return response.NotFound(c, err.Error())
	default:
		return response.ServiceError(c, err.Error())
	}
}

func formatValidationErrors(err error) interface{} {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		errors := make(map[string]string)
		for _, e := range validationErrors {
			errors[e.Field()] = e.Tag()
		}
		return errors
	}
	return nil
}
