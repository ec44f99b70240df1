package prelabel

import (
	"prelabel/internal/core/job"
	"prelabel/internal/utils/parser"

	"github.com/cockroachdb/errors"
	"github.com/gofiber/fiber/v2"
)

type Handler struct {
	jobs *job.Service
}

func NewHandler(jobs *job.Service) *Handler {
	return &Handler{jobs: jobs}
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type logsQuery struct {
	Since int64 `query:"since"`
}

type createResponse struct {
	Success bool   `json:"success"`
	JobID   string `json:"job_id"`
}

func fail(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.IsAny(err, job.ErrValidation, parser.ErrBadQuery):
		status = fiber.StatusBadRequest
	case errors.Is(err, job.ErrNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, job.ErrConflict):
		status = fiber.StatusConflict
	}
	return c.Status(status).JSON(errorResponse{Error: err.Error()})
}

func (h *Handler) HandleCreateJob(c *fiber.Ctx) error {
	var spec job.Spec
	if err := c.BodyParser(&spec); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: "invalid body"})
	}
	id, err := h.jobs.Enqueue(c.UserContext(), spec)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(createResponse{Success: true, JobID: id})
}

func (h *Handler) HandleGetJob(c *fiber.Ctx) error {
	j, err := h.jobs.GetStatus(c.UserContext(), c.Params("jobId"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(j)
}

func (h *Handler) HandleGetLogs(c *fiber.Ctx) error {
	var q logsQuery
	if err := parser.ParseQuery(c, &q); err != nil {
		return fail(c, err)
	}
	page, err := h.jobs.GetLogsSince(c.UserContext(), c.Params("jobId"), q.Since)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(page)
}

func (h *Handler) HandleCancelJob(c *fiber.Ctx) error {
	out, err := h.jobs.RequestCancel(c.UserContext(), c.Params("jobId"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(out)
}
