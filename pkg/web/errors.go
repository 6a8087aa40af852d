package web

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
	"github.com/quasarerp/automations/pkg/credentials"
	"github.com/quasarerp/automations/pkg/engine"
	"github.com/quasarerp/automations/pkg/persistence"
	"github.com/quasarerp/automations/pkg/services"
)

func problem(c fiber.Ctx, status int, kind, detail string) error {
	p := problems.NewStatusProblem(status).
		WithInstance(c.Path()).
		WithType(kind).
		WithDetail(detail)

	return c.Status(status).JSON(p)
}

func badRequest(c fiber.Ctx, detail string) error {
	return problem(c, fiber.StatusBadRequest, "validation_error", detail)
}

func notFound(c fiber.Ctx, detail string) error {
	return problem(c, fiber.StatusNotFound, "not_found", detail)
}

func internalError(c fiber.Ctx, err error) error {
	p := problems.NewStatusProblem(fiber.StatusInternalServerError).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(p)
}

// handleServiceError maps service, engine and store errors onto problem responses.
func handleServiceError(c fiber.Ctx, err error) error {
	switch {
	case services.IsValidationError(err):
		return badRequest(c, err.Error())
	case errors.Is(err, credentials.ErrUnknownKind), errors.Is(err, persistence.ErrInvalidID):
		return badRequest(c, err.Error())
	case services.IsConflictError(err), errors.Is(err, engine.ErrNotPaused):
		return problem(c, fiber.StatusConflict, "conflict", err.Error())
	case persistence.IsWorkflowNotFound(err):
		return problem(c, fiber.StatusNotFound, "workflow_not_found", "workflow not found")
	case persistence.IsInstanceNotFound(err):
		return problem(c, fiber.StatusNotFound, "instance_not_found", "instance not found")
	case persistence.IsLeadNotFound(err):
		return problem(c, fiber.StatusNotFound, "lead_not_found", "lead not found")
	default:
		return internalError(c, err)
	}
}
