// Package web provides HTTP handlers and REST API endpoints for workflow automation.
package web

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/quasarerp/automations/pkg/credentials"
	"github.com/quasarerp/automations/pkg/models"
	"github.com/quasarerp/automations/pkg/nodes"
	"github.com/quasarerp/automations/pkg/persistence"
	"github.com/quasarerp/automations/pkg/services"
)

type APIHandlers struct {
	workflows   *services.Workflow
	triggers    *services.TriggerListener
	resumer     *services.Resumer
	runner      services.Runner
	instances   persistence.InstanceRepository
	credentials credentials.Store
	validator   *validator.Validate
}

func NewAPIHandlers(
	workflows *services.Workflow,
	triggers *services.TriggerListener,
	resumer *services.Resumer,
	runner services.Runner,
	instances persistence.InstanceRepository,
	store credentials.Store,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		workflows:   workflows,
		triggers:    triggers,
		resumer:     resumer,
		runner:      runner,
		instances:   instances,
		credentials: store,
		validator:   validator,
	}
}

// Routes mounts every endpoint on r.
func Routes(r fiber.Router, h *APIHandlers) {
	r.Get("/health", h.HealthCheck)
	r.Get("/node-types", h.GetNodeTypes)

	w := r.Group("/workflows")
	w.Get("/", h.GetWorkflows)
	w.Post("/", h.CreateWorkflow)
	w.Get("/:id", h.GetWorkflow)
	w.Put("/:id", h.RedeployWorkflow)
	w.Patch("/:id/active", h.SetWorkflowActive)
	w.Delete("/:id", h.DeleteWorkflow)

	r.Post("/leads/:id/approve", h.ApproveLead)

	i := r.Group("/instances")
	i.Get("/", h.GetInstances)
	i.Get("/:id", h.GetInstance)
	i.Post("/:id/step", h.StepInstance)
	i.Post("/:id/resume", h.ResumeInstance)

	r.Put("/credentials/:kind", h.PutCredential)
	r.Delete("/credentials/:kind", h.DeleteCredential)

	r.Post("/sweeps", h.Sweep)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, ok := h.workflows.HealthCheck(c.Context())

	status := "unhealthy"
	message := "Automations API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if ok {
		status = "healthy"
		message = "Automations API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

func (h *APIHandlers) GetNodeTypes(c fiber.Ctx) error {
	return c.JSON(nodes.Catalog())
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	workflows, err := h.workflows.List(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(workflows)
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	workflow, err := h.workflows.FetchByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(workflow)
}

func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	var req services.DeployRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	workflow, err := h.workflows.Deploy(c.Context(), req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(workflow)
}

func (h *APIHandlers) RedeployWorkflow(c fiber.Ctx) error {
	var req services.DeployRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	workflow, err := h.workflows.Redeploy(c.Context(), c.Params("id"), req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(workflow)
}

func (h *APIHandlers) SetWorkflowActive(c fiber.Ctx) error {
	var req SetActiveRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	workflow, err := h.workflows.SetActive(c.Context(), c.Params("id"), *req.Active)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(workflow)
}

func (h *APIHandlers) DeleteWorkflow(c fiber.Ctx) error {
	err := h.workflows.Delete(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) ApproveLead(c fiber.Ctx) error {
	started, err := h.triggers.TriggerWorkflowForLead(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"started": started})
}

func (h *APIHandlers) GetInstances(c fiber.Ctx) error {
	filter := persistence.InstanceFilter{
		WorkflowID: c.Query("workflow_id"),
		LeadID:     c.Query("lead_id"),
	}

	if status := c.Query("status"); status != "" {
		filter.Status = models.InstanceStatus(status)
		if !filter.Status.Valid() {
			return badRequest(c, "Unknown instance status: "+status)
		}
	}

	instances, err := h.instances.List(c.Context(), filter)
	if err != nil {
		return handleServiceError(c, err)
	}

	summaries := make([]InstanceSummary, 0, len(instances))
	for _, instance := range instances {
		summaries = append(summaries, SummarizeInstance(instance))
	}

	return c.JSON(summaries)
}

func (h *APIHandlers) GetInstance(c fiber.Ctx) error {
	instance, err := h.instances.GetByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(instance)
}

func (h *APIHandlers) StepInstance(c fiber.Ctx) error {
	instance, err := h.runner.Step(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(instance)
}

func (h *APIHandlers) ResumeInstance(c fiber.Ctx) error {
	instance, err := h.runner.Resume(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(instance)
}

// PutCredential connects a credential. Connecting the mail account resumes
// every instance paused for lack of one.
func (h *APIHandlers) PutCredential(c fiber.Ctx) error {
	kind, err := credentials.ParseKind(c.Params("kind"))
	if err != nil {
		return notFound(c, err.Error())
	}

	var req CredentialRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	err = h.credentials.Set(c.Context(), kind, req.Token)
	if err != nil {
		return internalError(c, err)
	}

	resumed := 0

	if kind == credentials.KindMail {
		resumed, err = h.resumer.ResumePaused(c.Context())
		if err != nil {
			return internalError(c, err)
		}
	}

	return c.JSON(fiber.Map{"kind": kind, "connected": true, "resumed": resumed})
}

func (h *APIHandlers) DeleteCredential(c fiber.Ctx) error {
	kind, err := credentials.ParseKind(c.Params("kind"))
	if err != nil {
		return notFound(c, err.Error())
	}

	err = h.credentials.Delete(c.Context(), kind)
	if err != nil {
		return internalError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// Sweep steps every waiting instance that is due.
func (h *APIHandlers) Sweep(c fiber.Ctx) error {
	stepped, err := h.resumer.Sweep(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{"stepped": stepped})
}
