package api

import (
	"encoding/json"
	"strconv"

	domain "github.com/example/task-tracker/domain/task"
	"github.com/example/task-tracker/modules/report"
	"github.com/example/task-tracker/modules/task"
	"github.com/example/task-tracker/pkg/apperr"
	"github.com/gofiber/fiber/v2"
)

// setupRoutes configures all HTTP routes.
func (m *APIModule) setupRoutes(app *fiber.App) {
	app.Get("/health", m.healthHandler)

	api := app.Group("/api/v1")

	tasks := api.Group("/task")
	tasks.Post("/", m.createTask)
	tasks.Patch("/", m.updateTask)
	tasks.Get("/", m.listTasks)
	tasks.Get("/active", m.existsActiveTasks)
	tasks.Get("/:id", m.getTask)

	api.Post("/report", m.teamReport)
}

func (m *APIModule) healthHandler(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{
		Status: "healthy",
		Details: map[string]any{
			"module": "api",
		},
	})
}

// createTask handles POST /api/v1/task.
func (m *APIModule) createTask(c *fiber.Ctx) error {
	if len(c.Body()) == 0 {
		return m.writeError(c, apperr.Validation("task data is required"))
	}
	var req task.CreateTaskRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return invalidRequest(c, "Invalid request body")
	}

	created, err := m.taskPort.CreateTask(c.Context(), &req)
	if err != nil {
		return m.writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(created)
}

// updateTask handles PATCH /api/v1/task.
func (m *APIModule) updateTask(c *fiber.Ctx) error {
	if len(c.Body()) == 0 {
		return m.writeError(c, apperr.Validation("update data is required"))
	}
	var req task.UpdateTaskRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return invalidRequest(c, "Invalid request body")
	}

	updated, err := m.taskPort.UpdateTask(c.Context(), &req)
	if err != nil {
		return m.writeError(c, err)
	}
	return c.JSON(updated)
}

// getTask handles GET /api/v1/task/:id.
func (m *APIModule) getTask(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return invalidRequest(c, "Task ID must be an integer")
	}

	t, err := m.taskPort.GetTask(c.Context(), id)
	if err != nil {
		return m.writeError(c, err)
	}
	return c.JSON(t)
}

// listTasks handles GET /api/v1/task?status=&assignee=.
func (m *APIModule) listTasks(c *fiber.Ctx) error {
	var req task.ListTasksRequest

	if raw := c.Query("status"); raw != "" {
		status, err := domain.ParseStatus(raw)
		if err != nil {
			return invalidRequest(c, err.Error())
		}
		req.Status = &status
	}
	if raw := c.Query("assignee"); raw != "" {
		assignee, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return invalidRequest(c, "assignee must be an integer")
		}
		req.Assignee = &assignee
	}

	tasks, err := m.taskPort.ListTasks(c.Context(), &req)
	if err != nil {
		return m.writeError(c, err)
	}
	if tasks == nil {
		tasks = []domain.Task{}
	}
	return c.JSON(tasks)
}

// existsActiveTasks handles GET /api/v1/task/active?assigneeId=.
func (m *APIModule) existsActiveTasks(c *fiber.Ctx) error {
	raw := c.Query("assigneeId")
	if raw == "" {
		return invalidRequest(c, "assigneeId is required")
	}
	assigneeID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return invalidRequest(c, "assigneeId must be an integer")
	}

	active, err := m.taskPort.HasActiveTasks(c.Context(), assigneeID)
	if err != nil {
		return m.writeError(c, err)
	}
	return c.JSON(ActiveTasksResponse{Active: active})
}

// teamReport handles POST /api/v1/report.
func (m *APIModule) teamReport(c *fiber.Ctx) error {
	if len(c.Body()) == 0 {
		return m.writeError(c, apperr.Validation("report request is required"))
	}
	var req report.ReportRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return invalidRequest(c, "Invalid request body")
	}

	r, err := m.reportPort.TeamReport(c.Context(), &req)
	if err != nil {
		return m.writeError(c, err)
	}
	return c.JSON(r)
}

func invalidRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
		Error:   "invalid_request",
		Message: message,
	})
}

// writeError maps an error kind to its HTTP status. Errors without a kind
// are logged and reported with a generic message.
func (m *APIModule) writeError(c *fiber.Ctx, err error) error {
	kind := apperr.KindOf(err)

	var status int
	switch kind {
	case apperr.KindValidation:
		status = fiber.StatusBadRequest
	case apperr.KindNotFound:
		status = fiber.StatusNotFound
	case apperr.KindDependency:
		status = fiber.StatusServiceUnavailable
		m.logger.Warn("Dependency failure", "path", c.Path(), "error", err)
	default:
		status = fiber.StatusInternalServerError
		m.logger.Error("Unhandled error", "path", c.Path(), "error", err)
	}

	return c.Status(status).JSON(ErrorResponse{
		Error:   string(kind),
		Message: apperr.MessageOf(err),
	})
}
