package api

// ActiveTasksResponse is the HTTP response for GET /api/v1/task/active.
type ActiveTasksResponse struct {
	Active bool `json:"active"`
}

// HealthResponse is the HTTP response for health check.
type HealthResponse struct {
	Status  string         `json:"status"`
	Details map[string]any `json:"details,omitempty"`
}

// ErrorResponse is the HTTP response for errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
