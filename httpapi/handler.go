// Package httpapi exposes an agent over HTTP with echo: liveness and
// readiness probes, presence discovery, local message injection, outbound
// send and Prometheus metrics.
package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hupe1980/agentshim/core"
)

// Agent is the part of *agent.Agent the HTTP surface needs.
type Agent interface {
	HealthCheck(ctx context.Context) core.HealthStatus
	Ready() bool
	HandleMessage(ctx context.Context, msg map[string]any)
	Send(ctx context.Context, target, msgType string, content any) (string, error)
	DiscoverAgents(ctx context.Context) ([]string, error)
	GetAgentInfo(ctx context.Context, agentID string) (*core.PresenceRecord, error)
	FindAgentsByCapability(ctx context.Context, capability string) ([]core.PresenceRecord, error)
}

// Handler handles HTTP requests for one agent.
type Handler struct {
	agent Agent
}

// NewHandler creates a new handler.
func NewHandler(agent Agent) *Handler {
	return &Handler{agent: agent}
}

// RegisterRoutes registers the routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)
	e.GET("/readyz", h.Ready)

	e.GET("/v1/agents", h.ListAgents)
	e.GET("/v1/agents/:agent_id", h.GetAgent)
	e.POST("/v1/agents/:agent_id/messages", h.SendMessage)

	e.POST("/v1/messages", h.InjectMessage)
}

// Health returns the health snapshot, 503 when the agent is not ready.
// GET /healthz
func (h *Handler) Health(c echo.Context) error {
	status := h.agent.HealthCheck(c.Request().Context())
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, status)
}

// Ready reports readiness.
// GET /readyz
func (h *Handler) Ready(c echo.Context) error {
	if !h.agent.Ready() {
		return c.JSON(http.StatusServiceUnavailable, map[string]bool{"ready": false})
	}
	return c.JSON(http.StatusOK, map[string]bool{"ready": true})
}

// ListAgents lists registered agent ids, or full records filtered by
// capability when ?capability= is given.
// GET /v1/agents
func (h *Handler) ListAgents(c echo.Context) error {
	ctx := c.Request().Context()

	if capability := c.QueryParam("capability"); capability != "" {
		recs, err := h.agent.FindAgentsByCapability(ctx, capability)
		if err != nil {
			return errorJSON(c, err)
		}
		return c.JSON(http.StatusOK, map[string]any{"agents": recs})
	}

	ids, err := h.agent.DiscoverAgents(ctx)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"agent_ids": ids})
}

// GetAgent returns one presence record.
// GET /v1/agents/:agent_id
func (h *Handler) GetAgent(c echo.Context) error {
	rec, err := h.agent.GetAgentInfo(c.Request().Context(), c.Param("agent_id"))
	if err != nil {
		return errorJSON(c, err)
	}
	if rec == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "agent not found"})
	}
	return c.JSON(http.StatusOK, rec)
}

// MessageRequest is the body of the message endpoints.
type MessageRequest struct {
	Type    string `json:"type"`
	Content any    `json:"content"`
}

// SendMessage sends a message from this agent to agent_id.
// POST /v1/agents/:agent_id/messages
func (h *Handler) SendMessage(c echo.Context) error {
	var req MessageRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.Type == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "type is required"})
	}

	id, err := h.agent.Send(c.Request().Context(), c.Param("agent_id"), req.Type, req.Content)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusAccepted, map[string]string{"message_id": id})
}

// InjectMessage dispatches a message to this agent's handlers without going
// through the mailbox.
// POST /v1/messages
func (h *Handler) InjectMessage(c echo.Context) error {
	var req MessageRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.Type == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "type is required"})
	}

	h.agent.HandleMessage(c.Request().Context(), map[string]any{
		"type":    req.Type,
		"content": req.Content,
	})
	return c.NoContent(http.StatusNoContent)
}

func errorJSON(c echo.Context, err error) error {
	code := http.StatusInternalServerError
	if errors.Is(err, core.ErrNotInitialized) {
		code = http.StatusConflict
	}
	return c.JSON(code, map[string]string{"error": err.Error()})
}
