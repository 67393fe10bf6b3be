package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/edutech-platform/quiz-service/internal/utils"
)

// BaseHandler carries the shared handler dependencies and helpers.
type BaseHandler struct {
	logger utils.Logger
}

func NewBaseHandler(logger utils.Logger) BaseHandler {
	return BaseHandler{logger: logger}
}

// ErrorResponse is the uniform error envelope.
type ErrorResponse struct {
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// SuccessResponse wraps successful payloads that carry a message.
type SuccessResponse struct {
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// LogRequest logs a handler entry with the request-scoped logger when
// available.
func (h *BaseHandler) LogRequest(c *gin.Context, msg string, args ...any) {
	if l, ok := utils.GetLogger(c); ok {
		l.Info(msg, args...)
		return
	}
	h.logger.Info(msg, args...)
}

func (h *BaseHandler) LogError(c *gin.Context, msg string, err error, args ...any) {
	args = append(args, "error", err)
	if l, ok := utils.GetLogger(c); ok {
		l.Error(msg, args...)
		return
	}
	h.logger.Error(msg, args...)
}

// parseIDParam parses a positive uint path parameter. On failure it
// writes the 400 response and returns 0; callers bail out on 0.
func (h *BaseHandler) parseIDParam(c *gin.Context, name string) uint {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid " + name + " parameter",
		})
		return 0
	}
	return uint(id)
}

// parseIntQuery parses an optional integer query parameter with a
// default.
func (h *BaseHandler) parseIntQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}

// parseUintQuery parses an optional uint query parameter, nil when
// absent or invalid.
func (h *BaseHandler) parseUintQuery(c *gin.Context, name string) *uint {
	raw := c.Query(name)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return nil
	}
	id := uint(v)
	return &id
}

// requireUserID extracts the authenticated user ID, writing the 401
// response when missing.
func (h *BaseHandler) requireUserID(c *gin.Context) (string, bool) {
	userID, err := GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: "User not authenticated",
		})
		return "", false
	}
	return userID, true
}
