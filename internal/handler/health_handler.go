package handler

import (
	"net/http"

	"github.com/JackBerck/guyub-rukun-sub001/internal/health"
	"github.com/gin-gonic/gin"
)

type HealthHandler struct {
	checker *health.Checker
}

func NewHealthHandler(checker *health.Checker) *HealthHandler {
	return &HealthHandler{checker: checker}
}

// GET /healthz
func (h *HealthHandler) Health(c *gin.Context) {
	status := h.checker.Check(c.Request.Context())

	code := http.StatusOK
	if !status.Healthy() {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, status)
}
