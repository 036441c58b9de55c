package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

type HealthResponse struct {
	Status string `json:"status"`
	Pass   string `json:"pass"`
}

func (s *Server) HealthHandler(c echo.Context) error {
	response := HealthResponse{
		Status: "ok",
		Pass:   s.passState.State().String(),
	}

	if !s.scheduler.IsRunning() {
		response.Status = "publication scheduler is not running"
		return c.JSON(http.StatusServiceUnavailable, response)
	}

	return c.JSON(http.StatusOK, response)
}
