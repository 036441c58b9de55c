package http

import (
	"net/http"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/labstack/echo/v4"
)

// TriggerPublicationHandler requests a pass and returns before it runs.
func (s *Server) TriggerPublicationHandler(c echo.Context) error {
	if !s.scheduler.IsRunning() {
		return c.String(http.StatusServiceUnavailable, "publication scheduler is not running")
	}

	s.scheduler.TriggerNow()

	log.FromContext(c.Request().Context()).Info("Publication pass requested")

	return c.NoContent(http.StatusAccepted)
}
