package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ministryofjustice/laa-data-access-api-sub001/internal/publication"
)

type Scheduler interface {
	TriggerNow()
	IsRunning() bool
}

type PassState interface {
	State() publication.State
}

// Server is the operational surface of the publisher: health, manual
// triggering and metrics. It exposes no domain data.
type Server struct {
	e    *echo.Echo
	addr string

	scheduler Scheduler
	passState PassState
}

func NewServer(
	e *echo.Echo,
	addr string,
	scheduler Scheduler,
	passState PassState,
) *Server {
	srv := &Server{
		e:         e,
		addr:      addr,
		scheduler: scheduler,
		passState: passState,
	}

	e.GET("/health", srv.HealthHandler)
	e.POST("/publication/run", srv.TriggerPublicationHandler)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// logging middleware
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			log.FromContext(c.Request().Context()).
				WithField("path", c.Request().URL.Path).
				Debug("Handling a request")

			err := next(c)

			if err != nil {
				log.FromContext(c.Request().Context()).
					WithField("error", err).
					Error("Request handling error")
			}

			return err
		}
	})

	return srv
}

func (s *Server) Start() error {
	err := s.e.Start(s.addr)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	return s.e.Shutdown(ctx)
}
