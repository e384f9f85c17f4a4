// Package server assembles the HTTP surface: request middleware, the v1 API
// routes and the operational endpoints.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/hrygo/decisionflow/ai/agents"
	"github.com/hrygo/decisionflow/ai/pipeline"
	"github.com/hrygo/decisionflow/ai/prompt"
	"github.com/hrygo/decisionflow/ai/validation"
	"github.com/hrygo/decisionflow/internal/profile"
	"github.com/hrygo/decisionflow/internal/version"
	apiv1 "github.com/hrygo/decisionflow/server/router/api/v1"
)

// agentNames are the prompt templates the readiness probe requires, sourced
// from the pipeline's own identifiers so the probe cannot drift from it.
var agentNames = []string{
	agents.NameClarifier,
	agents.NameCriteriaBuilder,
	agents.NameBiasChecker,
	agents.NameOptionEvaluator,
	agents.NameDecisionSynthesizer,
	validation.RepairTemplateName,
}

type Server struct {
	Profile *profile.Profile

	echoServer *echo.Echo
	prompts    *prompt.Loader
}

func NewServer(_ context.Context, instanceProfile *profile.Profile, runner *pipeline.Runner, prompts *prompt.Loader, metricsHandler http.Handler) (*Server, error) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: func() string {
			return uuid.New().String()
		},
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			slog.Info("http request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency_ms", v.Latency.Milliseconds(),
				"request_id", v.RequestID,
			)
			return nil
		},
	}))

	s := &Server{
		Profile:    instanceProfile,
		echoServer: e,
		prompts:    prompts,
	}

	e.GET("/healthz", s.healthz)
	e.GET("/ready", s.ready)
	if metricsHandler != nil {
		e.GET("/metrics", echo.WrapHandler(metricsHandler))
	}

	apiv1.NewAPIV1Service(instanceProfile, runner).Register(e)

	return s, nil
}

// healthz is the liveness probe. It reports the process is up and its build
// version, and checks nothing else.
func (s *Server) healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version.String(),
	})
}

// ready is the readiness probe: the LLM credentials must be configured and
// every agent template loadable from the active prompt bundle.
func (s *Server) ready(c echo.Context) error {
	checks := map[string]bool{
		"llm_api_key":   s.Profile.LLMAPIKey != "",
		"prompt_bundle": s.prompts.Verify(agentNames) == nil,
	}

	for _, ok := range checks {
		if !ok {
			return c.JSON(http.StatusServiceUnavailable, map[string]any{
				"status": "not_ready",
				"checks": checks,
			})
		}
	}
	return c.JSON(http.StatusOK, map[string]any{
		"status": "ready",
		"checks": checks,
	})
}

func (s *Server) Start(_ context.Context) error {
	address := fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)
	return s.echoServer.Start(address)
}

func (s *Server) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := s.echoServer.Shutdown(ctx); err != nil {
		slog.Error("failed to shutdown server", "error", err)
	}
	slog.Info("server shutdown complete")
}
