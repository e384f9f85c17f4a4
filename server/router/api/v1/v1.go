// Package v1 exposes the decision analysis REST API.
package v1

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/hrygo/decisionflow/ai/pipeline"
	"github.com/hrygo/decisionflow/internal/profile"
)

type APIV1Service struct {
	DecisionService *DecisionService

	Profile *profile.Profile
}

func NewAPIV1Service(profile *profile.Profile, runner *pipeline.Runner) *APIV1Service {
	return &APIV1Service{
		DecisionService: &DecisionService{Runner: runner},
		Profile:         profile,
	}
}

// Register mounts the v1 routes on the given Echo instance.
func (s *APIV1Service) Register(echoServer *echo.Echo) {
	apiGroup := echoServer.Group("/api/v1")
	apiGroup.Use(middleware.CORS())
	apiGroup.POST("/decisions/analyze", s.DecisionService.AnalyzeDecision)
}
