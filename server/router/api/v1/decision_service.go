package v1

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/decisionflow/ai/decision"
	"github.com/hrygo/decisionflow/ai/pipeline"
)

// DecisionService handles decision analysis requests.
type DecisionService struct {
	Runner *pipeline.Runner
}

// AnalyzeDecision runs the full agent pipeline for one decision request and
// returns the structured recommendation. Errors are rendered through the
// standard envelope with the mapped status code.
func (s *DecisionService) AnalyzeDecision(c echo.Context) error {
	requestID := requestIDFrom(c)

	var req decision.Request
	if err := c.Bind(&req); err != nil {
		slog.Warn("decision: malformed request body", "request_id", requestID, "error", err)
		status, envelope := invalidRequest(err, requestID)
		return c.JSON(status, envelope)
	}
	if err := req.Validate(); err != nil {
		slog.Warn("decision: request validation failed", "request_id", requestID, "error", err)
		status, envelope := invalidRequest(err, requestID)
		return c.JSON(status, envelope)
	}

	response, err := s.Runner.Run(c.Request().Context(), &req, requestID)
	if err != nil {
		status, envelope := mapError(err, requestID)
		return c.JSON(status, envelope)
	}

	return c.JSON(http.StatusOK, response)
}

// requestIDFrom reads the request id assigned by the RequestID middleware.
func requestIDFrom(c echo.Context) string {
	if id := c.Request().Header.Get(echo.HeaderXRequestID); id != "" {
		return id
	}
	return c.Response().Header().Get(echo.HeaderXRequestID)
}
