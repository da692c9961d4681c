package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/eltmon/panopticon/pkg/version"
)

const (
	healthStatusHealthy   = "healthy"
	healthStatusDegraded  = "degraded"
	healthStatusUnhealthy = "unhealthy"
)

// healthHandler handles GET /healthz. Unlike the Patrol Loop's
// classification, this only reports whether the engine process itself is
// reachable and its own collaborators are wired — it is not a proxy for
// worker agent health.
func (s *Server) healthHandler(c *echo.Context) error {
	checks := make(map[string]HealthCheck)
	status := healthStatusHealthy

	if s.store != nil {
		checks["store"] = HealthCheck{Status: healthStatusHealthy}
	} else {
		status = healthStatusUnhealthy
		checks["store"] = HealthCheck{Status: healthStatusUnhealthy, Message: "not wired"}
	}

	if held := s.lock.Holder(); held != "" {
		checks["global_lock"] = HealthCheck{Status: healthStatusDegraded, Message: "held by " + held}
		if status == healthStatusHealthy {
			status = healthStatusDegraded
		}
	} else {
		checks["global_lock"] = HealthCheck{Status: healthStatusHealthy}
	}

	httpStatus := http.StatusOK
	if status == healthStatusUnhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	return c.JSON(httpStatus, &HealthResponse{
		Status:  status,
		Version: version.Full(),
		Checks:  checks,
	})
}

// versionHandler handles GET /version.
func (s *Server) versionHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, &VersionResponse{Version: version.Full()})
}
