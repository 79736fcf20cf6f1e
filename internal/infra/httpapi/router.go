// internal/infra/httpapi/router.go
package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Health verifies the service is up; used by load balancers.
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

// RegisterRoutes wires the engine's exposed operations. There is no
// authentication here: the surrounding application terminates sessions and
// fronts these endpoints.
func RegisterRoutes(e *echo.Echo, lh *LivenessHandler, uh *UnlockHandler) {
	e.GET("/healthz", Health)

	g := e.Group("/api/v1")
	g.POST("/liveness/respond", lh.Respond)
	g.POST("/unlock/redeem", uh.Redeem)
	g.POST("/unlock/package", uh.GeneratePackage)
}
