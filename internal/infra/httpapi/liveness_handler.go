// internal/infra/httpapi/liveness_handler.go
package httpapi

import (
	"net/http"
	"strings"

	"estate_lifecycle_engine/internal/app"
	"estate_lifecycle_engine/internal/domain/liveness"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// LivenessHandler exposes the liveness-response entry point of the
// verification state machine.
type LivenessHandler struct {
	verifSvc app.VerificationService
	logger   *logrus.Logger
}

func NewLivenessHandler(vs app.VerificationService, logger *logrus.Logger) *LivenessHandler {
	return &LivenessHandler{verifSvc: vs, logger: logger}
}

type livenessRespondReq struct {
	Token  string `json:"token"`
	Status string `json:"status"` // alive | deceased
}

// Respond consumes a response token from a liveness notification.
func (h *LivenessHandler) Respond(c echo.Context) error {
	var req livenessRespondReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Token = strings.TrimSpace(req.Token)
	if req.Token == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "token required"})
	}
	response := liveness.Response(strings.ToLower(strings.TrimSpace(req.Status)))
	if !response.Valid() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "status must be 'alive' or 'deceased'"})
	}

	err := h.verifSvc.RecordLivenessResponse(c.Request().Context(), req.Token, response)
	switch err {
	case nil:
		return c.JSON(http.StatusOK, echo.Map{"status": "recorded"})
	case app.ErrInvalidToken:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid or expired token"})
	case app.ErrAlreadyResponded:
		return c.JSON(http.StatusConflict, echo.Map{"error": "this notification has already been responded to"})
	case app.ErrNotFound:
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	default:
		h.logger.Errorf("Liveness response failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}
