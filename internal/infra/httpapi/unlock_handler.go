// internal/infra/httpapi/unlock_handler.go
package httpapi

import (
	"net/http"
	"strings"

	"estate_lifecycle_engine/internal/app"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// UnlockHandler exposes PIN redemption and package retrieval.
type UnlockHandler struct {
	unlockSvc app.UnlockService
	logger    *logrus.Logger
}

func NewUnlockHandler(us app.UnlockService, logger *logrus.Logger) *UnlockHandler {
	return &UnlockHandler{unlockSvc: us, logger: logger}
}

type executorReq struct {
	Name         string `json:"name"`
	Relationship string `json:"relationship"`
	Contact      string `json:"contact"`
}

type redeemReq struct {
	Code     string      `json:"code"`
	Executor executorReq `json:"executor"`
}

type packageReq struct {
	RequestID string      `json:"request_id"`
	Executor  executorReq `json:"executor"`
}

func (r executorReq) details() app.ExecutorDetails {
	return app.ExecutorDetails{
		Name:         strings.TrimSpace(r.Name),
		Relationship: strings.TrimSpace(r.Relationship),
		Contact:      strings.TrimSpace(r.Contact),
	}
}

// Redeem consumes a single-use unlock PIN. Both the unknown/expired and the
// already-used categories return the same generic message: a caller probing
// codes must not learn which check failed.
func (h *UnlockHandler) Redeem(c echo.Context) error {
	var req redeemReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Code = strings.TrimSpace(req.Code)
	if req.Code == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "code required"})
	}
	if strings.TrimSpace(req.Executor.Name) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "executor name required"})
	}

	err := h.unlockSvc.Redeem(c.Request().Context(), req.Code, req.Executor.details())
	switch err {
	case nil:
		return c.JSON(http.StatusOK, echo.Map{"status": "accepted"})
	case app.ErrInvalidOrExpiredCode, app.ErrCodeAlreadyUsed:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid or expired code"})
	default:
		h.logger.Errorf("Code redemption failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}

// GeneratePackage releases the will package at most once per request.
func (h *UnlockHandler) GeneratePackage(c echo.Context) error {
	var req packageReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.RequestID = strings.TrimSpace(req.RequestID)
	if req.RequestID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "request_id required"})
	}

	pkg, err := h.unlockSvc.GeneratePackage(c.Request().Context(), req.RequestID, req.Executor.details())
	switch err {
	case nil:
		return c.JSON(http.StatusOK, pkg)
	case app.ErrNotFound:
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	case app.ErrVerificationIncomplete:
		return c.JSON(http.StatusForbidden, echo.Map{"error": "verification has not been completed"})
	case app.ErrAlreadyDownloaded:
		return c.JSON(http.StatusConflict, echo.Map{"error": "package has already been downloaded"})
	default:
		h.logger.Errorf("Package generation failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}
