package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/stayhub/booking-core/internal/service"
)

// LockHandler exposes reservation lock acquisition and release to
// guests going through checkout.
type LockHandler struct {
	Locks *service.LockManager
}

func NewLockHandler(locks *service.LockManager) *LockHandler {
	if locks == nil {
		panic("nil lock manager passed to NewLockHandler")
	}
	return &LockHandler{Locks: locks}
}

type lockReq struct {
	RoomID   uint64 `json:"room_id" validate:"required"`
	CheckIn  string `json:"check_in" validate:"required"`
	CheckOut string `json:"check_out" validate:"required"`
}

// Acquire handles POST /v1/locks.  A granted lock reserves the date
// range for this guest until it expires or the booking is finalized.
// A denial is a normal outcome, reported as 409 so the client can
// tell the guest the dates are being held by someone else.
func (h *LockHandler) Acquire(c echo.Context) error {
	guestID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req lockReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	dr, err := parseDates(req.CheckIn, req.CheckOut)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	res, err := h.Locks.Acquire(c.Request().Context(), req.RoomID, guestID, dr)
	if err != nil {
		if errors.Is(err, service.ErrTransient) {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "temporarily unable to reserve dates, please retry"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "lock acquisition failed"})
	}
	if !res.Granted {
		return c.JSON(http.StatusConflict, echo.Map{"denied": true, "reason": res.Reason})
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"granted":    true,
		"lock_id":    res.LockID,
		"expires_at": res.ExpiresAt,
	})
}

// Release handles DELETE /v1/locks.  Releasing a lock that is already
// gone is fine; the endpoint is idempotent.
func (h *LockHandler) Release(c echo.Context) error {
	guestID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	roomID, err := queryID(c, "room_id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	dr, err := parseDates(c.QueryParam("check_in"), c.QueryParam("check_out"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	if err := h.Locks.Release(c.Request().Context(), roomID, guestID, dr); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "release failed"})
	}
	return c.NoContent(http.StatusNoContent)
}
