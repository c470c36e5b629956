package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/stayhub/booking-core/internal/repository"
	"github.com/stayhub/booking-core/internal/service"
)

// BookingHandler exposes the booking lifecycle to guests.
type BookingHandler struct {
	Lifecycle *service.Lifecycle
}

func NewBookingHandler(lc *service.Lifecycle) *BookingHandler {
	if lc == nil {
		panic("nil lifecycle passed to NewBookingHandler")
	}
	return &BookingHandler{Lifecycle: lc}
}

type createBookingReq struct {
	RoomID      uint64  `json:"room_id" validate:"required"`
	CheckIn     string  `json:"check_in" validate:"required"`
	CheckOut    string  `json:"check_out" validate:"required"`
	Guests      uint32  `json:"guests" validate:"required,min=1"`
	AddOnAmount float64 `json:"add_on_amount" validate:"gte=0"`
	Notes       *string `json:"notes"`
}

type cancelReq struct {
	Reason string `json:"reason" validate:"required"`
}

// Create handles POST /v1/bookings.  The booking opens in pending
// status; payment proof submission confirms it.
func (h *BookingHandler) Create(c echo.Context) error {
	guestID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req createBookingReq
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

	b, err := h.Lifecycle.Create(c.Request().Context(), service.CreateParams{
		RoomID:      req.RoomID,
		GuestID:     guestID,
		Dates:       dr,
		Guests:      req.Guests,
		AddOnAmount: req.AddOnAmount,
		Notes:       req.Notes,
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "room not found"})
		case errors.Is(err, service.ErrUnavailable),
			errors.Is(err, service.ErrNoActiveLock):
			return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
		case errors.Is(err, service.ErrRoomInactive),
			errors.Is(err, service.ErrMinStay),
			errors.Is(err, service.ErrCapacity):
			return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create booking failed"})
	}
	return c.JSON(http.StatusCreated, b)
}

// Get handles GET /v1/bookings/:id.  Guests can only see their own
// bookings.
func (h *BookingHandler) Get(c echo.Context) error {
	guestID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	b, err := h.Lifecycle.Get(c.Request().Context(), id, guestID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
		case errors.Is(err, repository.ErrForbidden):
			return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load booking failed"})
	}
	return c.JSON(http.StatusOK, b)
}

// List handles GET /v1/my-bookings, returning the guest's bookings
// newest first.
func (h *BookingHandler) List(c echo.Context) error {
	guestID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	list, err := h.Lifecycle.ListByGuest(c.Request().Context(), guestID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list bookings failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"bookings": list})
}

// Cancel handles POST /v1/bookings/:id/cancel.  Guests may cancel
// within the cancellation window; afterwards only the system can.
func (h *BookingHandler) Cancel(c echo.Context) error {
	guestID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	var req cancelReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	b, err := h.Lifecycle.CancelByGuest(c.Request().Context(), id, guestID, req.Reason)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "not_found"})
		case errors.Is(err, repository.ErrForbidden):
			return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
		case errors.Is(err, service.ErrWindowExpired):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "window_expired"})
		case errors.Is(err, service.ErrAlreadyTerminal):
			return c.JSON(http.StatusConflict, echo.Map{"error": "already_terminal"})
		case errors.Is(err, service.ErrReasonRequired):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "cancel failed"})
	}
	return c.JSON(http.StatusOK, b)
}
