package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/stayhub/booking-core/internal/model"
	"github.com/stayhub/booking-core/internal/repository"
	"github.com/stayhub/booking-core/internal/service"
)

// RoomHandler serves public room reads plus host-side blocked-date
// management.
type RoomHandler struct {
	Rooms        *repository.RoomRepo
	Blocked      *repository.BlockedDateRepo
	Users        *repository.UserRepo
	Availability *service.Availability
}

func NewRoomHandler(rooms *repository.RoomRepo, blocked *repository.BlockedDateRepo,
	users *repository.UserRepo, availability *service.Availability) *RoomHandler {
	if rooms == nil || blocked == nil || users == nil || availability == nil {
		panic("nil dependency passed to NewRoomHandler")
	}
	return &RoomHandler{Rooms: rooms, Blocked: blocked, Users: users, Availability: availability}
}

// Get handles GET /v1/rooms/:id.
func (h *RoomHandler) Get(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	room, err := h.Rooms.GetByID(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "room not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load room failed"})
	}
	return c.JSON(http.StatusOK, room)
}

// CheckAvailability handles GET /v1/rooms/:id/availability.  The
// answer is advisory: the same check runs again inside booking
// creation, where it is authoritative.
func (h *RoomHandler) CheckAvailability(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	dr, err := parseDates(c.QueryParam("check_in"), c.QueryParam("check_out"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	d, err := h.Availability.Check(c.Request().Context(), id, dr)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "availability check failed"})
	}
	return c.JSON(http.StatusOK, d)
}

// ownsRoom verifies the calling host manages the room's tenant.
func (h *RoomHandler) ownsRoom(c echo.Context, roomID uint64) (*model.Room, int, string) {
	hostID, err := getUserID(c)
	if err != nil {
		return nil, http.StatusUnauthorized, "unauthorized"
	}
	ctx := c.Request().Context()
	room, err := h.Rooms.GetByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, http.StatusNotFound, "room not found"
		}
		return nil, http.StatusInternalServerError, "load room failed"
	}
	host, err := h.Users.GetByID(ctx, hostID)
	if err != nil {
		return nil, http.StatusInternalServerError, "load user failed"
	}
	if host.TenantID != room.TenantID {
		return nil, http.StatusForbidden, "forbidden"
	}
	return room, 0, ""
}

type blockDateReq struct {
	Day string `json:"day" validate:"required"`
}

// ListBlockedDates handles GET /v1/host/rooms/:id/blocked-dates.
func (h *RoomHandler) ListBlockedDates(c echo.Context) error {
	roomID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	if _, code, msg := h.ownsRoom(c, roomID); code != 0 {
		return c.JSON(code, echo.Map{"error": msg})
	}
	list, err := h.Blocked.ListByRoom(c.Request().Context(), roomID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list blocked dates failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"blocked_dates": list})
}

// BlockDate handles POST /v1/host/rooms/:id/blocked-dates.  Blocking
// a date does not touch existing bookings; it only stops new ones.
func (h *RoomHandler) BlockDate(c echo.Context) error {
	roomID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	if _, code, msg := h.ownsRoom(c, roomID); code != 0 {
		return c.JSON(code, echo.Map{"error": msg})
	}
	var req blockDateReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	day, err := time.Parse(model.DateLayout, req.Day)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "day must be YYYY-MM-DD"})
	}
	if err := h.Blocked.Add(c.Request().Context(), roomID, day); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "block date failed"})
	}
	return c.NoContent(http.StatusCreated)
}

// UnblockDate handles DELETE /v1/host/rooms/:id/blocked-dates/:day.
func (h *RoomHandler) UnblockDate(c echo.Context) error {
	roomID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	if _, code, msg := h.ownsRoom(c, roomID); code != 0 {
		return c.JSON(code, echo.Map{"error": msg})
	}
	day, err := time.Parse(model.DateLayout, c.Param("day"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "day must be YYYY-MM-DD"})
	}
	if err := h.Blocked.Remove(c.Request().Context(), roomID, day); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "unblock date failed"})
	}
	return c.NoContent(http.StatusNoContent)
}
