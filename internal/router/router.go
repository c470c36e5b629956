// Package router wires HTTP routes to their handlers.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/stayhub/booking-core/internal/handler"
	"github.com/stayhub/booking-core/internal/middleware"
)

// Handlers groups everything the router needs to register the API.
type Handlers struct {
	Auth    *handler.AuthHandler
	Room    *handler.RoomHandler
	Lock    *handler.LockHandler
	Booking *handler.BookingHandler
	Proof   *handler.PaymentProofHandler
	Upload  *handler.UploadTokenHandler
}

// Register mounts all routes on the Echo instance.  Public routes
// carry no middleware; guest routes require a GUEST token; host
// routes require a HOST token.  The anonymous upload endpoint is
// deliberately unauthenticated: the single-use token is the
// credential.
func Register(e *echo.Echo, h Handlers, jwtSecret string) {
	e.GET("/healthz", handler.Health)

	// Auth.
	auth := e.Group("/v1/auth")
	auth.POST("/register", h.Auth.Register)
	auth.POST("/login", h.Auth.Login)
	auth.POST("/refresh", h.Auth.Refresh)
	auth.POST("/logout", h.Auth.Logout)

	// Public room reads.
	e.GET("/v1/rooms/:id", h.Room.Get)
	e.GET("/v1/rooms/:id/availability", h.Room.CheckAvailability)

	// Anonymous second-device flow: upload and status polling, with
	// the single-use token as the only credential.
	e.POST("/v1/upload-tokens/:token/proof", h.Upload.Upload)
	e.GET("/v1/upload-tokens/:token", h.Upload.Status)

	// Authenticated routes shared by both roles.
	me := e.Group("/v1")
	me.Use(middleware.JWTAuth(jwtSecret))
	me.Use(middleware.RequireRole("GUEST", "HOST"))
	me.GET("/me", h.Auth.Me)

	// Guest checkout and booking management.
	guest := e.Group("/v1")
	guest.Use(middleware.JWTAuth(jwtSecret))
	guest.Use(middleware.RequireRole("GUEST"))
	guest.POST("/locks", h.Lock.Acquire)
	guest.DELETE("/locks", h.Lock.Release)
	guest.POST("/bookings", h.Booking.Create)
	guest.GET("/my-bookings", h.Booking.List)
	guest.GET("/bookings/:id", h.Booking.Get)
	guest.POST("/bookings/:id/cancel", h.Booking.Cancel)
	guest.POST("/payment-proofs", h.Proof.Submit)
	guest.POST("/upload-tokens", h.Upload.Issue)

	// Host calendar management.
	host := e.Group("/v1/host")
	host.Use(middleware.JWTAuth(jwtSecret))
	host.Use(middleware.RequireRole("HOST"))
	host.GET("/rooms/:id/blocked-dates", h.Room.ListBlockedDates)
	host.POST("/rooms/:id/blocked-dates", h.Room.BlockDate)
	host.DELETE("/rooms/:id/blocked-dates/:day", h.Room.UnblockDate)
}
