package router

import (
	"github.com/labstack/echo/v4"

	"github.com/utsavlook/booking-functions/internal/handler"
	"github.com/utsavlook/booking-functions/internal/middleware"
	"github.com/utsavlook/booking-functions/internal/model"
)

// RegisterCustomer registers customer-scoped endpoints under /v1. All
// routes require a valid JWT and the CUSTOMER role. Cancellation is not
// here: it goes through the requestCancellation function.
func RegisterCustomer(e *echo.Echo, h *handler.BookingHandler, d Deps) {
	g := e.Group("/v1", d.chain(middleware.RequireRole(model.RoleCustomer))...)
	g.POST("/bookings", h.CreateBooking)
	g.GET("/my-bookings", h.ListMyBookings)
}
