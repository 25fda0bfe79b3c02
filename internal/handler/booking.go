package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/utsavlook/booking-functions/internal/model"
	"github.com/utsavlook/booking-functions/internal/service"
)

// BookingService is what the booking endpoints need from the service layer.
type BookingService interface {
	ClaimJob(ctx context.Context, callerID, bookingID string) (service.ClaimResult, error)
	RequestCancellation(ctx context.Context, callerID, bookingID string) (service.CancellationResult, error)
	CreateBooking(ctx context.Context, callerID string, in service.CreateBookingInput) (*model.Booking, error)
	GetBooking(ctx context.Context, callerID string, role model.Role, bookingID string) (*model.Booking, error)
	ListCustomerBookings(ctx context.Context, callerID string) ([]model.Booking, error)
	ListOpenJobs(ctx context.Context, limit int) ([]model.Booking, error)
}

// BookingHandler exposes the booking functions and the booking resources
// over HTTP. Authentication and role checks are done by middleware; the
// caller id is read from the echo context and never from the body.
type BookingHandler struct {
	Svc BookingService
}

// NewBookingHandler panics on a nil service, like the other constructors.
func NewBookingHandler(svc BookingService) *BookingHandler {
	if svc == nil {
		panic("nil service passed to NewBookingHandler")
	}
	return &BookingHandler{Svc: svc}
}

type functionRequest struct {
	BookingID string `json:"bookingId"`
}

// ClaimJob handles POST /v1/functions/claimJob.
// Body: {"bookingId": "..."}. Responds 200 {"success": true, "message": ...}
// or an error body; a booking somebody else already claimed is 409.
func (h *BookingHandler) ClaimJob(c echo.Context) error {
	var req functionRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	res, err := h.Svc.ClaimJob(c.Request().Context(), getUserID(c), req.BookingID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// RequestCancellation handles POST /v1/functions/requestCancellation.
// Body: {"bookingId": "..."}. Responds 200 with success, refundable and a
// message; only the booking's customer may call it.
func (h *BookingHandler) RequestCancellation(c echo.Context) error {
	var req functionRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	res, err := h.Svc.RequestCancellation(c.Request().Context(), getUserID(c), req.BookingID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

type createBookingRequest struct {
	ServiceCategory    string `json:"serviceCategory"`
	PackageName        string `json:"packageName"`
	Location           string `json:"location"`
	EventDate          string `json:"eventDate"`
	AdvanceAmountPaise int64  `json:"advanceAmountPaise"`
}

// CreateBooking handles POST /v1/bookings and returns 201 with the new booking.
func (h *BookingHandler) CreateBooking(c echo.Context) error {
	var req createBookingRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	eventDate, err := time.Parse(time.RFC3339, req.EventDate)
	if err != nil {
		return badRequest(c, "eventDate must be an RFC3339 timestamp")
	}
	b, err := h.Svc.CreateBooking(c.Request().Context(), getUserID(c), service.CreateBookingInput{
		ServiceCategory:    req.ServiceCategory,
		PackageName:        req.PackageName,
		Location:           req.Location,
		EventDate:          eventDate,
		AdvanceAmountPaise: req.AdvanceAmountPaise,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, b)
}

// GetBooking handles GET /v1/bookings/:id.
func (h *BookingHandler) GetBooking(c echo.Context) error {
	b, err := h.Svc.GetBooking(c.Request().Context(), getUserID(c), getRole(c), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

// ListMyBookings handles GET /v1/my-bookings.
func (h *BookingHandler) ListMyBookings(c echo.Context) error {
	items, err := h.Svc.ListCustomerBookings(c.Request().Context(), getUserID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items, "count": len(items)})
}

// ListOpenJobs handles GET /v1/jobs?limit=N.
func (h *BookingHandler) ListOpenJobs(c echo.Context) error {
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return badRequest(c, "limit must be an integer")
		}
		limit = n
		if limit == 0 {
			// An explicit zero is out of range, not "use the default".
			limit = -1
		}
	}
	items, err := h.Svc.ListOpenJobs(c.Request().Context(), limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items, "count": len(items)})
}
