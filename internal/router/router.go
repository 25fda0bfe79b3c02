package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/utsavlook/booking-functions/internal/handler"
	"github.com/utsavlook/booking-functions/internal/middleware"
	"github.com/utsavlook/booking-functions/internal/model"
)

// Deps carries what the protected route groups need besides the handler.
// RateLimit and Cache may be nil, in which case they are skipped.
type Deps struct {
	JWTSecret string
	RateLimit echo.MiddlewareFunc
	Cache     echo.MiddlewareFunc
}

func (d Deps) chain(extra ...echo.MiddlewareFunc) []echo.MiddlewareFunc {
	mws := []echo.MiddlewareFunc{middleware.JWTAuth(d.JWTSecret)}
	if d.RateLimit != nil {
		mws = append(mws, d.RateLimit)
	}
	return append(mws, extra...)
}

// RegisterRoutes registers routes that do not require authentication.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterFunctions registers the two booking functions. Any authenticated
// caller may invoke them; who is allowed to act on a given booking is
// decided by the service (status for claims, ownership for cancellations).
func RegisterFunctions(e *echo.Echo, h *handler.BookingHandler, d Deps) {
	g := e.Group("/v1/functions", d.chain()...)
	g.POST("/claimJob", h.ClaimJob)
	g.POST("/requestCancellation", h.RequestCancellation)
}

// RegisterArtist registers the open-jobs feed for artists and admins. It
// is the one cached read, since every artist sees the same list.
func RegisterArtist(e *echo.Echo, h *handler.BookingHandler, d Deps) {
	mws := d.chain(middleware.RequireRole(model.RoleArtist, model.RoleAdmin))
	if d.Cache != nil {
		mws = append(mws, d.Cache)
	}
	g := e.Group("/v1", mws...)
	g.GET("/jobs", h.ListOpenJobs)
}

// RegisterShared registers booking reads open to every role; visibility of
// a single booking is enforced in the service.
func RegisterShared(e *echo.Echo, h *handler.BookingHandler, d Deps) {
	g := e.Group("/v1", d.chain(middleware.RequireRole(model.RoleCustomer, model.RoleArtist, model.RoleAdmin))...)
	g.GET("/bookings/:id", h.GetBooking)
}

// RegisterAll wires every group in the order main expects.
func RegisterAll(e *echo.Echo, h *handler.BookingHandler, d Deps) {
	RegisterRoutes(e)
	RegisterFunctions(e, h, d)
	RegisterCustomer(e, h, d)
	RegisterArtist(e, h, d)
	RegisterShared(e, h, d)
}
