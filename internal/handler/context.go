package handler // handler defines http handlers

import (
    "github.com/labstack/echo/v4" // echo defines request context types

    "github.com/utsavlook/booking-functions/internal/model"
)

// getUserID returns the authenticated caller id placed on the context by
// the JWT middleware, or "" when the request carries no identity.
func getUserID(c echo.Context) string {
    if v, ok := c.Get("user_id").(string); ok {
        return v
    }
    return ""
}

// getRole returns the caller's role claim, or "" when absent.
func getRole(c echo.Context) model.Role {
    switch v := c.Get("role").(type) {
    case model.Role:
        return v
    case string:
        return model.Role(v)
    }
    return ""
}
