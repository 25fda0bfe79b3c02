package middleware

// identity.go holds the caller lookup shared by the rate limiter and the
// response cache. Both run after JWTAuth on protected routes, so the
// subject is normally present; unauthenticated traffic is keyed as "anon".

import "github.com/labstack/echo/v4"

func callerID(c echo.Context) string {
    if s, ok := c.Get("user_id").(string); ok && s != "" {
        return s
    }
    return "anon"
}
