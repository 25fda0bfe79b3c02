package handler // declare the package name; contains HTTP handlers

import (
    "net/http" // net/http provides status codes and response helpers

    "github.com/labstack/echo/v4" // echo is the web framework used for this project
)

// Health is the liveness endpoint used by load balancers and monitoring.
// It returns a plain text "ok" with HTTP 200 and touches no dependency.
func Health(c echo.Context) error {
    return c.String(http.StatusOK, "ok")
}
