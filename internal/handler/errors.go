package handler

import (
    "net/http"

    "github.com/labstack/echo/v4"
    "google.golang.org/grpc/codes"
    "google.golang.org/grpc/status"
)

// Error kinds written in the "code" field of every error body.
const (
    KindUnauthenticated    = "unauthenticated"
    KindInvalidArgument    = "invalid-argument"
    KindNotFound           = "not-found"
    KindFailedPrecondition = "failed-precondition"
    KindPermissionDenied   = "permission-denied"
    KindInternal           = "internal"
)

// errorKind maps a status code to its wire kind and HTTP status. Codes
// the service never produces are reported as internal.
func errorKind(code codes.Code) (string, int) {
    switch code {
    case codes.Unauthenticated:
        return KindUnauthenticated, http.StatusUnauthorized
    case codes.InvalidArgument:
        return KindInvalidArgument, http.StatusBadRequest
    case codes.NotFound:
        return KindNotFound, http.StatusNotFound
    case codes.FailedPrecondition:
        return KindFailedPrecondition, http.StatusConflict
    case codes.PermissionDenied:
        return KindPermissionDenied, http.StatusForbidden
    default:
        return KindInternal, http.StatusInternalServerError
    }
}

// writeError renders err as {"error": message, "code": kind}. Errors that
// are not status errors never leak their text.
func writeError(c echo.Context, err error) error {
    st, ok := status.FromError(err)
    if !ok {
        return c.JSON(http.StatusInternalServerError, echo.Map{
            "error": "An unexpected error occurred. Please try again later.",
            "code":  KindInternal,
        })
    }
    kind, httpStatus := errorKind(st.Code())
    msg := st.Message()
    if kind == KindInternal {
        msg = "An unexpected error occurred. Please try again later."
    }
    return c.JSON(httpStatus, echo.Map{"error": msg, "code": kind})
}

func badRequest(c echo.Context, msg string) error {
    return c.JSON(http.StatusBadRequest, echo.Map{"error": msg, "code": KindInvalidArgument})
}
