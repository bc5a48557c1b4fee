package handler

import (
    "net/http"

    "github.com/labstack/echo/v4"
)

// Health reports liveness for load balancers.  It touches no store, so a
// database or Redis outage does not take the process out of rotation.
func Health(c echo.Context) error {
    return c.String(http.StatusOK, "ok")
}
