package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/run365/dashboard-go/internal/backend"
	"github.com/run365/dashboard-go/internal/bind"
	"github.com/run365/dashboard-go/internal/dashboard"
	"github.com/run365/dashboard-go/internal/route"
	"github.com/run365/dashboard-go/internal/service"
	"github.com/run365/dashboard-go/internal/tracking"
	"github.com/run365/dashboard-go/pkg/response"
)

// respondError maps a service error onto the response envelope
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)

	var se *backend.StatusError
	switch {
	case errors.As(err, &se):
		switch se.Code {
		case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound, http.StatusBadRequest:
			response.Error(c, se.Code, se.Error())
		default:
			response.BadGateway(c, se.Error())
		}
	case errors.Is(err, backend.ErrUnavailable):
		response.Error(c, http.StatusServiceUnavailable, err.Error())

	case errors.Is(err, service.ErrInvalidFileURL), errors.Is(err, service.ErrEmptyToken),
		errors.Is(err, service.ErrInvalidMonth):
		response.BadRequest(c, err.Error())
	case errors.Is(err, service.ErrTokenExpired):
		response.Unauthorized(c, err.Error())
	case errors.Is(err, service.ErrHostNotAllowed), errors.Is(err, route.ErrBlockedAddress):
		response.Forbidden(c, err.Error())

	case errors.Is(err, route.ErrFetch):
		response.BadGateway(c, err.Error())
	case errors.Is(err, route.ErrParse), errors.Is(err, route.ErrNoRouteData):
		response.Error(c, http.StatusUnprocessableEntity, err.Error())

	case errors.Is(err, dashboard.ErrUnknownGroup), errors.Is(err, tracking.ErrUnknownRunner),
		errors.Is(err, bind.ErrUnknownProvider):
		response.NotFound(c, err.Error())
	case errors.Is(err, tracking.ErrRefreshInFlight):
		response.Conflict(c, "刷新中")

	case errors.Is(err, bind.ErrStateMismatch), errors.Is(err, bind.ErrDenied),
		errors.Is(err, bind.ErrNoCode), errors.Is(err, bind.ErrSessionExpired),
		errors.Is(err, bind.ErrExchange):
		response.BadRequest(c, err.Error())

	default:
		response.InternalError(c, err.Error())
	}
}

// parseID parses a positive integer path parameter
func parseID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// parseVisibility reads the runners=1,2,3 filter. An absent parameter shows
// every runner; a present but empty one shows none.
func parseVisibility(c *gin.Context) (tracking.Visibility, bool) {
	raw, ok := c.GetQuery("runners")
	if !ok {
		return nil, true
	}
	visible := tracking.Visibility{}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, false
		}
		visible[id] = true
	}
	return visible, true
}
