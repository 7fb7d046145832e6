package notification

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"ClassRoutineTracker/internal/core"
	"ClassRoutineTracker/internal/faculty"
)

// NotificationHandler serves the notification endpoints.
type NotificationHandler struct {
	service *NotificationService
}

// NewNotificationHandler creates a new handler for notifications.
func NewNotificationHandler(service *NotificationService) *NotificationHandler {
	return &NotificationHandler{service: service}
}

// List handles GET /api/notifications?unread=true&limit=20.
func (h *NotificationHandler) List(c echo.Context) error {
	viewer, err := faculty.ActorFrom(c)
	if err != nil {
		return err
	}
	unreadOnly, _ := strconv.ParseBool(c.QueryParam("unread"))
	limit, _ := strconv.ParseInt(c.QueryParam("limit"), 10, 64)

	ctx, cancel := core.RequestContext(c)
	defer cancel()
	res, err := h.service.List(ctx, viewer, unreadOnly, limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

// Announce creates an HOD announcement.
func (h *NotificationHandler) Announce(c echo.Context) error {
	hod, err := faculty.ActorFrom(c)
	if err != nil {
		return err
	}
	var req AnnounceRequest
	if err := core.BindAndValidate(c, &req); err != nil {
		return err
	}
	ctx, cancel := core.RequestContext(c)
	defer cancel()

	n, err := h.service.Announce(ctx, hod, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{"success": true, "notification": n})
}

// MarkRead marks one notification read for the caller.
func (h *NotificationHandler) MarkRead(c echo.Context) error {
	viewer, err := faculty.ActorFrom(c)
	if err != nil {
		return err
	}
	var req MarkReadRequest
	if err := core.BindAndValidate(c, &req); err != nil {
		return err
	}
	ctx, cancel := core.RequestContext(c)
	defer cancel()

	if err := h.service.MarkRead(ctx, req.NotificationID, viewer); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}

// MarkAllRead marks every visible notification read for the caller.
func (h *NotificationHandler) MarkAllRead(c echo.Context) error {
	viewer, err := faculty.ActorFrom(c)
	if err != nil {
		return err
	}
	ctx, cancel := core.RequestContext(c)
	defer cancel()

	n, err := h.service.MarkAllRead(ctx, viewer)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"success": true, "updated": n})
}
