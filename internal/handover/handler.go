package handover

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"ClassRoutineTracker/internal/core"
	"ClassRoutineTracker/internal/faculty"
)

// HandoverHandler serves the handover endpoints.
type HandoverHandler struct {
	service *HandoverService
}

// NewHandoverHandler creates a new handler for handovers.
func NewHandoverHandler(service *HandoverService) *HandoverHandler {
	return &HandoverHandler{service: service}
}

// List handles GET /api/handovers?facultyId=&substituteId=&status=&date=.
func (h *HandoverHandler) List(c echo.Context) error {
	viewer, err := faculty.ActorFrom(c)
	if err != nil {
		return err
	}
	f := Filter{
		FacultyID:    c.QueryParam("facultyId"),
		SubstituteID: c.QueryParam("substituteId"),
		Date:         c.QueryParam("date"),
	}
	if raw := c.QueryParam("status"); raw != "" {
		st, err := ParseStatus(raw)
		if err != nil {
			return core.NewValidationError(err.Error(), core.FieldError{Field: "status", Error: err.Error()})
		}
		f.Status = st
	}
	ctx, cancel := core.RequestContext(c)
	defer cancel()

	list, err := h.service.List(ctx, viewer, f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"handovers": list})
}

// Submit stores a new handover request.
func (h *HandoverHandler) Submit(c echo.Context) error {
	by, err := faculty.ActorFrom(c)
	if err != nil {
		return err
	}
	var req SubmitRequest
	if err := core.BindAndValidate(c, &req); err != nil {
		return err
	}
	ctx, cancel := core.RequestContext(c)
	defer cancel()

	res, err := h.service.Submit(ctx, by, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, res)
}

// Decide handles PATCH /api/handovers/:id.
func (h *HandoverHandler) Decide(c echo.Context) error {
	hod, err := faculty.ActorFrom(c)
	if err != nil {
		return err
	}
	var req DecideRequest
	if err := core.BindAndValidate(c, &req); err != nil {
		return err
	}
	ctx, cancel := core.RequestContext(c)
	defer cancel()

	updated, err := h.service.Decide(ctx, hod, c.Param("id"), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"success": true, "handover": updated})
}

// Availability handles GET /api/handovers/availability?substituteId=&date=&timeSlot=.
func (h *HandoverHandler) Availability(c echo.Context) error {
	ctx, cancel := core.RequestContext(c)
	defer cancel()

	avail, err := h.service.CheckSubstituteAvailability(ctx,
		c.QueryParam("substituteId"), c.QueryParam("date"), c.QueryParam("timeSlot"), "")
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, avail)
}

// Candidates handles GET /api/handovers/candidates?date=&timeSlot=&subject=.
func (h *HandoverHandler) Candidates(c echo.Context) error {
	viewer, err := faculty.ActorFrom(c)
	if err != nil {
		return err
	}
	ctx, cancel := core.RequestContext(c)
	defer cancel()

	list, err := h.service.Candidates(ctx, viewer, c.QueryParam("date"), c.QueryParam("timeSlot"), c.QueryParam("subject"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"candidates": list})
}
