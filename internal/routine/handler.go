package routine

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"ClassRoutineTracker/internal/core"
	"ClassRoutineTracker/internal/faculty"
	"ClassRoutineTracker/internal/schedule"
)

// RoutineHandler serves the routine endpoints.
type RoutineHandler struct {
	service *RoutineService
	policy  schedule.Policy
}

// NewRoutineHandler creates a new handler for routines.
func NewRoutineHandler(service *RoutineService, policy schedule.Policy) *RoutineHandler {
	return &RoutineHandler{service: service, policy: policy}
}

// Get handles GET /api/routines?facultyId=&routineId=&includeHistory=.
// routineId selects a specific version; otherwise the latest one is returned.
func (h *RoutineHandler) Get(c echo.Context) error {
	viewer, err := faculty.ActorFrom(c)
	if err != nil {
		return err
	}
	ctx, cancel := core.RequestContext(c)
	defer cancel()

	if id := c.QueryParam("routineId"); id != "" {
		doc, err := h.service.GetByID(ctx, viewer, id)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, map[string]interface{}{"routine": doc})
	}

	facultyID := c.QueryParam("facultyId")
	if facultyID == "" {
		facultyID = viewer.ID
	}
	doc, err := h.service.GetLatest(ctx, viewer, facultyID)
	if err != nil {
		return err
	}
	resp := map[string]interface{}{"routine": doc}
	if includeHistory, _ := strconv.ParseBool(c.QueryParam("includeHistory")); includeHistory {
		history, err := h.service.GetHistory(ctx, viewer, facultyID)
		if err != nil {
			return err
		}
		resp["routineHistory"] = history
	}
	return c.JSON(http.StatusOK, resp)
}

// Publish creates a new routine version for a faculty.
func (h *RoutineHandler) Publish(c echo.Context) error {
	by, err := faculty.ActorFrom(c)
	if err != nil {
		return err
	}
	var req PublishRequest
	if err := core.BindAndValidate(c, &req); err != nil {
		return err
	}
	ctx, cancel := core.RequestContext(c)
	defer cancel()

	res, err := h.service.PublishOrUpdate(ctx, by, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"success":   true,
		"routineId": res.RoutineID,
		"version":   res.Version,
	})
}

// Today handles GET /api/routines/today?facultyId=&date=.
func (h *RoutineHandler) Today(c echo.Context) error {
	viewer, err := faculty.ActorFrom(c)
	if err != nil {
		return err
	}
	day, err := h.policy.ParseDate(c.QueryParam("date"), time.Now())
	if err != nil {
		return core.NewValidationError("date must be YYYY-MM-DD", core.FieldError{Field: "date", Error: err.Error()})
	}
	facultyID := c.QueryParam("facultyId")
	if facultyID == "" {
		facultyID = viewer.ID
	}
	ctx, cancel := core.RequestContext(c)
	defer cancel()

	view, err := h.service.TodayEntries(ctx, viewer, facultyID, day)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, view)
}

// ListLatest returns every faculty's current routine.
func (h *RoutineHandler) ListLatest(c echo.Context) error {
	ctx, cancel := core.RequestContext(c)
	defer cancel()

	list, err := h.service.ListLatest(ctx)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"routines": list})
}

// Repair realigns routine flags with the heads on demand.
func (h *RoutineHandler) Repair(c echo.Context) error {
	ctx, cancel := core.RequestContext(c)
	defer cancel()

	res, err := h.service.Repair(ctx)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}
