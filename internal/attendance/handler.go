package attendance

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"ClassRoutineTracker/internal/core"
	"ClassRoutineTracker/internal/faculty"
	"ClassRoutineTracker/internal/schedule"
)

// AttendanceHandler serves the attendance endpoints.
type AttendanceHandler struct {
	service *AttendanceService
	policy  schedule.Policy
	now     func() time.Time
}

// NewAttendanceHandler creates a new handler for attendance.
func NewAttendanceHandler(service *AttendanceService, policy schedule.Policy) *AttendanceHandler {
	return &AttendanceHandler{service: service, policy: policy, now: time.Now}
}

func (h *AttendanceHandler) day(c echo.Context, now time.Time) (time.Time, error) {
	day, err := h.policy.ParseDate(c.QueryParam("date"), now)
	if err != nil {
		return time.Time{}, core.NewValidationError("date must be YYYY-MM-DD", core.FieldError{Field: "date", Error: err.Error()})
	}
	return day, nil
}

// Classes handles GET /api/attendance/classes?facultyId=&date=.
func (h *AttendanceHandler) Classes(c echo.Context) error {
	viewer, err := faculty.ActorFrom(c)
	if err != nil {
		return err
	}
	now := h.now()
	day, err := h.day(c, now)
	if err != nil {
		return err
	}
	ctx, cancel := core.RequestContext(c)
	defer cancel()

	classes, err := h.service.ClassesFor(ctx, viewer, c.QueryParam("facultyId"), day, now)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"date": h.policy.FormatDate(day), "classes": classes})
}

// Mark records attendance for one class occurrence.
func (h *AttendanceHandler) Mark(c echo.Context) error {
	by, err := faculty.ActorFrom(c)
	if err != nil {
		return err
	}
	var req MarkRequest
	if err := core.BindAndValidate(c, &req); err != nil {
		return err
	}
	ctx, cancel := core.RequestContext(c)
	defer cancel()

	rec, err := h.service.Mark(ctx, by, req, h.now())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{"success": true, "record": rec})
}

// DepartmentClasses handles GET /api/hod/attendance/classes?date=&department=.
func (h *AttendanceHandler) DepartmentClasses(c echo.Context) error {
	hod, err := faculty.ActorFrom(c)
	if err != nil {
		return err
	}
	now := h.now()
	day, err := h.day(c, now)
	if err != nil {
		return err
	}
	ctx, cancel := core.RequestContext(c)
	defer cancel()

	classes, err := h.service.DepartmentClasses(ctx, hod, c.QueryParam("department"), day, now)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"date": h.policy.FormatDate(day), "classes": classes})
}

// MissedClasses lists the classes missed on a date, optionally for one department.
func (h *AttendanceHandler) MissedClasses(c echo.Context) error {
	hod, err := faculty.ActorFrom(c)
	if err != nil {
		return err
	}
	now := h.now()
	day, err := h.day(c, now)
	if err != nil {
		return err
	}
	ctx, cancel := core.RequestContext(c)
	defer cancel()

	classes, err := h.service.MissedClasses(ctx, hod, c.QueryParam("department"), day, now)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"date": h.policy.FormatDate(day), "classes": classes})
}

// Override handles PUT /api/hod/attendance.
func (h *AttendanceHandler) Override(c echo.Context) error {
	hod, err := faculty.ActorFrom(c)
	if err != nil {
		return err
	}
	var req OverrideRequest
	if err := core.BindAndValidate(c, &req); err != nil {
		return err
	}
	ctx, cancel := core.RequestContext(c)
	defer cancel()

	rec, err := h.service.Override(ctx, hod, req, h.now())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"success": true, "record": rec})
}

// AbsentRecords handles GET /api/hod/absent-records?from=&to=&department=&facultyId=.
func (h *AttendanceHandler) AbsentRecords(c echo.Context) error {
	hod, err := faculty.ActorFrom(c)
	if err != nil {
		return err
	}
	ctx, cancel := core.RequestContext(c)
	defer cancel()

	records, err := h.service.AbsentRecords(ctx, hod, AbsentFilter{
		From:       c.QueryParam("from"),
		To:         c.QueryParam("to"),
		Department: c.QueryParam("department"),
		FacultyID:  c.QueryParam("facultyId"),
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"records": records})
}
