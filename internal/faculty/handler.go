package faculty

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"ClassRoutineTracker/internal/core"
)

// FacultyHandler serves the account endpoints.
type FacultyHandler struct {
	service *FacultyService
}

// NewFacultyHandler creates a new handler for faculty accounts.
func NewFacultyHandler(service *FacultyService) *FacultyHandler {
	return &FacultyHandler{service: service}
}

// Register creates a faculty account.
func (h *FacultyHandler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := core.BindAndValidate(c, &req); err != nil {
		return err
	}
	ctx, cancel := core.RequestContext(c)
	defer cancel()

	// Public registration carries no actor; HOD accounts go through CreateFaculty.
	f, err := h.service.Register(ctx, req, nil)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{"message": "Faculty registered successfully", "faculty": f})
}

// CreateFaculty is the HOD-only variant of Register that may assign the hod role.
func (h *FacultyHandler) CreateFaculty(c echo.Context) error {
	actor, err := ActorFrom(c)
	if err != nil {
		return err
	}
	var req RegisterRequest
	if err := core.BindAndValidate(c, &req); err != nil {
		return err
	}
	ctx, cancel := core.RequestContext(c)
	defer cancel()

	f, err := h.service.Register(ctx, req, &actor)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{"message": "Faculty created successfully", "faculty": f})
}

// Login exchanges credentials for a session token.
func (h *FacultyHandler) Login(c echo.Context) error {
	var cred Credential
	if err := core.BindAndValidate(c, &cred); err != nil {
		return err
	}
	ctx, cancel := core.RequestContext(c)
	defer cancel()

	token, f, err := h.service.Authenticate(ctx, cred)
	if err != nil {
		if _, ok := err.(*core.ValidationError); ok {
			return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
		}
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"token": token, "faculty": f})
}

// ForgotPassword mails a reset link when the account exists.
func (h *FacultyHandler) ForgotPassword(c echo.Context) error {
	var req ForgotPasswordRequest
	if err := core.BindAndValidate(c, &req); err != nil {
		return err
	}
	ctx, cancel := core.RequestContext(c)
	defer cancel()

	if err := h.service.ForgotPassword(ctx, req.Email); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Password reset Email sent"})
}

// ResetPassword sets a new password using a reset token.
func (h *FacultyHandler) ResetPassword(c echo.Context) error {
	var req ResetPasswordRequest
	if err := core.BindAndValidate(c, &req); err != nil {
		return err
	}
	ctx, cancel := core.RequestContext(c)
	defer cancel()

	if err := h.service.ResetPassword(ctx, req.Token, req.NewPassword); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Password successfully reset"})
}

// Profile returns the caller's account.
func (h *FacultyHandler) Profile(c echo.Context) error {
	actor, err := ActorFrom(c)
	if err != nil {
		return err
	}
	ctx, cancel := core.RequestContext(c)
	defer cancel()

	f, err := h.service.Profile(ctx, actor.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, f)
}

// List returns faculty members, optionally for one department.
func (h *FacultyHandler) List(c echo.Context) error {
	ctx, cancel := core.RequestContext(c)
	defer cancel()

	list, err := h.service.List(ctx, c.QueryParam("department"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"faculty": list})
}
