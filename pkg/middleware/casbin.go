package middleware

import (
	"net/http"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/casbin/casbin/v2/util"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"ClassRoutineTracker/internal/core"
	"ClassRoutineTracker/internal/faculty"
)

const rbacModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act, eft

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && keyMatch(r.obj, p.obj) && (r.act == p.act || p.act == "*")
`

// Objects are echo route paths, so ":id" is matched literally.
var rbacPolicy = [][]string{
	{core.RoleFaculty, "/api/profile", http.MethodGet, "allow"},
	{core.RoleFaculty, "/api/faculty", http.MethodGet, "allow"},
	{core.RoleFaculty, "/api/routines", http.MethodGet, "allow"},
	{core.RoleFaculty, "/api/routines/today", http.MethodGet, "allow"},
	{core.RoleFaculty, "/api/attendance", http.MethodPost, "allow"},
	{core.RoleFaculty, "/api/attendance/classes", http.MethodGet, "allow"},
	{core.RoleFaculty, "/api/handovers", http.MethodGet, "allow"},
	{core.RoleFaculty, "/api/handovers", http.MethodPost, "allow"},
	{core.RoleFaculty, "/api/handovers/availability", http.MethodGet, "allow"},
	{core.RoleFaculty, "/api/handovers/candidates", http.MethodGet, "allow"},
	{core.RoleFaculty, "/api/notifications", http.MethodGet, "allow"},
	{core.RoleFaculty, "/api/notifications", http.MethodPut, "allow"},
	{core.RoleFaculty, "/api/notifications/mark-all-read", http.MethodPut, "allow"},

	{core.RoleHOD, "/api/hod/*", "*", "allow"},
	{core.RoleHOD, "/api/routines", http.MethodPost, "allow"},
	{core.RoleHOD, "/api/handovers/:id", http.MethodPatch, "allow"},
	{core.RoleHOD, "/api/notifications", http.MethodPost, "allow"},
}

// An HOD can do everything a faculty member can.
var rbacRoles = [][]string{
	{core.RoleHOD, core.RoleFaculty},
}

// NewEnforcer builds the RBAC enforcer from the model and policy defined in code.
func NewEnforcer(logger *zap.Logger) (*casbin.Enforcer, error) {
	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, errors.Wrap(err, "load rbac model")
	}
	enf, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, errors.Wrap(err, "create casbin enforcer")
	}
	enf.AddFunction("keyMatch", util.KeyMatchFunc)
	if _, err := enf.AddPolicies(rbacPolicy); err != nil {
		return nil, errors.Wrap(err, "load rbac policy")
	}
	if _, err := enf.AddGroupingPolicies(rbacRoles); err != nil {
		return nil, errors.Wrap(err, "load rbac roles")
	}
	logger.Debug("casbin enforcer created", zap.Int("policies", len(rbacPolicy)))
	return enf, nil
}

// RBAC enforces the route policy for the role carried by the JWT claims.
func RBAC(enf *casbin.Enforcer, logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, ok := faculty.ClaimsFrom(c)
			if !ok {
				return c.JSON(http.StatusForbidden, map[string]string{"error": "Unauthorized: missing user claims"})
			}
			role := claims.Role
			obj := c.Path()
			act := c.Request().Method
			allowed, err := enf.Enforce(role, obj, act)
			if err != nil {
				logger.Error("casbin enforce failed", zap.Error(err))
				return c.JSON(http.StatusInternalServerError, map[string]string{"error": "RBAC system error"})
			}
			if !allowed {
				logger.Debug("casbin denied", zap.String("role", role), zap.String("obj", obj), zap.String("act", act))
				return c.JSON(http.StatusForbidden, map[string]string{"error": "Forbidden: insufficient permissions"})
			}
			return next(c)
		}
	}
}
