package middleware

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"ClassRoutineTracker/internal/core"
	"ClassRoutineTracker/internal/faculty"
)

// NewHTTPErrorHandler maps service errors to status codes. Every error body
// has an "error" message; validation failures add "fields" and conflicts
// add "conflict" when the service attached details.
func NewHTTPErrorHandler(logger *zap.Logger, v *core.Validator) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		body := echo.Map{}

		var (
			httpErr  *echo.HTTPError
			valErrs  validator.ValidationErrors
			valErr   *core.ValidationError
			domainEr *core.Error
		)
		switch {
		case errors.As(err, &httpErr):
			code = httpErr.Code
			if m, ok := httpErr.Message.(string); ok {
				body["error"] = m
			} else {
				body["error"] = http.StatusText(code)
			}
		case errors.As(err, &valErrs):
			code = http.StatusBadRequest
			body["error"] = "Invalid Request"
			body["fields"] = v.Translate(valErrs)
		case errors.As(err, &valErr):
			code = http.StatusBadRequest
			body["error"] = valErr.Error()
			if len(valErr.Fields) > 0 {
				fields := make(map[string]string, len(valErr.Fields))
				for _, f := range valErr.Fields {
					fields[f.Field] = f.Error
				}
				body["fields"] = fields
			}
		case errors.As(err, &domainEr):
			switch domainEr.Kind {
			case core.KindNotFound:
				code = http.StatusNotFound
			case core.KindConflict:
				code = http.StatusConflict
			case core.KindForbidden:
				code = http.StatusForbidden
			}
			body["error"] = domainEr.Message
			if domainEr.Details != nil {
				body["conflict"] = domainEr.Details
			}
		default:
			fields := []zap.Field{
				zap.Error(err),
				zap.String("method", c.Request().Method),
				zap.String("path", c.Path()),
			}
			if claims, ok := faculty.ClaimsFrom(c); ok {
				fields = append(fields, zap.String("user_id", claims.Subject))
			}
			logger.Error("request failed", fields...)
			body["error"] = http.StatusText(code)
		}

		if c.Response().Committed {
			return
		}
		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, body)
		}
		if err != nil {
			logger.Warn("write error response", zap.Error(err))
		}
	}
}
