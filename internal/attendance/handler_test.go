package attendance

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ClassRoutineTracker/internal/core"
	"ClassRoutineTracker/internal/faculty"
	"ClassRoutineTracker/internal/schedule"
)

func call(h *AttendanceHandler, as core.Actor, method, target, body string, fn func(*AttendanceHandler, echo.Context) error) (*httptest.ResponseRecorder, error) {
	e := echo.New()
	e.Validator = core.NewValidator()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	faculty.SetClaims(c, &faculty.Claims{
		Name:             as.Name,
		Role:             as.Role,
		Department:       as.Department,
		RegisteredClaims: jwt.RegisteredClaims{Subject: as.ID},
	})
	return rec, fn(h, c)
}

func TestAttendanceHandler_MarkThenClasses(t *testing.T) {
	f := newFixture()
	h := NewAttendanceHandler(f.svc, schedule.DefaultPolicy())
	h.now = func() time.Time { return at(9, 15) }
	asha := f.actor(f.asha)

	rec, err := call(h, asha, http.MethodPost, "/api/attendance",
		`{"classId": "a-nine", "date": "2025-03-10", "absentStudents": ["R-4"], "presentCount": 41}`,
		(*AttendanceHandler).Mark)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, err = call(h, asha, http.MethodGet, "/api/attendance/classes?date=2025-03-10", "", (*AttendanceHandler).Classes)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Date    string        `json:"date"`
		Classes []ClassStatus `json:"classes"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "2025-03-10", body.Date)
	got := statuses(body.Classes)
	assert.Equal(t, schedule.StatusTaken, got["a-nine"])
	assert.Equal(t, schedule.StatusMissed, got["a-early"])
	assert.Equal(t, schedule.StatusPending, got["a-eleven"])
}

func TestAttendanceHandler_MarkValidation(t *testing.T) {
	f := newFixture()
	h := NewAttendanceHandler(f.svc, schedule.DefaultPolicy())
	h.now = func() time.Time { return at(9, 15) }

	tests := []struct {
		name  string
		body  string
		field string
	}{
		{name: "missing class", body: `{"date": "2025-03-10"}`, field: "classId"},
		{name: "bad date", body: `{"classId": "a-nine", "date": "10/03/2025"}`, field: "date"},
		{name: "negative count", body: `{"classId": "a-nine", "date": "2025-03-10", "presentCount": -1}`, field: "presentCount"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := call(h, f.actor(f.asha), http.MethodPost, "/api/attendance", tt.body, (*AttendanceHandler).Mark)
			var verrs validator.ValidationErrors
			require.True(t, errors.As(err, &verrs), "got %v", err)
			assert.Equal(t, tt.field, verrs[0].Field())
		})
	}
	assert.Empty(t, f.store.records)

	_, err := call(h, f.actor(f.asha), http.MethodGet, "/api/attendance/classes?date=yesterday", "", (*AttendanceHandler).Classes)
	var verr *core.ValidationError
	assert.True(t, errors.As(err, &verr))
}
