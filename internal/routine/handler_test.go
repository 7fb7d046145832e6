package routine

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ClassRoutineTracker/internal/core"
	"ClassRoutineTracker/internal/faculty"
	"ClassRoutineTracker/internal/schedule"
)

func serve(t *testing.T, h *RoutineHandler, as core.Actor, method, target, body string, fn func(*RoutineHandler, echo.Context) error) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	e.Validator = core.NewValidator()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	faculty.SetClaims(c, &faculty.Claims{
		Role:             as.Role,
		RegisteredClaims: jwt.RegisteredClaims{Subject: as.ID},
	})
	require.NoError(t, fn(h, c))
	return rec
}

type getResponse struct {
	Routine        Routine       `json:"routine"`
	RoutineHistory []HistoryItem `json:"routineHistory"`
}

func TestRoutineHandler_RoundTrip(t *testing.T) {
	f := newFixture()
	h := NewRoutineHandler(f.svc, schedule.DefaultPolicy())

	rec := serve(t, h, hod, http.MethodPost, "/api/routines", `{
		"facultyId": "F1",
		"routineType": "weekly",
		"entries": [
			{"day": "Monday", "timeSlot": "09:00-09:50", "subject": "Anatomy", "roomNumber": "101"},
			{"day": "Tuesday", "timeSlot": "10:00-10:50", "subject": "Physiology", "roomNumber": "102"}
		]
	}`, (*RoutineHandler).Publish)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created struct {
		Success   bool   `json:"success"`
		RoutineID string `json:"routineId"`
		Version   int    `json:"version"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.True(t, created.Success)
	assert.Equal(t, 1, created.Version)

	rec = serve(t, h, f1, http.MethodGet, "/api/routines?facultyId=F1", "", (*RoutineHandler).Get)
	require.Equal(t, http.StatusOK, rec.Code)
	var got getResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got.Routine.Entries, 2)
	for _, e := range got.Routine.Entries {
		assert.NotEmpty(t, e.ID)
		assert.Equal(t, schedule.StatusPending, e.Status)
	}
	assert.Nil(t, got.RoutineHistory)

	rec = serve(t, h, hod, http.MethodPost, "/api/routines", `{
		"facultyId": "F1",
		"isUpdate": true,
		"updateRoutineId": "`+created.RoutineID+`",
		"entries": [
			{"day": "Monday", "timeSlot": "09:00-09:50", "subject": "Anatomy"},
			{"day": "Tuesday", "timeSlot": "10:00-10:50", "subject": "Physiology"},
			{"day": "Friday", "timeSlot": "14:00", "subject": "Microbiology", "status": "Pending"}
		]
	}`, (*RoutineHandler).Publish)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = serve(t, h, f1, http.MethodGet, "/api/routines?facultyId=F1&includeHistory=true", "", (*RoutineHandler).Get)
	require.Equal(t, http.StatusOK, rec.Code)
	got = getResponse{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 2, got.Routine.Version)
	assert.Len(t, got.Routine.Entries, 3)
	require.NotNil(t, got.Routine.PreviousVersionID)
	assert.Equal(t, created.RoutineID, got.Routine.PreviousVersionID.Hex())
	require.Len(t, got.RoutineHistory, 1)
	assert.Equal(t, 1, got.RoutineHistory[0].Version)
	assert.Equal(t, 2, got.RoutineHistory[0].EntryCount)
}

func TestRoutineHandler_ValidationErrors(t *testing.T) {
	f := newFixture()
	h := NewRoutineHandler(f.svc, schedule.DefaultPolicy())

	tests := []struct {
		name string
		body string
	}{
		{name: "missing entries", body: `{"facultyId": "F1"}`},
		{name: "empty entries", body: `{"facultyId": "F1", "entries": []}`},
		{name: "missing faculty", body: `{"entries": [{"day": "Mon", "timeSlot": "9-10", "subject": "A"}]}`},
		{name: "bad routine type", body: `{"facultyId": "F1", "routineType": "daily", "entries": [{"day": "Mon", "timeSlot": "9-10", "subject": "A"}]}`},
		{name: "entry without subject", body: `{"facultyId": "F1", "entries": [{"day": "Mon", "timeSlot": "9-10"}]}`},
		{name: "malformed json", body: `{"facultyId": `},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			e.Validator = core.NewValidator()
			req := httptest.NewRequest(http.MethodPost, "/api/routines", strings.NewReader(tt.body))
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			c := e.NewContext(req, httptest.NewRecorder())
			faculty.SetClaims(c, &faculty.Claims{Role: core.RoleHOD, RegisteredClaims: jwt.RegisteredClaims{Subject: "hod-1"}})

			assert.Error(t, h.Publish(c))
			assert.Empty(t, f.store.docs)
		})
	}
}

func TestRoutineHandler_NotFound(t *testing.T) {
	f := newFixture()
	h := NewRoutineHandler(f.svc, schedule.DefaultPolicy())

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/routines?facultyId=F1", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	faculty.SetClaims(c, &faculty.Claims{Role: core.RoleFaculty, RegisteredClaims: jwt.RegisteredClaims{Subject: "F1"}})

	err := h.Get(c)
	assert.True(t, core.IsNotFound(err))
}
