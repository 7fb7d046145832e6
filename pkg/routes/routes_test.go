package pkg

import (
	"net/http"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"ClassRoutineTracker/internal/config"
	"ClassRoutineTracker/pkg/middleware"
)

func TestAppGraph(t *testing.T) {
	err := fx.ValidateApp(ConfigModule, DomainModule, JobsModule, EchoModules, fx.NopLogger)
	require.NoError(t, err)
}

// Every protected route must be reachable by some role, and everything
// outside /api/hod that only an HOD may call is listed here.
func TestRoutePolicyCoverage(t *testing.T) {
	enf, err := middleware.NewEnforcer(zap.NewNop())
	require.NoError(t, err)

	e := echo.New()
	RegisterRoutes(e, Handlers{}, nil, enf, &config.MongoDBClient{}, zap.NewNop())

	hodOnly := map[string]bool{
		"POST /api/routines":       true,
		"PATCH /api/handovers/:id": true,
		"POST /api/notifications":  true,
	}
	methods := map[string]bool{
		http.MethodGet: true, http.MethodPost: true, http.MethodPut: true, http.MethodPatch: true,
	}

	var protected int
	for _, r := range e.Routes() {
		// Group middleware also registers not-found catch-alls.
		if !methods[r.Method] || !strings.HasPrefix(r.Path, "/api/") || r.Path == "/api/live" {
			continue
		}
		protected++
		key := r.Method + " " + r.Path

		hodAllowed, err := enf.Enforce("hod", r.Path, r.Method)
		require.NoError(t, err)
		assert.True(t, hodAllowed, key)

		facultyAllowed, err := enf.Enforce("faculty", r.Path, r.Method)
		require.NoError(t, err)
		wantFaculty := !hodOnly[key] && !strings.HasPrefix(r.Path, "/api/hod/")
		assert.Equal(t, wantFaculty, facultyAllowed, key)
	}
	assert.Greater(t, protected, 20)

	allowed, err := enf.Enforce("faculty", "/api/unknown", http.MethodGet)
	require.NoError(t, err)
	assert.False(t, allowed)
}
