package pkg

import (
	"context"
	"net/http"

	"github.com/casbin/casbin/v2"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"ClassRoutineTracker/internal/attendance"
	"ClassRoutineTracker/internal/config"
	"ClassRoutineTracker/internal/core"
	"ClassRoutineTracker/internal/faculty"
	"ClassRoutineTracker/internal/handover"
	"ClassRoutineTracker/internal/jobs"
	"ClassRoutineTracker/internal/live"
	"ClassRoutineTracker/internal/notification"
	"ClassRoutineTracker/internal/routine"
	"ClassRoutineTracker/pkg/middleware"
)

var ConfigModule = fx.Module("config",
	fx.Provide(config.NewViper),
	fx.Provide(config.LoadSettings),
	fx.Provide(config.NewPolicy),
	fx.Provide(config.NewLogger),
	fx.Provide(config.NewMongoDBClient),
	fx.Provide(config.NewMailer),
)

// DomainModule binds each repository and service to the narrow interfaces
// its consumers declare.
var DomainModule = fx.Module("domain",
	fx.Provide(
		fx.Annotate(faculty.NewFacultyRepository,
			fx.As(new(faculty.Store)),
			fx.As(new(notification.Directory)),
			fx.As(new(handover.Directory)),
			fx.As(new(attendance.Directory)),
		),
		fx.Annotate(faculty.NewTokenIssuer, fx.As(fx.Self()), fx.As(new(live.Authenticator))),
		faculty.NewFacultyService,
		faculty.NewFacultyHandler,

		fx.Annotate(newHub,
			fx.As(fx.Self()),
			fx.As(new(notification.Publisher)),
			fx.As(new(routine.Publisher)),
			fx.As(new(handover.Publisher)),
			fx.As(new(attendance.Publisher)),
		),
		newLiveHandler,

		fx.Annotate(notification.NewNotificationRepository, fx.As(new(notification.Store))),
		fx.Annotate(notification.NewNotificationService,
			fx.As(fx.Self()),
			fx.As(new(routine.Notifier)),
			fx.As(new(handover.Notifier)),
			fx.As(new(attendance.Notifier)),
			fx.As(new(jobs.Dispatcher)),
		),
		notification.NewNotificationHandler,

		fx.Annotate(routine.NewRoutineRepository, fx.As(new(routine.Store))),
		fx.Annotate(routine.NewRoutineService,
			fx.As(fx.Self()),
			fx.As(new(handover.RoutineSource)),
			fx.As(new(attendance.RoutineSource)),
			fx.As(new(jobs.Repairer)),
		),
		routine.NewRoutineHandler,

		fx.Annotate(handover.NewHandoverRepository, fx.As(new(handover.Store))),
		fx.Annotate(handover.NewHandoverService, fx.As(fx.Self()), fx.As(new(attendance.HandoverSource))),
		handover.NewHandoverHandler,

		fx.Annotate(attendance.NewAttendanceRepository,
			fx.As(new(attendance.Store)),
			fx.As(new(routine.AttendanceOverlay)),
		),
		attendance.NewAttendanceService,
		attendance.NewAttendanceHandler,
	),
)

var JobsModule = fx.Module("jobs",
	fx.Provide(jobs.NewScheduler),
	fx.Invoke(jobs.Register),
)

var EchoModules = fx.Module("echo",
	fx.Provide(core.NewValidator),
	fx.Provide(middleware.NewEnforcer),
	fx.Provide(NewEchoServer),
	fx.Invoke(RegisterRoutes),
)

func newHub(lc fx.Lifecycle, s *config.Settings, logger *zap.Logger) *live.Hub {
	hub := live.NewHub(logger, s.LiveSendBuffer)
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			hub.Close()
			return nil
		},
	})
	return hub
}

func newLiveHandler(hub *live.Hub, auth live.Authenticator, s *config.Settings) *live.LiveHandler {
	return live.NewLiveHandler(hub, auth, s.CORSOrigins)
}

// NewEchoServer creates the HTTP server and starts it with the app.
func NewEchoServer(lc fx.Lifecycle, s *config.Settings, logger *zap.Logger, v *core.Validator) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = v
	e.HTTPErrorHandler = middleware.NewHTTPErrorHandler(logger, v)

	e.Pre(echomw.RemoveTrailingSlash())
	e.Use(echomw.RequestID())
	e.Use(echomw.Recover())
	e.Use(middleware.Metrics())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: s.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	addr := ":" + s.Port
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("server listening", zap.String("addr", addr))
			go func() {
				if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Fatal("failed to start the server", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("shutting down the server")
			return e.Shutdown(ctx)
		},
	})
	return e
}

// Handlers groups the handlers routes are registered for.
type Handlers struct {
	fx.In

	Faculty      *faculty.FacultyHandler
	Routine      *routine.RoutineHandler
	Attendance   *attendance.AttendanceHandler
	Handover     *handover.HandoverHandler
	Notification *notification.NotificationHandler
	Live         *live.LiveHandler
}

// RegisterRoutes wires every endpoint with its middleware.
func RegisterRoutes(e *echo.Echo, h Handlers, issuer *faculty.TokenIssuer, enf *casbin.Enforcer, db *config.MongoDBClient, logger *zap.Logger) {
	e.POST("/register", h.Faculty.Register)
	e.POST("/login", h.Faculty.Login)
	e.POST("/forgot-password", h.Faculty.ForgotPassword)
	e.POST("/reset-password", h.Faculty.ResetPassword)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/healthz", func(c echo.Context) error {
		ctx, cancel := core.RequestContext(c)
		defer cancel()
		if err := db.Client.Ping(ctx, readpref.Primary()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	// Browsers cannot set headers on a websocket handshake; the handler
	// authenticates the ?token= query parameter itself.
	e.GET("/api/live", h.Live.Connect)

	protected := e.Group("/api")
	protected.Use(middleware.JWT(issuer))
	protected.Use(middleware.RBAC(enf, logger))

	protected.GET("/profile", h.Faculty.Profile)
	protected.GET("/faculty", h.Faculty.List)

	protected.GET("/routines", h.Routine.Get)
	protected.POST("/routines", h.Routine.Publish)
	protected.GET("/routines/today", h.Routine.Today)

	protected.GET("/attendance/classes", h.Attendance.Classes)
	protected.POST("/attendance", h.Attendance.Mark)

	protected.GET("/handovers", h.Handover.List)
	protected.POST("/handovers", h.Handover.Submit)
	protected.PATCH("/handovers/:id", h.Handover.Decide)
	protected.GET("/handovers/availability", h.Handover.Availability)
	protected.GET("/handovers/candidates", h.Handover.Candidates)

	protected.GET("/notifications", h.Notification.List)
	protected.POST("/notifications", h.Notification.Announce)
	protected.PUT("/notifications", h.Notification.MarkRead)
	protected.PUT("/notifications/mark-all-read", h.Notification.MarkAllRead)

	hod := protected.Group("/hod")
	hod.POST("/faculty", h.Faculty.CreateFaculty)
	hod.GET("/routines", h.Routine.ListLatest)
	hod.POST("/routines/repair", h.Routine.Repair)
	hod.GET("/attendance/classes", h.Attendance.DepartmentClasses)
	hod.PUT("/attendance", h.Attendance.Override)
	hod.GET("/missed-classes", h.Attendance.MissedClasses)
	hod.GET("/absent-records", h.Attendance.AbsentRecords)
}
