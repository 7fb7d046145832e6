package main

import (
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"ClassRoutineTracker/internal/bootstrap"
	pkg "ClassRoutineTracker/pkg/routes"
)

func main() {
	bootstrap.Loadenv()
	app := fx.New(
		fx.WithLogger(func(logger *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: logger}
		}),
		pkg.ConfigModule,
		pkg.DomainModule,
		pkg.JobsModule,
		pkg.EchoModules,
	)

	app.Run()
}
