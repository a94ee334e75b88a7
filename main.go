package main

import (
	"net/http"
	"os"
	"time"

	"github.com/fiffu/vacancywatch/app"
	"github.com/fiffu/vacancywatch/config"
	"github.com/fiffu/vacancywatch/lib"
	"github.com/fiffu/vacancywatch/lib/catalog"
	"github.com/fiffu/vacancywatch/lib/registry"
	"github.com/fiffu/vacancywatch/lib/store"
	"github.com/fiffu/vacancywatch/lib/tracking"
	"github.com/fiffu/vacancywatch/senders"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func NewLogger() (*zap.Logger, error) {
	switch os.Getenv("ENVIRONMENT") {
	default:
		return zap.NewDevelopment()

	case "production":
		logCfg := zap.NewProductionConfig()
		logCfg.EncoderConfig.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
			t = t.UTC()
			zapcore.ISO8601TimeEncoder(t, enc)
		}
		return logCfg.Build()
	}
}

func main() {
	fx.New(
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),

		fx.Provide(NewLogger),
		fx.Provide(config.NewConfig),

		fx.Provide(app.NewDatabase),
		fx.Provide(app.NewTransport),
		fx.Provide(store.NewStore),

		fx.Provide(catalog.NewClient),
		fx.Provide(catalog.NewCatalog),
		fx.Provide(senders.NewSenderRegistry),

		fx.Provide(registry.NewRegistry),
		fx.Provide(tracking.NewCoordinator),
		fx.Provide(lib.NewService),
		fx.Provide(app.NewAPI),

		fx.Invoke(func(*http.Server) {}),
	).Run()
}
