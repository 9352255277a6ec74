package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/lcalzada-xor/wfdirect/internal/app"
	"github.com/lcalzada-xor/wfdirect/internal/config"
	"github.com/lcalzada-xor/wfdirect/internal/telemetry"
)

func main() {
	cfg := config.Load()

	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if cfg.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}

	shutdownTracer, err := telemetry.InitTracer()
	if err != nil {
		logrus.WithError(err).Error("failed to init tracer")
	} else {
		defer func() {
			if err := shutdownTracer(context.Background()); err != nil {
				logrus.WithError(err).Error("failed to shutdown tracer")
			}
		}()
	}

	application, err := app.New(cfg)
	if err != nil {
		logrus.WithError(err).Fatal("failed to initialize application")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logrus.WithField("interface", cfg.Interface).Info("wfdirect starting")

	if err := application.Run(ctx); err != nil {
		logrus.WithError(err).Error("application error")
		cancel()
		os.Exit(1)
	}
}
