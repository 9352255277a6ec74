// Package app wires configuration, storage, the driver and the state
// machine into a runnable daemon.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lcalzada-xor/wfdirect/internal/adapters/netctl"
	"github.com/lcalzada-xor/wfdirect/internal/adapters/storage"
	"github.com/lcalzada-xor/wfdirect/internal/adapters/supplicant"
	"github.com/lcalzada-xor/wfdirect/internal/adapters/web"
	"github.com/lcalzada-xor/wfdirect/internal/config"
	"github.com/lcalzada-xor/wfdirect/internal/core/ports"
	"github.com/lcalzada-xor/wfdirect/internal/core/services/p2p"
	"github.com/lcalzada-xor/wfdirect/internal/mock"
	"github.com/lcalzada-xor/wfdirect/internal/telemetry"
)

// Application holds the core components of the daemon and orchestrates
// their lifecycle.
type Application struct {
	Config    *config.Config
	Machine   *p2p.Machine
	WebServer *web.Server
	Store     *storage.SQLiteAdapter

	driver   ports.Driver
	scenario *mock.Scenario
	closers  []func() error
}

// New creates a new Application instance and bootstraps its components.
func New(cfg *config.Config) (*Application, error) {
	app := &Application{Config: cfg}
	if err := app.bootstrap(); err != nil {
		return nil, fmt.Errorf("application bootstrap failed: %w", err)
	}
	return app, nil
}

func (app *Application) bootstrap() error {
	telemetry.InitMetrics()

	store, err := app.initStorage()
	if err != nil {
		return err
	}
	app.Store = store

	deps, err := app.initDriver()
	if err != nil {
		return err
	}
	deps.Journal = store
	deps.Settings = store

	opts := p2p.DefaultOptions()
	opts.InterfaceName = app.Config.Interface
	opts.DeviceName = app.Config.DeviceName
	opts.GroupCreateTimeout = app.Config.GroupCreateTimeout
	opts.IdleShutdownTimeout = app.Config.IdleShutdownTimeout
	opts.GroupIdleTimeout = app.Config.GroupIdleTimeout
	opts.WaitForInvitation = app.Config.WaitForInvitation
	// The persisted policy wins over flags once the user has set it.
	if wait, set, err := store.InvitationFallbackPolicy(); err == nil && set {
		opts.WaitForInvitation = wait
	}

	app.Machine = p2p.New(opts, deps)
	app.WebServer = web.NewServer(app.Config.Addr, app.Machine, store)
	return nil
}

func (app *Application) initStorage() (*storage.SQLiteAdapter, error) {
	if err := os.MkdirAll(filepath.Dir(app.Config.DBPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create DB directory: %w", err)
	}
	store, err := storage.NewSQLiteAdapter(app.Config.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to init storage: %w", err)
	}
	return store, nil
}

// initDriver picks the mock or real supplicant stack and returns the
// machine dependencies built around it.
func (app *Application) initDriver() (p2p.Deps, error) {
	if app.Config.MockMode {
		logrus.Info("mock mode active: virtualizing the P2P environment")
		drv := mock.NewDriver("02:00:5e:00:53:01")
		app.driver = drv
		app.scenario = mock.NewScenario(drv, 8, time.Now().UnixNano())
		return p2p.Deps{
			Driver:   drv,
			Events:   drv,
			Arbiter:  arbiter{},
			IP:       &mock.IPProvisioner{Address: "192.168.49.20", Gateway: "192.168.49.1"},
			Routes:   &mock.Routes{},
			Tether:   &mock.Tether{},
			UI:       &mock.Dialog{Accept: true},
			Conflict: keepWifiPolicy{},
			Notifier: logNotifier{},
		}, nil
	}

	drv, err := supplicant.New()
	if err != nil {
		return p2p.Deps{}, err
	}
	app.driver = drv
	app.closers = append(app.closers, drv.Close)
	return p2p.Deps{
		Driver:   drv,
		Events:   drv,
		Arbiter:  arbiter{},
		IP:       netctl.NewDHCPClient(),
		Routes:   netctl.NewRoutes(),
		Tether:   netctl.NewTether(),
		UI:       headlessApprover{},
		Conflict: keepWifiPolicy{},
		Notifier: logNotifier{},
	}, nil
}

// Run starts the application components and blocks until the context is
// cancelled or a component fails.
func (app *Application) Run(ctx context.Context) error {
	errChan := make(chan error, 2)

	go func() {
		if err := app.Machine.Run(ctx); err != nil {
			errChan <- fmt.Errorf("state machine error: %w", err)
		}
	}()

	go func() {
		if err := app.WebServer.Run(ctx); err != nil {
			errChan <- fmt.Errorf("web server error: %w", err)
		}
	}()

	if app.scenario != nil {
		go app.scenario.Run(ctx, 2*time.Second)
	}

	logrus.Info("wfdirect ready")

	select {
	case <-ctx.Done():
		logrus.Info("termination signal received")
	case err := <-errChan:
		return err
	}

	return app.cleanup()
}

func (app *Application) cleanup() error {
	logrus.Info("cleaning up resources")
	for _, close := range app.closers {
		if err := close(); err != nil {
			logrus.WithError(err).Warn("cleanup error")
		}
	}
	return nil
}
