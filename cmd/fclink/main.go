// cmd/fclink/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"fc-link/internal/config"
	"fc-link/internal/monitor"
	"fc-link/internal/utils"
	"fc-link/pkg/discovery"
	"fc-link/pkg/frame"
	"fc-link/pkg/link"
	"fc-link/pkg/protocol"
)

// msgType is this application's view of a catalog entry.
type msgType struct {
	val  byte
	size int
}

func (m msgType) Val() byte        { return m.val }
func (m msgType) PayloadSize() int { return m.size }

// msgPing is the payload-less keepalive query; the firmware answers
// with its current state, which is what keeps last-activity fresh.
var msgPing = msgType{val: 0x30, size: 0}

// Application represents the main application
type Application struct {
	config  *config.Config
	logger  *zap.Logger
	catalog *protocol.Catalog

	runner   *linkRunner
	linkLog  *utils.LinkLogger
	eventBus *monitor.EventBus
	server   *http.Server

	stop chan struct{}
	done chan struct{}
}

func main() {
	app, err := NewApplication()
	if err != nil {
		fmt.Printf("Failed to initialize application: %v\n", err)
		os.Exit(1)
	}

	if err := app.Start(); err != nil {
		app.logger.Fatal("Failed to start application", zap.Error(err))
	}
}

// NewApplication creates a new application instance
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := utils.NewLogger(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	serviceLogger := utils.NewServiceLogger(logger, "fc-link")
	serviceLogger.LogServiceStart(cfg.App.Version, cfg.Link)

	app := &Application{
		config:  cfg,
		logger:  logger,
		catalog: protocol.DefaultCatalog(),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}

	app.initializeLink()

	if cfg.Monitor.Enabled {
		if err := app.initializeMonitor(); err != nil {
			return nil, fmt.Errorf("failed to initialize monitor: %w", err)
		}
	}

	return app, nil
}

// initializeLink wires discovery and the link state
func (app *Application) initializeLink() {
	manager := discovery.NewManager(app.config.DiscoveryConfig(), app.logger)
	state := link.New(manager, app.logger)

	app.eventBus = monitor.NewEventBus(app.logger)

	app.runner = &linkRunner{
		state:     state,
		threshold: app.config.Link.DisconnectedTimeout,
	}

	app.logger.Info("Link initialized",
		zap.String("identity_key", app.config.Link.IdentityKey),
		zap.Int("primary_baud", app.config.Link.PrimaryBaud),
	)
}

// initializeMonitor sets up the HTTP monitor server
func (app *Application) initializeMonitor() error {
	wsHandler := monitor.NewWebSocketHandler(app.eventBus, app.logger)
	statusHandler := monitor.NewStatusHandler(app.runner, wsHandler, app.logger)

	routerManager := monitor.NewRouter(app.config, app.logger, statusHandler, wsHandler)
	router := routerManager.SetupRouter()

	app.server = &http.Server{
		Addr:         app.config.GetMonitorAddr(),
		Handler:      router,
		ReadTimeout:  app.config.Monitor.ReadTimeout,
		WriteTimeout: app.config.Monitor.WriteTimeout,
		IdleTimeout:  app.config.Monitor.IdleTimeout,
	}

	app.logger.Info("Monitor server initialized",
		zap.String("address", app.config.GetMonitorAddr()),
	)

	return nil
}

// Start runs the application until a shutdown signal arrives
func (app *Application) Start() error {
	if app.server != nil {
		go func() {
			app.logger.Info("Starting monitor server",
				zap.String("address", app.server.Addr),
			)

			if err := app.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				app.logger.Fatal("Failed to start monitor server", zap.Error(err))
			}
		}()
	}

	go app.eventBus.Start()
	go app.pollLoop()

	app.waitForShutdown()
	return nil
}

// pollLoop is the single owner of the link state. Every tick it gets a
// channel (reconnecting as needed), sends the keepalive, and drains
// any inbound bytes; staleness drops the channel for rediscovery.
func (app *Application) pollLoop() {
	defer close(app.done)

	ticker := time.NewTicker(app.config.Link.PollInterval)
	defer ticker.Stop()

	app.logger.Info("Poll loop started",
		zap.Duration("interval", app.config.Link.PollInterval),
	)

	var lastSession string
	readBuf := make([]byte, 256)

	for {
		select {
		case <-app.stop:
			return
		case <-ticker.C:
		}

		app.runner.mu.Lock()
		lastSession = app.pollOnce(lastSession, readBuf)
		app.runner.mu.Unlock()
	}
}

// pollOnce performs one poll tick; runner.mu is held by the caller.
func (app *Application) pollOnce(lastSession string, readBuf []byte) string {
	state := app.runner.state

	if state.Stale(app.config.Link.DisconnectedTimeout) {
		app.logger.Warn("Link stale, dropping channel",
			zap.String("session_id", state.SessionID()),
		)
		app.publishDisconnected(state.SessionID(), "stale")
		if app.linkLog != nil {
			app.linkLog.LogConnection("drop", true, nil)
			app.linkLog = nil
		}
		state.Reset()
	}

	ch, err := state.Channel()
	if err != nil {
		if !errors.Is(err, link.ErrNotConnected) {
			utils.LogError(app.logger, "Discovery transport fault", err)
			app.eventBus.Publish(monitor.Event{
				Type: monitor.EventTransportFault,
				Data: map[string]interface{}{"error": err.Error()},
			})
		}
		if lastSession != "" {
			app.publishDisconnected(lastSession, "lost")
		}
		if app.linkLog != nil {
			app.linkLog.LogConnection("lost", false, err)
			app.linkLog = nil
		}
		return ""
	}

	if state.SessionID() != lastSession {
		app.linkLog = utils.NewLinkLogger(app.logger, state.Endpoint().Name, state.SessionID())
		app.linkLog.LogConnection("open", true, nil)

		app.eventBus.Publish(monitor.Event{
			Type:      monitor.EventConnected,
			SessionID: state.SessionID(),
			Data: map[string]interface{}{
				"port": state.Endpoint().Name,
				"kind": string(state.Kind()),
			},
		})
	}

	err = frame.SendCmd(state, app.catalog, msgPing)
	app.linkLog.LogFrame(msgPing.Val(), protocol.FrameSize(msgPing.PayloadSize()), err)
	if err != nil {
		app.publishDisconnected(state.SessionID(), "write failure")
		app.linkLog.LogConnection("drop", false, err)
		app.linkLog = nil
		state.Reset()
		return ""
	}

	app.eventBus.Publish(monitor.Event{
		Type:      monitor.EventFrameSent,
		SessionID: state.SessionID(),
		Data: map[string]interface{}{
			"msg_type": fmt.Sprintf("0x%02X", msgPing.Val()),
		},
	})

	// The read is bounded by the channel's read timeout. Any inbound
	// bytes count as activity; parsing them is out of scope here.
	if n, err := ch.Read(readBuf); err == nil && n > 0 {
		state.MarkActivity()
	}

	return state.SessionID()
}

// publishDisconnected publishes a disconnected event
func (app *Application) publishDisconnected(sessionID, reason string) {
	app.eventBus.Publish(monitor.Event{
		Type:      monitor.EventDisconnected,
		SessionID: sessionID,
		Data:      map[string]interface{}{"reason": reason},
	})
}

// waitForShutdown waits for a signal and performs graceful shutdown
func (app *Application) waitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	app.logger.Info("Received shutdown signal", zap.String("signal", sig.String()))

	app.shutdown()
}

// shutdown stops the poll loop, the monitor server, and the link
func (app *Application) shutdown() {
	serviceLogger := utils.NewServiceLogger(app.logger, "fc-link")
	serviceLogger.LogServiceStop("shutdown signal received")

	close(app.stop)
	<-app.done
	app.eventBus.Stop()

	if app.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := app.server.Shutdown(ctx); err != nil {
			app.logger.Error("Monitor server shutdown error", zap.Error(err))
		} else {
			app.logger.Info("Monitor server stopped")
		}
	}

	app.runner.mu.Lock()
	app.runner.state.Reset()
	app.runner.mu.Unlock()

	if err := utils.CloseLogger(app.logger); err != nil {
		fmt.Printf("Logger close error: %v\n", err)
	}
}

// linkRunner guards the single-owner link state so the monitor can
// take snapshots while the poll loop mutates it.
type linkRunner struct {
	mu        sync.Mutex
	state     *link.State
	threshold time.Duration
}

// Snapshot implements monitor.StatusProvider.
func (r *linkRunner) Snapshot() monitor.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	state := r.state
	snap := monitor.Snapshot{
		Status:       string(state.Status()),
		Label:        state.Status().Label(),
		Color:        state.Status().IndicatorColor(),
		Kind:         string(state.Kind()),
		SessionID:    state.SessionID(),
		LastSend:     state.LastSend(),
		LastActivity: state.LastActivity(),
		Stale:        state.Stale(r.threshold),
	}

	if ep := state.Endpoint(); ep != nil {
		snap.Port = ep.Name
	}

	return snap
}
