package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/ayusman/safewarner/internal/bus"
	"github.com/ayusman/safewarner/internal/capture"
	"github.com/ayusman/safewarner/internal/config"
	"github.com/ayusman/safewarner/internal/detector"
	"github.com/ayusman/safewarner/internal/engine"
	"github.com/ayusman/safewarner/internal/notify"
	"github.com/ayusman/safewarner/internal/server"
	"github.com/ayusman/safewarner/internal/store"
	"github.com/ayusman/safewarner/internal/tray"
)

// notifierTimeout bounds one external notifier invocation.
const notifierTimeout = 5 * time.Second

func main() {
	fmt.Println("Safe Warner - Screen Health Monitor")

	homeDir, err := os.UserHomeDir()
	if err != nil {
		log.Fatalf("Failed to get home directory: %v", err)
	}

	dataDir := filepath.Join(homeDir, ".safewarner")
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	configPath := flag.String("config", filepath.Join(dataDir, "config.yaml"), "config file path")
	flag.Parse()

	// An unreadable or invalid config is fatal; the engine must not start
	// with half-applied settings.
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = filepath.Join(dataDir, "safewarner.db")
	}
	st, err := store.New(dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer st.Close()

	mode := loadMode(st)

	eventBus := bus.New()
	defer eventBus.Close()

	det, err := detector.NewMediaPipeDetector(detector.DefaultConfig())
	if err != nil {
		log.Fatalf("Failed to initialize detector: %v", err)
	}

	newSource := func() capture.ObservationSource {
		camera := capture.NewCamera(cfg.CameraIndex, cfg.FPS)
		return capture.NewSource(camera, det, cfg.FPS, cfg.MaxFrameFailures)
	}

	eng := engine.New(cfg, eventBus, newSource, mode)

	// Session history records from engine events.
	logger := store.NewSessionLogger(st, eventBus, string(mode))
	if err := logger.Start(); err != nil {
		log.Fatalf("Failed to start session logger: %v", err)
	}
	defer logger.Stop()

	// Notifications go through the external notifier when configured,
	// otherwise to the log.
	var dispatcher notify.Dispatcher
	if cfg.NotifierCommand != "" {
		dispatcher = notify.NewExecNotifier(cfg.NotifierCommand, notifierTimeout)
	} else {
		dispatcher = notify.DispatcherFunc(func(n notify.Notification) error {
			log.Printf("notification: %s: %s", n.Title, n.Message)
			return nil
		})
	}
	router := notify.NewRouter(eventBus, dispatcher,
		time.Duration(cfg.NotifyCooldownS)*time.Second)
	if err := router.Start(); err != nil {
		log.Fatalf("Failed to start notification router: %v", err)
	}
	defer router.Stop()

	eng.Start()
	defer eng.Stop()

	// Hot-reload reminder periods and the re-check policy on config save.
	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	go func() {
		if err := config.Watch(watchCtx, *configPath, eng.ApplyConfig); err != nil {
			log.Printf("Config watch disabled: %v", err)
		}
	}()

	srv := server.New(server.Config{
		Engine: eng,
		Store:  st,
		Bus:    eventBus,
	})
	go func() {
		log.Printf("Status server listening on %s", cfg.ListenAddr)
		if err := srv.ListenAndServe(cfg.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Status server failed: %v", err)
		}
	}()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Status server shutdown: %v", err)
		}
	}()

	runTray(eng, st, eventBus, mode)
}

// loadMode restores the persisted operating mode, defaulting to auto.
func loadMode(st *store.Store) engine.Mode {
	value, err := st.Settings().Get(store.SettingMode)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Printf("Failed to load mode setting: %v", err)
		}
		return engine.ModeAuto
	}

	mode, err := engine.ParseMode(value)
	if err != nil {
		log.Printf("Ignoring persisted mode: %v", err)
		return engine.ModeAuto
	}
	return mode
}

// runTray wires the system tray to the engine and blocks until quit.
func runTray(eng *engine.Supervisor, st *store.Store, eventBus *bus.Bus, mode engine.Mode) {
	t := tray.New(mode == engine.ModeAuto)

	t.OnModeToggle(func(auto bool) {
		mode := engine.ModeManual
		if auto {
			mode = engine.ModeAuto
		}
		eng.SetMode(mode)
		if err := st.Settings().Set(store.SettingMode, string(mode)); err != nil {
			log.Printf("Failed to persist mode: %v", err)
		}
	})

	t.OnPauseToggle(func(paused bool) {
		if paused {
			eng.PauseReminders()
		} else {
			eng.ResumeReminders()
		}
	})

	t.OnQuit(func() {
		log.Println("Shutting down")
	})

	// Surface the most recent alert in the tray menu.
	trayFeed := func(ev bus.Event) {
		switch ev.Kind {
		case bus.KindReminderFired:
			if p, ok := ev.Payload.(bus.ReminderPayload); ok {
				t.SetLastAlert(p.Message)
			}
		case bus.KindPostureAlert:
			t.SetLastAlert("Posture: straighten up")
		case bus.KindBlinkRateLow:
			t.SetLastAlert("Low blink rate")
		case bus.KindMonitoringError:
			if p, ok := ev.Payload.(bus.ErrorPayload); ok {
				t.SetLastAlert("Camera: " + p.Condition)
			}
		}
	}
	if err := eventBus.Subscribe("tray", trayFeed); err != nil {
		log.Printf("Failed to subscribe tray: %v", err)
	}

	t.Run()
}
