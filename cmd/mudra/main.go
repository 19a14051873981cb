package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/processor"
	"github.com/ayusman/mudra/internal/server"
	"github.com/ayusman/mudra/internal/store"
	"github.com/ayusman/mudra/internal/tray"
)

func main() {
	configPath := flag.String("config", "", "path to a JSON config file")
	headless := flag.Bool("headless", false, "run without the system tray")
	flag.Parse()

	fmt.Println("Mudra - Hand Tracking")

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	}

	// Initialize the store
	dataDir := cfg.DataDir
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			log.Fatalf("Failed to get home directory: %v", err)
		}
		dataDir = filepath.Join(homeDir, ".mudra")
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	st, err := store.New(filepath.Join(dataDir, "mudra.db"))
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer st.Close()

	// Persisted settings override the file
	if override, err := st.Settings().Get(config.SettingsKey); err == nil {
		if cfg, err = cfg.Overlay([]byte(override)); err != nil {
			log.Fatalf("Invalid stored settings: %v", err)
		}
		log.Println("Applied stored settings")
	} else if !errors.Is(err, store.ErrNotFound) {
		log.Fatalf("Failed to read stored settings: %v", err)
	}

	a, err := app.New(app.Options{Config: cfg, Store: st})
	if err != nil {
		log.Fatalf("Failed to create app: %v", err)
	}

	webDir := cfg.Server.StaticDir
	if webDir == "" {
		webDir = findWebDir(dataDir)
	}
	if webDir != "" {
		fmt.Printf("Serving static files from: %s\n", webDir)
	}

	srv := server.New(server.Config{
		StaticDir: webDir,
		Store:     st,
		App:       a,
		Events:    a,
	})
	defer srv.Close()

	go func() {
		fmt.Printf("Starting server on %s\n", cfg.Server.Addr)
		if err := srv.ListenAndServe(cfg.Server.Addr); err != nil {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	if err := a.Start(); err != nil {
		log.Fatalf("Failed to start pipeline: %v", err)
	}
	defer a.Stop()

	if *headless {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		return
	}

	runTray(a)
}

// runTray blocks until the tray menu's Quit is clicked.
func runTray(a *app.App) {
	t := tray.New()
	t.OnToggle(a.SetEnabled)
	t.OnRecalibrate(a.Recalibrate)
	t.OnClearLock(a.ClearSignatureLock)

	// Only push gesture changes to the menu.
	var last atomic.Value
	last.Store(gesture.Gesture(""))
	a.Subscribe(func(e processor.Event) {
		if last.Swap(e.Gesture) != e.Gesture {
			t.SetGesture(e.Gesture)
		}
	})

	done := make(chan struct{})
	t.OnQuit(func() { close(done) })

	go func() {
		ticker := time.NewTicker(250 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				status := a.Status()
				t.SetStatus(status.Calibration, status.SignatureLocked)
			}
		}
	}()

	t.Run()
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and <dataDir>/web.
// Returns the first existing directory or empty string if none found.
func findWebDir(dataDir string) string {
	// Check relative paths from current working directory
	relativePaths := []string{"web", "../web", "../../web"}
	for _, p := range relativePaths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			absPath, err := filepath.Abs(p)
			if err == nil {
				return absPath
			}
			return p
		}
	}

	dataWebDir := filepath.Join(dataDir, "web")
	if info, err := os.Stat(dataWebDir); err == nil && info.IsDir() {
		return dataWebDir
	}

	return ""
}
