// main.go
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"divvymon/bluesky"
	"divvymon/config"
	"divvymon/database"
	"divvymon/handlers"
	"divvymon/render"
	"divvymon/scraper"
	"divvymon/services"
)

var (
	configPath    = flag.String("config", "", "Path to the YAML config file")
	once          = flag.Bool("once", false, "Run a single reconciliation cycle and exit")
	forceStation  = flag.String("force-station", "", "Post about one specific persisted station and exit")
	randomStation = flag.Bool("random-station", false, "Post about one randomly chosen persisted station and exit")
)

func main() {
	flag.Parse()

	log.Println("Starting Divvy Station Monitor...")

	// Best effort: credentials may also come straight from the environment.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found; using environment as-is.")
	}

	path := *configPath
	if path == "" {
		for _, p := range []string{"config.yaml", "config/config.yaml"} {
			if _, err := os.Stat(p); err == nil {
				path = p
				break
			}
		}
		if path == "" {
			log.Fatal("Config file not found at default paths. Use -config to point at one.")
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}
	log.Printf("Configuration loaded from %s. Feed: %s, posting enabled: %t, test mode: %t",
		path, cfg.API.StationsCSVURL, cfg.Features.PostingEnabled, cfg.Features.TestMode)

	db, err := database.InitDB(cfg.Database)
	if err != nil {
		log.Fatalf("Error initializing database: %v", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stationStore := database.NewStationStore(db)
	if err := stationStore.EnsureSchema(ctx); err != nil {
		log.Fatalf("Error ensuring stations schema: %v", err)
	}
	versionStore := database.NewFeedVersionStore(db)
	if err := versionStore.EnsureSchema(ctx); err != nil {
		log.Fatalf("Error ensuring feed_versions schema: %v", err)
	}

	// Forced mode posts regardless of posting_enabled; detect it up front so
	// the poster knows whether it needs a real session.
	forcedID := *forceStation
	if forcedID == "" {
		forcedID = cfg.Features.ForceStationID
	}
	if strings.EqualFold(forcedID, "random") {
		forcedID = ""
		*randomStation = true
	}
	forced := forcedID != "" || *randomStation

	poster, err := bluesky.NewPoster(cfg.API.BlueskyURL, cfg.API.Timeouts.Bluesky, posterTestMode(cfg, forced))
	if err != nil {
		log.Fatalf("Error initializing Bluesky poster: %v", err)
	}

	monitor, err := services.NewMonitor(ctx, cfg,
		stationStore,
		versionStore,
		scraper.NewFeedFetcher(cfg.API),
		render.NewMapRenderer(cfg.API.StaticMapURL, cfg.API.Timeouts.StaticMap),
		poster,
	)
	if err != nil {
		log.Fatalf("Error initializing monitor: %v", err)
	}

	// Forced mode: verify the notification path with one persisted station.
	if forced {
		if err := monitor.RunForced(ctx, forcedID); err != nil {
			log.Fatalf("Forced post failed: %v", err)
		}
		return
	}

	if *once {
		if _, err := monitor.RunCycle(ctx); err != nil {
			log.Fatalf("Cycle failed: %v", err)
		}
		return
	}

	// Continuous mode: optional admin HTTP surface alongside the loop.
	if cfg.Server.Port != "" {
		mux := http.NewServeMux()
		mux.HandleFunc("/api/health", handlers.HealthHandler(db))
		mux.HandleFunc("/api/admin/force-post/", handlers.ForcePostHandler(monitor))

		server := &http.Server{Addr: ":" + cfg.Server.Port, Handler: mux}
		go func() {
			log.Printf("Admin server listening on :%s", cfg.Server.Port)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("ERROR: Admin server stopped: %v", err)
			}
		}()
		defer server.Close()
	}

	monitor.Run(ctx)
}

// posterTestMode reports whether the poster can skip logging in. With posting
// disabled and no forced post requested, no post can fire during this run, so
// credentials are not required to start.
func posterTestMode(cfg *config.Config, forced bool) bool {
	return cfg.Features.TestMode || (!cfg.Features.PostingEnabled && !forced)
}
