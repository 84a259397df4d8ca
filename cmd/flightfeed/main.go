// flightfeed serves live flight positions for a region over HTTP and
// WebSocket, backed by the OpenSky Network states API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/skyroute/flightfeed/internal/api"
	"github.com/skyroute/flightfeed/internal/auth"
	"github.com/skyroute/flightfeed/internal/cache"
	"github.com/skyroute/flightfeed/internal/db"
	"github.com/skyroute/flightfeed/internal/feed"
	"github.com/skyroute/flightfeed/internal/metrics"
	"github.com/skyroute/flightfeed/pkg/config"
	"github.com/skyroute/flightfeed/pkg/logger"
	"github.com/skyroute/flightfeed/pkg/opensky"
)

var (
	configPath   = flag.String("config", "configs/config.yaml", "Path to configuration file (JSON or YAML)")
	writeConfig  = flag.String("write-default-config", "", "Write the default configuration to this path and exit")
	hashPassword = flag.String("hash-password", "", "Print the bcrypt hash of this password for admin_password_hash and exit")
	importPath   = flag.String("import-directory", "", "Load airlines, aircraft and airports from this YAML/JSON file into the database and exit")
)

func main() {
	flag.Parse()

	if *writeConfig != "" {
		if err := config.DefaultConfig().Save(*writeConfig); err != nil {
			log.Fatalf("Failed to write config: %v", err)
		}
		fmt.Printf("Default configuration written to %s\n", *writeConfig)
		return
	}

	if *hashPassword != "" {
		hash, err := auth.NewService(auth.Config{}).HashPassword(*hashPassword)
		if err != nil {
			log.Fatalf("Failed to hash password: %v", err)
		}
		fmt.Println(hash)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *importPath != "" && !cfg.Database.Enabled {
		log.Fatalf("-import-directory needs database.enabled")
	}

	logr := logger.New(cfg.Logging.Level)
	logr.Info("Starting flightfeed (log level %s)", cfg.Logging.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Upstream access
	var tokens opensky.TokenSource
	if cfg.OpenSky.HasCredentials() {
		tokens = opensky.NewTokenManager(opensky.TokenConfig{
			TokenURL:     cfg.OpenSky.TokenURL,
			ClientID:     cfg.OpenSky.ClientID,
			ClientSecret: cfg.OpenSky.ClientSecret,
			Timeout:      cfg.OpenSky.RequestTimeout(),
		}, logr)
		logr.Info("OpenSky client credentials configured (client %s)", cfg.OpenSky.ClientID)
	} else {
		logr.Warn("No OpenSky credentials configured, using anonymous access")
	}
	client := opensky.NewClient(cfg.OpenSky.BaseURL, cfg.OpenSky.RequestTimeout(), tokens, logr)

	// Optional enrichment directory
	var (
		directory *db.Directory
		dirStatus api.DirectoryStatus
	)
	if cfg.Database.Enabled {
		database, err := db.ReconnectWithRetry(ctx, cfg.Database, 5, time.Second, logr)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer database.Close()

		if err := database.InitSchema(ctx); err != nil {
			log.Fatalf("Failed to initialize schema: %v", err)
		}

		directory = db.NewDirectory(database, logr)
		if *importPath != "" {
			seed, err := db.ReadDirectoryFile(*importPath)
			if err != nil {
				log.Fatalf("Failed to read directory file: %v", err)
			}
			counts, err := directory.Import(ctx, seed)
			if err != nil {
				log.Fatalf("Directory import failed after %+v: %v", counts, err)
			}
			fmt.Printf("Imported %d airlines, %d aircraft, %d airports\n", counts.Airlines, counts.Aircraft, counts.Airports)
			return
		}
		if _, err := directory.LoadAirlines(ctx); err != nil {
			logr.Warn("Airline directory unavailable: %v", err)
		}
		dirStatus = directory
	}

	feedCfg := feed.Config{
		Fetcher: client,
		Tokens:  client.Tokens(),
		Cache:   cache.NewMemoryCache(cfg.Cache.MaxEntries),
		Policy: cache.FreshnessPolicy{
			AuthenticatedTTL: cfg.Cache.AuthenticatedTTL(),
			AnonymousTTL:     cfg.Cache.AnonymousTTL(),
		},
		KeyPrecision: cfg.Cache.KeyPrecision,
		Metrics:      metrics.NewMetrics(),
		Logger:       logr,
	}
	// A nil *db.Directory must not become a non-nil interface.
	if directory != nil {
		feedCfg.Directory = directory
	}
	svc := feed.NewService(feedCfg)

	var warmer *feed.Warmer
	if cfg.Warmup.Enabled {
		var regions []feed.Region
		for _, r := range cfg.Warmup.EnabledRegions() {
			regions = append(regions, feed.Region{Name: r.Name, Lat: r.Latitude, Lng: r.Longitude, Radius: r.Radius})
		}
		warmer = feed.NewWarmer(svc, regions, cfg.Warmup.Interval(), logr)
		go warmer.Run(ctx)
	}

	authSvc := auth.NewService(auth.Config{
		JWTSecret:         cfg.Auth.JWTSecret,
		TokenDuration:     cfg.Auth.TokenDuration(),
		AdminUsername:     cfg.Auth.AdminUsername,
		AdminPasswordHash: cfg.Auth.AdminPasswordHash,
	})
	if !authSvc.Enabled() {
		logr.Info("Operator login disabled (set FLIGHTFEED_JWT_SECRET and FLIGHTFEED_ADMIN_PASSWORD_HASH to enable)")
	}

	srv := api.NewServer(api.Options{
		Feed:           svc,
		Auth:           authSvc,
		Directory:      dirStatus,
		Warmer:         warmer,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		StreamInterval: cfg.Server.StreamInterval(),
		Logger:         logr,
	})

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      srv,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logr.Info("Listening on http://%s", cfg.Server.Addr())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Error("Server failed: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	logr.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logr.Error("Server forced to shutdown: %v", err)
		os.Exit(1)
	}

	logr.Info("Server stopped")
}
