package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ipnet/site-go/internal/config"
	"ipnet/site-go/internal/db"
	"ipnet/site-go/internal/httpapi"
	"ipnet/site-go/internal/live"
	"ipnet/site-go/internal/mapview"
	"ipnet/site-go/internal/metrics"
	"ipnet/site-go/internal/refresh"
	"ipnet/site-go/internal/store"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		// Logger isn't up yet; fall back to stderr.
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log := httpapi.NewLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	var pool *db.Pool
	if cfg.DatabaseURL != "" {
		pool, err = db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open database pool")
		}
		defer pool.Close()
	}

	// Data source precedence: Postgres when a database is configured, the
	// external mesh API when one is, JSON fallback files otherwise.
	var (
		loader    store.Loader
		apiClient *store.APIClient
	)
	if cfg.API.URL != "" {
		apiClient = store.NewAPIClient(log, cfg.API.URL, cfg.API.Key, cfg.API.CacheTTL, cfg.API.CacheFile)
	}
	switch {
	case pool != nil:
		loader = store.NewPGStore(pool, cfg.AssetsDir)
	case apiClient != nil:
		loader = store.NewAPIStore(apiClient, cfg.AssetsDir)
	default:
		loader = store.NewJSONStore(cfg.AssetsDir)
	}
	log.Info().Str("source", loader.Name()).Msg("dataset source selected")

	hub := live.NewHub(log)
	go hub.Run(ctx)

	engine := mapview.New(log, engineConfig(cfg))

	listener := live.NewListener(log, engine, m, func(v live.View) {
		hub.Broadcast("view_update", v)
	})
	go listener.Run(ctx)
	defer listener.Close()

	// Initial load happens before the server accepts traffic so the first
	// page render sees data; a failed load degrades to empty collections.
	listener.Replace(store.SafeLoad(ctx, loader, log, m))

	if pool != nil {
		go live.NewPGListener(log, pool, listener).Run(ctx)
	}

	if cfg.MQTT.BrokerHost != "" {
		mq := live.NewMQTTSource(log, cfg.MQTT, listener, hub)
		if pool != nil {
			mq.PersistStatus(store.NewQueries(pool))
		}
		if err := mq.Connect(); err != nil {
			log.Error().Err(err).Msg("mqtt connect failed, live status updates disabled")
		} else {
			defer mq.Close()
		}
	}

	worker := refresh.New(log, loader, listener, m, refresh.Options{Interval: cfg.API.CacheTTL})
	go worker.Run(ctx)

	h := httpapi.NewHandler(log, httpapi.Options{
		Pool:      pool,
		Listener:  listener,
		Hub:       hub,
		APIClient: apiClient,
		Metrics:   m,
		MapConfig: engineConfig(cfg),
		Domain:    cfg.SiteDomain,
		AssetsDir: cfg.AssetsDir,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           h.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	log.Info().Msg("server stopped")
}

func engineConfig(cfg config.Config) mapview.Config {
	return mapview.Config{
		TileURL:           cfg.Map.TileURL,
		DefaultCenter:     mapview.LatLng{Lat: cfg.Map.DefaultLat, Lng: cfg.Map.DefaultLng},
		DefaultZoom:       cfg.Map.DefaultZoom,
		PinnedZoom:        cfg.Map.PinnedZoom,
		SingleNodeZoom:    cfg.Map.SingleNodeZoom,
		MaxFitZoom:        cfg.Map.MaxFitZoom,
		FitPadding:        cfg.Map.FitPadding,
		ClusteringEnabled: cfg.Map.ClusteringEnabled,
		PinLabelsEnabled:  cfg.Map.PinLabelsEnabled,
	}
}
