package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"fitroom/internal/asset"
	"fitroom/internal/auth"
	"fitroom/internal/catalog"
	"fitroom/internal/config"
	"fitroom/internal/logging"
	"fitroom/internal/looks"
	"fitroom/internal/mesh"
	"fitroom/internal/metrics"
	"fitroom/internal/preview"
	"fitroom/internal/room"
	"fitroom/internal/server"
	"fitroom/internal/texture"
	"fitroom/internal/uploads"
)

func main() {
	configFile := flag.String("config", "", "Path to config file (.yaml or .json)")
	baseDir := flag.String("base", "", "Base directory (default: auto-detect)")
	assetDir := flag.String("assets", "", "Asset directory (default: <base>/assets)")
	listen := flag.String("listen", "", "Listen address (default: :8080)")
	logLevel := flag.String("log-level", "", "debug, info, warn or error")
	flag.Parse()

	var cfg config.Config
	if *configFile != "" {
		var err error
		cfg, err = config.Load(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
	}
	cfg.Resolve(config.Flags{
		BaseDir:  *baseDir,
		AssetDir: *assetDir,
		Listen:   *listen,
		LogLevel: *logLevel,
	})

	logger := logging.New(cfg.Log)
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	secret := cfg.JWTSecret
	if secret == "" {
		b := make([]byte, 32)
		_, _ = rand.Read(b)
		secret = hex.EncodeToString(b)
		logger.Warn("no jwt_secret configured; sessions will not survive a restart")
	}

	mc := metrics.NewCollector("fitroom", logger)
	up, err := uploads.NewStore(filepath.Join(cfg.DataDir, "uploads"), cfg.UploadMaxBytes, logger)
	if err != nil {
		return err
	}

	tracker := mesh.NewTracker()
	loader := asset.NewLoader(asset.Config{
		AssetDir:               cfg.AssetDir,
		Timeout:                cfg.FetchTimeout.Duration,
		MaxBytes:               cfg.MaxAssetBytes,
		LegacyTiltAssets:       cfg.LegacyTiltAssets,
		RequireRiggedWearables: cfg.RequireRiggedWearables,
	}, up, tracker, texture.NewCache(), logger)

	rooms := room.NewManager(room.ManagerConfig{
		Room: room.Options{
			Loader:   loader,
			Tracker:  tracker,
			SpinGain: cfg.SpinGain,
			Metrics:  mc,
			Logger:   logger,
		},
		IdleTTL:  cfg.RoomIdleTTL.Duration,
		MaxRooms: cfg.MaxRooms,
	})
	defer rooms.CloseAll()

	cat := catalog.New(cfg.CatalogFile, cfg.AssetDir, logger, catalog.WithExclude(looks.Dir+"/"))
	if err := cat.Reload(); err != nil {
		logger.Warn("catalog load failed", zap.Error(err))
	}

	store, err := looks.Open(filepath.Join(cfg.DataDir, "looks.json"), cfg.AssetDir, logger)
	if err != nil {
		return err
	}
	users, err := auth.NewFileStore(filepath.Join(cfg.DataDir, "users.json"))
	if err != nil {
		return err
	}
	accounts, err := auth.NewService(users, auth.Config{
		Secret:   []byte(secret),
		TokenTTL: cfg.TokenTTL.Duration,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	opts := preview.DefaultOptions()
	opts.Width, opts.Height = cfg.RenderSize, cfg.RenderSize
	opts.Supersample = cfg.Supersample

	srv := server.New(server.Config{
		AssetDir:      cfg.AssetDir,
		PreviewDir:    cfg.OutputDir,
		Preview:       opts,
		AuthRateLimit: cfg.AuthRateLimit,
		AuthRateBurst: cfg.AuthRateBurst,
		CORSOrigins:   cfg.CORSOrigins,
	}, server.Deps{
		Rooms:   rooms,
		Catalog: cat,
		Looks:   store,
		Uploads: up,
		Auth:    accounts,
		Metrics: mc,
	}, logger)

	httpSrv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           srv.Handler(ctx),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		frameLoop(gctx, rooms, cfg.FrameInterval())
		return nil
	})
	g.Go(func() error {
		sweepLoop(gctx, rooms, time.Minute)
		return nil
	})
	g.Go(func() error {
		if err := cat.Watch(gctx); err != nil {
			logger.Warn("catalog watcher stopped", zap.Error(err))
		}
		return nil
	})
	g.Go(func() error {
		logger.Info("listening",
			zap.String("addr", cfg.Listen),
			zap.String("assets", cfg.AssetDir),
			zap.Int("catalog_items", len(cat.Items())))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// frameLoop ticks every room with the wall time elapsed since the
// previous frame.
func frameLoop(ctx context.Context, rooms *room.Manager, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			rooms.TickAll(now.Sub(last).Seconds())
			last = now
		}
	}
}

func sweepLoop(ctx context.Context, rooms *room.Manager, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rooms.Sweep()
		}
	}
}
