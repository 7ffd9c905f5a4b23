// Command camfeed adapts a single media source into a live fMP4 feed and
// serves it, along with a stats endpoint and a static player page, over
// HTTP, or over HTTPS when TLS_CERT_FILE and TLS_KEY_FILE are set.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"camfeed/internal/api"
	"camfeed/internal/broadcaster"
	"camfeed/internal/config"
	"camfeed/internal/ffmpegargs"
	"camfeed/internal/observability/logging"
	"camfeed/internal/observability/metrics"
	"camfeed/internal/server"
	"camfeed/internal/serverutil"
	"camfeed/internal/source"
	"camfeed/internal/stream"
)

func main() {
	logger := logging.Init(logging.Config{Level: os.Getenv("LOG_LEVEL")})

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	kind := source.Detect(cfg.VideoFile, cfg.GrowingFile)
	recorder := metrics.Default()

	manager := stream.NewManager(cfg.MaxClients, stream.DefaultBufferCapacity)
	manager.SetRecorder(recorder)

	bc := broadcaster.New(broadcaster.Config{
		TranscoderPath: cfg.TranscoderPath,
		Source: ffmpegargs.Options{
			Path:         cfg.VideoFile,
			Kind:         kind,
			Quality:      cfg.Quality(),
			FPS:          cfg.VideoFPS,
			AudioBitrate: cfg.AudioBitrate,
		},
	}, manager, logging.WithComponent(logger, "broadcaster"))
	bc.SetRecorder(recorder)
	bc.Start()

	streamHandler := stream.NewHandler(manager, logging.WithComponent(logger, "stream"))
	statsHandler := api.NewStatsHandler(bc, manager, cfg, kind, recorder)
	staticHandler := api.NewStaticHandler(cfg.PublicDir)

	srv, err := server.New(server.Config{
		Addr:          cfg.Addr(),
		Logger:        logger,
		Metrics:       recorder,
		StreamHandler: streamHandler,
		StatsHandler:  statsHandler,
		StaticHandler: staticHandler,
	})
	if err != nil {
		logger.Error("failed to initialize server", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("camfeed listening", "addr", cfg.Addr(), "source_kind", kind.String())
	runErr := serverutil.Run(ctx, serverutil.Config{
		Server: srv.HTTPServer(),
		TLS: serverutil.TLSConfig{
			CertFile: cfg.TLSCertFile,
			KeyFile:  cfg.TLSKeyFile,
		},
	})

	bc.Stop()

	if runErr != nil {
		logger.Error("server error", "error", runErr)
		os.Exit(1)
	}
	logger.Info("camfeed stopped")
}
