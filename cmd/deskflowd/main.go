package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/deskflow-rpa/deskflow/internal/app"
	"github.com/deskflow-rpa/deskflow/internal/capture"
	"github.com/deskflow-rpa/deskflow/internal/capture/winsource"
	"github.com/deskflow-rpa/deskflow/internal/customcommand"
	"github.com/deskflow-rpa/deskflow/internal/hotkey"
	"github.com/deskflow-rpa/deskflow/internal/platform/clock"
	"github.com/deskflow-rpa/deskflow/internal/platform/config"
	"github.com/deskflow-rpa/deskflow/internal/platform/logger"
	"github.com/deskflow-rpa/deskflow/internal/platform/metrics"
	"github.com/deskflow-rpa/deskflow/internal/platform/telemetry"
	"github.com/deskflow-rpa/deskflow/internal/replay"
	"github.com/deskflow-rpa/deskflow/internal/replay/winsink"
	"github.com/deskflow-rpa/deskflow/internal/scheduler"
	shortcutmodel "github.com/deskflow-rpa/deskflow/internal/shortcut/model"
	"github.com/deskflow-rpa/deskflow/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	log := logger.New(cfg.Logger)
	log.Info("starting deskflowd", "version", cfg.Version, "environment", cfg.Service.Environment)

	tel, err := telemetry.New(telemetry.Config{
		ServiceName:    cfg.Telemetry.ServiceName,
		TracingEnabled: cfg.Telemetry.TracingEnabled,
	})
	if err != nil {
		log.Fatal("failed to initialize telemetry", "error", err)
	}
	defer tel.Close()

	m := metrics.New()

	store, err := buildStore(cfg, log)
	if err != nil {
		log.Fatal("failed to build storage", "error", err)
	}

	clk := clock.New()
	sink := winsink.New()
	source := winsource.New()

	replayEngine := replay.NewEngine(sink, clk, log)
	captureEngine := capture.NewEngine(source, clk, log)
	captureEngine.SetFilter(capture.NewFilter(shortcutmodel.ShortcutSettings{}))

	runner := app.NewReplayRunner(store, replayEngine, log)
	sched := scheduler.New(store, runner, clk, log, time.Now().UTC())

	listener := hotkey.NewListener()
	dispatcher := hotkey.New(listener, log)

	commandRunner := customcommand.New(nil, sink, log)

	var opts []app.Option
	if fw, err := scheduler.NewFileWatchObserver(sched, log); err != nil {
		log.Warn("file watcher unavailable", "error", err)
	} else {
		opts = append(opts, app.WithFileWatch(fw))
	}

	metricsAddr := cfg.Telemetry.MetricsAddr
	if !cfg.Telemetry.MetricsEnabled {
		metricsAddr = ""
	}
	svc := app.New(store, captureEngine, replayEngine, sched, dispatcher, commandRunner,
		m, metricsAddr, log, opts...)

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() { errCh <- svc.Run(ctx) }()

	select {
	case err := <-errCh:
		if err != nil {
			log.Error("service exited", "error", err)
		}
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig)
	}

	cancel()
	log.Info("deskflowd stopped")
}

// buildStore assembles the blob store (local, optionally mirrored to S3)
// and the SQLite index behind app.Store.
func buildStore(cfg *config.Config, log logger.Logger) (*app.Store, error) {
	blobDir := filepath.Join(cfg.Storage.AppDataDir, "blobs")
	local, err := storage.NewLocalStore(blobDir)
	if err != nil {
		return nil, fmt.Errorf("opening local blob store: %w", err)
	}

	var blobs storage.BlobStore = local
	if cfg.Backup.Enabled {
		backup, err := storage.NewS3Backup(context.Background(), storage.S3BackupConfig{
			Bucket:          cfg.Backup.Bucket,
			Region:          cfg.Backup.Region,
			Prefix:          cfg.Backup.Prefix,
			Endpoint:        cfg.Backup.Endpoint,
			AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		})
		if err != nil {
			log.Warn("cloud backup disabled: failed to initialize", "error", err)
		} else {
			blobs = &storage.MirroringStore{
				Primary: local,
				Backup:  backup,
				OnError: func(hash string, err error) {
					log.Warn("cloud backup write failed", "hash", hash, "error", err)
				},
			}
		}
	}

	idxPath := filepath.Join(cfg.Storage.AppDataDir, "index.db")
	idx, err := storage.OpenIndex(idxPath)
	if err != nil {
		return nil, fmt.Errorf("opening index: %w", err)
	}

	passphrase := ""
	if cfg.Encryption.Enabled {
		passphrase = cfg.Encryption.Passphrase
	}
	return app.NewStore(idx, blobs, passphrase), nil
}
