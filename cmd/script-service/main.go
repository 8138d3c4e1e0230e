// main package for the script-service
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/book-expert/logger"
	"github.com/nats-io/nats.go"
	_ "modernc.org/sqlite"

	"github.com/newsreel/script-service/internal/config"
	"github.com/newsreel/script-service/internal/generation"
	"github.com/newsreel/script-service/internal/objectstore"
	"github.com/newsreel/script-service/internal/quota"
	"github.com/newsreel/script-service/internal/script"
	"github.com/newsreel/script-service/internal/synth"
	"github.com/newsreel/script-service/internal/worker"
)

func setupLogger(logPath, name string) (*logger.Logger, error) {
	log, err := logger.New(logPath, name)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return log, nil
}

func openDatabase(ctx context.Context, databasePath string) (*sql.DB, error) {
	dir := filepath.Dir(databasePath)
	if dir != "." && dir != "" {
		err := os.MkdirAll(dir, 0o750)
		if err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)", databasePath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	err = db.PingContext(ctx)
	if err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	return db, nil
}

func buildService(
	ctx context.Context,
	cfg *config.Config,
	db *sql.DB,
	natsConnection *nats.Conn,
	log *logger.Logger,
) (*generation.Service, *quota.Ledger, error) {
	store, err := generation.NewStore(ctx, db)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create generation store: %w", err)
	}

	ledger, err := quota.NewLedger(ctx, db, cfg.Quota.ProjectIDs(), cfg.Quota.SafetyLimit)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create quota ledger: %w", err)
	}

	jetstreamContext, err := natsConnection.JetStream()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	objects, err := objectstore.New(jetstreamContext, cfg.NATS.ArtifactObjectStoreBucket)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create object store: %w", err)
	}

	synthTimeout := time.Duration(cfg.Synth.TimeoutSeconds) * time.Second
	synthClient := synth.NewClient(cfg.Synth.ServiceURL, synthTimeout)

	service := generation.NewService(store, objects, ledger, synthClient, generation.Params{
		WordsPerMinute: cfg.Script.WordsPerMinute,
		Cue: script.CueOptions{
			LineChars:     cfg.Script.CueLineChars,
			MaxLines:      cfg.Script.CueMaxLines,
			EmphasisWords: cfg.Script.EmphasisWords,
		},
		Caption: script.CaptionOptions{
			LineChars:    cfg.Script.CaptionLineChars,
			MaxLines:     cfg.Script.CaptionMaxLines,
			SegmentChars: cfg.Script.CaptionSegmentChars,
		},
		SceneLeadInSeconds: cfg.Script.SceneLeadInSeconds,
		SynthTimeout:       synthTimeout,
	}, log)

	return service, ledger, nil
}

func run() error {
	bootstrapLog, err := setupLogger(os.TempDir(), "script-service-bootstrap.log")
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to create bootstrap logger: %v\n", err)

		return err
	}

	cfg, err := config.Load(bootstrapLog)
	if err != nil {
		bootstrapLog.Error("Failed to load configuration: %v", err)

		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := setupLogger(cfg.Paths.BaseLogsDir, "script-service.log")
	if err != nil {
		bootstrapLog.Error("Failed to create final logger: %v", err)

		return fmt.Errorf("failed to create final logger: %w", err)
	}

	defer func() {
		closeErr := log.Close()
		if closeErr != nil {
			fmt.Fprintf(os.Stderr, "error closing logger: %v\n", closeErr)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openDatabase(ctx, cfg.Storage.DatabasePath)
	if err != nil {
		log.Error("Failed to open database: %v", err)

		return err
	}

	defer func() {
		closeErr := db.Close()
		if closeErr != nil {
			log.Error("Failed to close database: %v", closeErr)
		}
	}()

	natsConnection, err := nats.Connect(cfg.NATS.URL)
	if err != nil {
		log.Error("Failed to connect to NATS at %s: %v", cfg.NATS.URL, err)

		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	defer natsConnection.Close()

	service, ledger, err := buildService(ctx, cfg, db, natsConnection, log)
	if err != nil {
		log.Error("Failed to build service: %v", err)

		return err
	}

	natsWorker, err := worker.NewNatsWorker(natsConnection, worker.Subjects{
		ScriptRequested: cfg.NATS.ScriptRequestedSubject,
		AudioRequested:  cfg.NATS.AudioRequestedSubject,
		UsageRequested:  cfg.NATS.UsageRequestedSubject,
	}, service, ledger, log)
	if err != nil {
		log.Error("Failed to create worker: %v", err)

		return fmt.Errorf("failed to create worker: %w", err)
	}

	log.System("Script service initialized. Listening for jobs on subject: %s", cfg.NATS.ScriptRequestedSubject)

	err = natsWorker.Run(ctx)
	if err != nil {
		return fmt.Errorf("worker exited with error: %w", err)
	}

	return nil
}

func main() {
	err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Service exited with error: %v\n", err)
		os.Exit(1)
	}
}
