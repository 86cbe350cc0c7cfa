package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"eventengine/config"
	"eventengine/internal/cursor"
	"eventengine/internal/ingest"
	"eventengine/internal/logger"
	"eventengine/internal/output/clickhouse"
	"eventengine/internal/output/jsonl"
	"eventengine/internal/persist"
	"eventengine/internal/pipeline"
	"eventengine/internal/runner"
	"eventengine/internal/runtime"
	"eventengine/internal/runtime/sigmaprog"
	"eventengine/internal/taskqueue"
	"eventengine/internal/watermark"
	"eventengine/pkg/models"
)

// eventLog is the full event log capability the engine needs: ordered reads
// for the pipeline and appends for the ingest API.
type eventLog interface {
	Read(ctx context.Context, q cursor.Query) ([]*models.RawEvent, error)
	Append(ctx context.Context, event *models.RawEvent) error
}

func findConfigFile(configArg string) string {
	if configArg != "" {
		path := configArg
		if _, err := os.Stat(path); err == nil {
			return path
		}
		log.Printf("Warning: config file not found at %s, trying default locations", path)
	}

	if _, err := os.Stat("eventengine.yml"); err == nil {
		return "eventengine.yml"
	}

	exePath, err := os.Executable()
	if err == nil {
		exeDir := filepath.Dir(exePath)
		path := filepath.Join(exeDir, "eventengine.yml")
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return "eventengine.yml"
}

func applyDefaults(cfg *config.Config) {
	if cfg.Engine.Dataset.Name == "" {
		cfg.Engine.Dataset.Name = "default"
	}
	if cfg.Engine.EventLog.Table == "" {
		cfg.Engine.EventLog.Table = "event_log"
	}

	if cfg.Engine.Pipeline.Workers <= 0 {
		cfg.Engine.Pipeline.Workers = 8
	}
	if cfg.Engine.Pipeline.PollInterval <= 0 {
		cfg.Engine.Pipeline.PollInterval = time.Second
	}
	if cfg.Engine.Pipeline.EventTimeout <= 0 {
		cfg.Engine.Pipeline.EventTimeout = runner.DefaultTimeout
	}
	if cfg.Engine.Pipeline.CallLimit <= 0 {
		cfg.Engine.Pipeline.CallLimit = runner.DefaultCallLimit
	}

	if cfg.Engine.Output.Mode == "" {
		cfg.Engine.Output.Mode = "file"
	}
	if cfg.Engine.Output.FactTable == "" {
		cfg.Engine.Output.FactTable = "event_entity"
	}
	if cfg.Engine.Output.LabelTable == "" {
		cfg.Engine.Output.LabelTable = "event_labels"
	}
	if cfg.Engine.Output.ClickHouse.Database == "" {
		cfg.Engine.Output.ClickHouse.Database = "eventengine"
	}
	if cfg.Engine.Output.File.Dir == "" {
		cfg.Engine.Output.File.Dir = "output"
	}

	if cfg.Engine.Ingest.Addr == "" {
		cfg.Engine.Ingest.Addr = "127.0.0.1:8340"
	}

	if cfg.Engine.Logging.Level == "" {
		cfg.Engine.Logging.Level = "info"
	}
}

func main() {
	configArg := ""
	if len(os.Args) > 1 {
		configArg = os.Args[1]
	}
	configPath := findConfigFile(configArg)

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	applyDefaults(cfg)

	if err := logger.Init(cfg.Engine.Logging.Enabled, cfg.Engine.Logging.Level, cfg.Engine.Logging.File, cfg.Engine.Logging.Console); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	logger.Infof("Event engine starting")
	logger.Infof("Config loaded from: %s", configPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	files, err := runtime.LoadDir(cfg.Engine.Rules.Path)
	if err != nil {
		logger.Errorf("Failed to load rule files: %v", err)
		log.Fatalf("Failed to load rule files: %v", err)
	}
	// A compile failure is fatal: the pipeline must not run with a stale or
	// partial program.
	program, err := sigmaprog.Compiler{}.Compile(ctx, files)
	if err != nil {
		logger.Errorf("Failed to compile rule program: %v", err)
		log.Fatalf("Failed to compile rule program: %v", err)
	}
	logger.Infof("Rule program compiled: files=%d version=%s features=%d", files.Len(), program.Version(), len(program.Features()))

	var events eventLog
	if cfg.Engine.EventLog.DSN != "" {
		pglog, err := cursor.NewPGLog(ctx, cfg.Engine.EventLog.DSN, cfg.Engine.EventLog.Table)
		if err != nil {
			logger.Errorf("Failed to open event log: %v", err)
			log.Fatalf("Failed to open event log: %v", err)
		}
		defer pglog.Close()
		events = pglog
		logger.Infof("Event log: postgres (%s)", cfg.Engine.EventLog.Table)
	} else {
		events = cursor.NewMemLog()
		logger.Warnf("Event log: in-memory (no DSN configured, events are not durable)")
	}

	var marks watermark.Store
	if cfg.Engine.Watermark.Redis.Addr != "" {
		store, err := watermark.NewRedisStore(watermark.RedisConfig{
			Addr:      cfg.Engine.Watermark.Redis.Addr,
			Password:  cfg.Engine.Watermark.Redis.Password,
			DB:        cfg.Engine.Watermark.Redis.DB,
			KeyPrefix: cfg.Engine.Watermark.Redis.KeyPrefix,
		})
		if err != nil {
			logger.Errorf("Failed to create watermark store: %v", err)
			log.Fatalf("Failed to create watermark store: %v", err)
		}
		defer store.Close()
		marks = store
		logger.Infof("Watermark store: redis (%s)", cfg.Engine.Watermark.Redis.Addr)
	} else {
		marks = watermark.NewMemStore()
		logger.Warnf("Watermark store: in-memory (polling restarts from the beginning)")
	}

	var inserter persist.Inserter
	switch cfg.Engine.Output.Mode {
	case "clickhouse":
		client, err := clickhouse.NewClient(clickhouse.Config{
			URL:      cfg.Engine.Output.ClickHouse.URL,
			Database: cfg.Engine.Output.ClickHouse.Database,
			Username: cfg.Engine.Output.ClickHouse.Username,
			Password: cfg.Engine.Output.ClickHouse.Password,
			Timeout:  cfg.Engine.Output.ClickHouse.Timeout,
			Headers:  cfg.Engine.Output.ClickHouse.Headers,
		})
		if err != nil {
			logger.Errorf("Failed to create ClickHouse client: %v", err)
			log.Fatalf("Failed to create ClickHouse client: %v", err)
		}
		inserter = client
		logger.Infof("Output mode: clickhouse (%s/%s)", cfg.Engine.Output.ClickHouse.URL, cfg.Engine.Output.ClickHouse.Database)
	case "file":
		writer, err := jsonl.NewWriter(cfg.Engine.Output.File.Dir)
		if err != nil {
			logger.Errorf("Failed to create JSONL writer: %v", err)
			log.Fatalf("Failed to create JSONL writer: %v", err)
		}
		defer writer.Close()
		inserter = writer
		logger.Infof("Output mode: file (%s)", cfg.Engine.Output.File.Dir)
	default:
		log.Fatalf("Unknown output mode: %s", cfg.Engine.Output.Mode)
	}

	run := runner.New(program, runner.Config{
		Timeout:   cfg.Engine.Pipeline.EventTimeout,
		CallLimit: cfg.Engine.Pipeline.CallLimit,
	})
	persister := persist.New(inserter, persist.Config{
		FactTable:  cfg.Engine.Output.FactTable,
		LabelTable: cfg.Engine.Output.LabelTable,
		DatasetID:  cfg.Engine.Dataset.ID,
	})
	queue := taskqueue.New(func(err error) {
		logger.Errorf("Persist task failed: %v", err)
	})

	pipe := pipeline.New(
		cursor.New(events, cfg.Engine.Production),
		run,
		persister,
		marks,
		queue,
		pipeline.NewTypeCache(),
		pipeline.Config{
			Dataset:      cfg.Engine.Dataset.Name,
			Workers:      cfg.Engine.Pipeline.Workers,
			PollInterval: cfg.Engine.Pipeline.PollInterval,
		},
	)

	go func() {
		if err := pipe.Run(ctx); err != nil && err != context.Canceled {
			logger.Errorf("Pipeline error: %v", err)
		}
	}()

	var httpServer *http.Server
	if cfg.Engine.Ingest.Enabled {
		server := ingest.NewServer(events, run, pipe)
		httpServer = &http.Server{Addr: cfg.Engine.Ingest.Addr, Handler: server.Handler()}
		go func() {
			logger.Infof("Ingest API listening on %s", cfg.Engine.Ingest.Addr)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Errorf("Ingest server error: %v", err)
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Infof("Shutting down")
	cancel()

	if httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Errorf("Error shutting down ingest server: %v", err)
		}
		shutdownCancel()
	}

	// Let the pipeline drain the persist queue.
	queue.Wait()

	logger.Infof("Event engine stopped")
}
