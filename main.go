package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zaneriley/Home-Hunter/config"
	"github.com/zaneriley/Home-Hunter/httputil"
	"github.com/zaneriley/Home-Hunter/hunter"
	"github.com/zaneriley/Home-Hunter/logging"
	"github.com/zaneriley/Home-Hunter/notify"
	"github.com/zaneriley/Home-Hunter/scheduler"
	"github.com/zaneriley/Home-Hunter/storage"
)

var (
	huntNow    = flag.Bool("hunt", false, "Run one hunt cycle and exit")
	showStatus = flag.Bool("status", false, "Print the seen count and last run, then exit")
)

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logFile, err := logging.Setup(cfg.LogFile)
	if err != nil {
		log.Printf("Warning: could not set up file logging: %v", err)
	} else {
		defer logFile.Close()
	}

	log.Println("Starting home-hunter...")

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	log.Printf("Loaded %d site configs", len(cfg.Sites))
	site, err := cfg.ActiveSite()
	if err != nil {
		log.Fatalf("Failed to resolve site: %v", err)
	}
	log.Printf("Hunting %s: %s", site.Name, site.TargetURL)

	ctx := context.Background()

	sqliteStore, err := storage.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		log.Fatalf("Failed to open SQLite: %v", err)
	}
	defer sqliteStore.Close()
	log.Printf("SQLite database: %s", cfg.Storage.SQLitePath)

	var seen storage.SeenStore = sqliteStore
	if cfg.Storage.SeenBackend == "postgres" {
		pgStore, err := storage.NewPostgresSeenStore(ctx, cfg.Storage.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to connect to Postgres: %v", err)
		}
		defer pgStore.Close()
		log.Printf("Seen store: Postgres (%s)", maskConnectionString(cfg.Storage.DatabaseURL))
		seen = pgStore
	}

	if *showStatus {
		printStatus(ctx, cfg, sqliteStore, seen)
		return
	}

	clients := httputil.NewClients(cfg.ProxyURL)
	if cfg.ProxyURL != "" {
		log.Printf("Proxy: %s", cfg.ProxyURL)
	}

	notifier := notify.NewNotifier(clients.Webhook, cfg.Notify, site.Name)
	if !cfg.Notify.Enabled {
		log.Println("Warning: notifications are disabled, new listings will only be logged (set ENABLE_NOTIFICATIONS=true)")
	} else if err := notifier.Validate(ctx); err != nil {
		log.Printf("Warning: webhook validation failed: %v", err)
	}

	var uploader storage.Uploader = storage.NoOpUploader{}
	if cfg.Archive.S3Bucket != "" {
		s3Uploader, err := storage.NewS3Uploader(ctx, storage.S3Config{
			Bucket:          cfg.Archive.S3Bucket,
			Region:          cfg.Archive.S3Region,
			Endpoint:        cfg.Archive.S3Endpoint,
			AccessKeyID:     cfg.Archive.S3AccessKey,
			SecretAccessKey: cfg.Archive.S3SecretKey,
		})
		if err != nil {
			log.Printf("Warning: S3 archiving disabled: %v", err)
		} else {
			uploader = s3Uploader
			log.Printf("Archiving snapshots to s3://%s", cfg.Archive.S3Bucket)
		}
	}
	archiver := hunter.NewArchiver(cfg.Archive.Dir, uploader)

	fetcher := hunter.NewFetcher(site, cfg.Browser, clients.Scraping)
	defer fetcher.Close()

	orchestrator := hunter.NewOrchestrator(site, fetcher, seen, notifier, archiver, sqliteStore)

	if *huntNow {
		log.Println("Running one hunt cycle...")
		result, err := orchestrator.RunCycle(ctx)
		if err != nil {
			log.Fatalf("Hunt failed: %v", err)
		}
		log.Printf("Hunt complete: %d new of %d found", result.New, result.Found)
		return
	}

	sched := scheduler.New(cfg.Hunt, orchestrator)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := sched.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	log.Println("Daemon running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("Received %s, shutting down...", sig)
		cancel()
		sched.Stop()
		log.Println("Goodbye!")
	case err := <-sched.Fatal():
		cancel()
		sched.Stop()
		fetcher.Close()
		sqliteStore.Close()
		log.Fatalf("Storage failure, daemon halted: %v", err)
	}
}

func printStatus(ctx context.Context, cfg *config.Config, ops *storage.SQLiteStore, seen storage.SeenStore) {
	count, err := seen.CountSeen(ctx)
	if err != nil {
		log.Fatalf("Failed to count seen listings: %v", err)
	}
	fmt.Printf("Seen listings: %d\n", count)

	recent, err := seen.RecentSeen(ctx, 5)
	if err != nil {
		log.Fatalf("Failed to read recent listings: %v", err)
	}
	for _, l := range recent {
		fmt.Printf("  %s  %s\n", l.FirstSeenAt.Format("2006-01-02 15:04"), l.URL)
	}

	run, err := ops.LastRun(ctx, cfg.Hunt.Site)
	if err != nil {
		log.Fatalf("Failed to read last run: %v", err)
	}
	if run == nil {
		fmt.Println("No runs recorded yet")
		return
	}

	fmt.Printf("Last run: %s, started %s\n", run.Status, run.StartedAt.Format("2006-01-02 15:04:05"))
	if run.FinishedAt != nil {
		fmt.Printf("Duration: %s\n", run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond))
	}
	fmt.Printf("Found %d, new %d, notified %d, undelivered %d, anomalies %d\n",
		run.ListingsFound, run.ListingsNew, run.Notified, run.Undelivered, run.Anomalies)
	if run.Note != "" {
		fmt.Printf("Note: %s\n", run.Note)
	}

	logs, err := ops.RunLogs(ctx, run.UID, 20)
	if err != nil {
		log.Printf("Warning: could not read run logs: %v", err)
		return
	}
	for _, entry := range logs {
		fmt.Printf("  %s [%s] %s\n", entry.Timestamp.Format("15:04:05"), entry.Level, entry.Message)
	}
}

// maskConnectionString hides the password when logging a DSN.
func maskConnectionString(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn
	}
	return u.Redacted()
}
