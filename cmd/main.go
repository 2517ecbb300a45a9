package main

import (
	"context"
	"flag"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/edustems/data-sync/api"
	"github.com/edustems/data-sync/config"
	"github.com/edustems/data-sync/services"
)

func main() {
	serve := flag.Bool("serve", false, "start the HTTP trigger API instead of running a one-shot job")
	job := flag.String("job", "all", "one-shot job: roster | assessments | assessment-update | all")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Fatal error loading configuration: %v", err)
	}

	log := newLogger(cfg.LogFile)

	store, err := services.ConnectStore(cfg, log)
	if err != nil {
		log.Fatalf("Fatal error connecting to MySQL: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.EnsureSchema(ctx); err != nil {
		log.Fatalf("Fatal error ensuring schema: %v", err)
	}

	client := services.NewEdustemsClient(cfg, log)
	svc := services.NewSyncService(cfg, client, store, log)

	if *serve {
		app := api.SetupRouter(svc, cfg)
		log.Infof("Starting Fiber server on %s...", cfg.ListenAddr)
		if err := app.Listen(cfg.ListenAddr); err != nil {
			log.Fatalf("Fatal error starting Fiber server: %v", err)
		}
		return
	}

	runJob(ctx, svc, log, *job)
}

func runJob(ctx context.Context, svc *services.SyncService, log *logrus.Logger, job string) {
	switch job {
	case "roster":
		if _, err := svc.SyncRoster(ctx); err != nil {
			log.Errorf("Roster sync failed: %v", err)
		}
	case "assessments":
		if _, err := svc.BackfillAssessments(ctx); err != nil {
			log.Errorf("Assessment backfill failed: %v", err)
		}
	case "assessment-update":
		if _, err := svc.UpdateAssessments(ctx); err != nil {
			log.Errorf("Assessment update failed: %v", err)
		}
	case "all":
		if _, err := svc.SyncRoster(ctx); err != nil {
			log.Errorf("Roster sync failed: %v", err)
		}
		if _, err := svc.UpdateAssessments(ctx); err != nil {
			log.Errorf("Assessment update failed: %v", err)
		}
	default:
		log.Fatalf("Unknown job %q (want roster, assessments, assessment-update or all)", job)
	}
}

// newLogger mirrors every entry to stdout and the configured log file, the
// way the cron deployments expect to tail runs.
func newLogger(logFile string) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	f, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		log.Warnf("Could not open log file %s, logging to stdout only: %v", logFile, err)
		return log
	}
	log.SetOutput(io.MultiWriter(os.Stdout, f))
	return log
}
