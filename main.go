package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/BayanLab/Backbone/internal/config"
	"github.com/BayanLab/Backbone/internal/db"
	"github.com/BayanLab/Backbone/internal/pipeline"
)

func main() {
	pipelineFlag := flag.String("pipeline", "all", "which pipeline to run: events, businesses, or all")
	flag.Parse()

	switch *pipelineFlag {
	case "events", "businesses", "all":
	default:
		fmt.Fprintf(os.Stderr, "unknown pipeline %q (want events, businesses, or all)\n", *pipelineFlag)
		os.Exit(2)
	}

	_ = godotenv.Load(".env.local")

	settings := config.LoadSettings()
	if err := settings.Validate(); err != nil {
		log.Fatalf("[main] invalid settings: %v", err)
	}

	cfg, err := config.Load(settings)
	if err != nil {
		log.Fatalf("[main] loading config: %v", err)
	}

	gdb, err := db.Connect(settings.DatabaseURL)
	if err != nil {
		log.Fatalf("[main] connecting to database: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		log.Fatalf("[main] migrating schema: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := pipeline.New(gdb, cfg)

	// The families write disjoint tables and disjoint metadata rows, so
	// "all" runs them concurrently. One family failing never cancels the
	// other; the process exit code reflects the worst outcome.
	g := &errgroup.Group{}
	if *pipelineFlag == "events" || *pipelineFlag == "all" {
		g.Go(func() error { return runner.RunEvents(ctx) })
	}
	if *pipelineFlag == "businesses" || *pipelineFlag == "all" {
		g.Go(func() error { return runner.RunBusinesses(ctx) })
	}

	if err := g.Wait(); err != nil {
		log.Printf("[main] pipeline run finished with failures: %v", err)
		os.Exit(1)
	}
	log.Println("[main] pipeline run completed")
}
