// Incremental geocoding pass. Fills coordinates for canonical rows that
// are still missing them, without rerunning the rest of the pipeline.
// Useful after raising provider quotas or switching providers.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/BayanLab/Backbone/internal/config"
	"github.com/BayanLab/Backbone/internal/db"
	"github.com/BayanLab/Backbone/internal/geocode"
)

func main() {
	godotenv.Load(".env.local")

	settings := config.LoadSettings()
	if err := settings.Validate(); err != nil {
		log.Fatalf("invalid settings: %v", err)
	}

	cfg, err := config.Load(settings)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	gdb, err := db.Connect(settings.DatabaseURL)
	if err != nil {
		log.Fatalf("DB connection error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	geocoder := geocode.NewGeocoder(gdb, cfg, geocode.NewProvider(settings))
	events, businesses, err := geocoder.Run(ctx)
	if err != nil {
		log.Fatalf("geocoding pass failed: %v", err)
	}

	fmt.Printf("geocoded %d events, %d businesses\n", events, businesses)
}
