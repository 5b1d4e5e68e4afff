// Standalone data quality gate. Runs the full check suite against the
// canonical tables and exits non-zero when the gate would block an export.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/BayanLab/Backbone/internal/config"
	"github.com/BayanLab/Backbone/internal/db"
	"github.com/BayanLab/Backbone/internal/dq"
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

	res, err := dq.NewChecker(gdb, cfg).Run()
	if err != nil {
		log.Fatalf("running DQ checks: %v", err)
	}

	fmt.Printf("DQ checks: %s\n", res.Summary())
	if !res.Passed {
		fmt.Println("gate FAILED: exports would be blocked")
		os.Exit(1)
	}
	fmt.Println("gate passed")
}
