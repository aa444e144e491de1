// cmd/resync-export/main.go
// Appends submissions whose remote export sync failed to the remote export.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"route-feedback-api/config"
	"route-feedback-api/services"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	var limit int
	flag.IntVar(&limit, "limit", 100, "maximum number of submissions to resync")
	flag.Parse()

	settings, err := config.Load()
	if err != nil {
		log.Fatal("Invalid configuration: ", err)
	}

	remote := services.NewGraphClient(settings.Remote, nil)
	if err := remote.Configured(); err != nil {
		log.Fatal(err)
	}

	config.InitDB()
	ledger := services.NewSubmissionLedger(nil)
	if err := ledger.Migrate(); err != nil {
		log.Fatal("Failed to migrate submission ledger: ", err)
	}

	result, err := services.ResyncPendingExports(context.Background(), ledger, remote, limit)
	if err != nil {
		log.Fatalf("resync stopped: %v", err)
	}
	fmt.Printf("Synced: %d, still failing: %d\n", result.Synced, result.Failed)
	if result.Failed > 0 {
		os.Exit(2)
	}
}
