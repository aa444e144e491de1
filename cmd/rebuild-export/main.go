// cmd/rebuild-export/main.go
// Regenerates the local tabular export from the submission JSON files.
package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/joho/godotenv"

	"route-feedback-api/config"
	"route-feedback-api/services"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	settings, err := config.Load()
	if err != nil {
		log.Fatal("Invalid configuration: ", err)
	}

	var dir, out string
	flag.StringVar(&dir, "dir", settings.SubmissionsDir, "directory holding rof_*.json submission files")
	flag.StringVar(&out, "out", settings.LocalExportFile, "export workbook to write")
	flag.Parse()

	if out == "" {
		log.Fatal("no export file: set LOCAL_EXPORT_FILE or pass -out")
	}

	n, err := services.NewLocalStore(dir, out).RebuildExport()
	if err != nil {
		log.Fatalf("rebuild failed: %v", err)
	}
	fmt.Printf("Rebuilt %s from %d submission(s)\n", out, n)
}
