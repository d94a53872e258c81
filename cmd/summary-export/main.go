package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"bitbucket.org/mmdatafocus/finrisk_backend/config"
	"bitbucket.org/mmdatafocus/finrisk_backend/models/reports"
)

func main() {
	quarterID := flag.Int("quarter-id", 0, "Required: quarter to export")
	out := flag.String("out", "", "Output .xlsx path (default quarter-<id>-summary.xlsx)")
	gcsObject := flag.String("gcs-object", "", "Optional: upload to this object in GCS_EXPORT_BUCKET instead of writing a file")
	upload := flag.Bool("upload", false, "Upload to GCS under summaries/ (implied by -gcs-object)")
	flag.Parse()

	if *quarterID <= 0 {
		fmt.Fprintln(os.Stderr, "-quarter-id is required")
		os.Exit(2)
	}
	filename := *out
	if filename == "" {
		filename = fmt.Sprintf("quarter-%d-summary.xlsx", *quarterID)
	}

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil)")
		os.Exit(1)
	}

	if *upload || *gcsObject != "" {
		uri, err := reports.UploadQuarterSummary(context.Background(), db, *quarterID, *gcsObject)
		if err != nil {
			fmt.Fprintf(os.Stderr, "upload quarter %d: %v\n", *quarterID, err)
			os.Exit(1)
		}
		fmt.Printf("uploaded %s\n", uri)
		return
	}

	if err := reports.ExportQuarterSummary(context.Background(), db, *quarterID, filename); err != nil {
		fmt.Fprintf(os.Stderr, "export quarter %d: %v\n", *quarterID, err)
		os.Exit(1)
	}
	fmt.Printf("wrote %s\n", filename)
}
