// qcreport prints the latest snapshot and QC report as console tables.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/nuview/topo-pipeline/internal/output"
	"github.com/nuview/topo-pipeline/internal/qc"
)

func main() {
	dir := flag.String("dir", "data/processed", "output directory of the last pipeline run")
	top := flag.Int("top", 20, "number of top-scored records to show")
	flag.Parse()

	snap, err := output.ReadSnapshot(filepath.Join(*dir, "opportunities.json"))
	if err != nil {
		log.Fatal(err)
	}

	reportData, err := os.ReadFile(filepath.Join(*dir, "qc_report.json"))
	if err != nil {
		log.Fatal(err)
	}
	var report qc.Report
	if err := json.Unmarshal(reportData, &report); err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Snapshot updated %s, %d records\n\n", snap.Meta.Updated.Format("2006-01-02 15:04 MST"), snap.Meta.TotalCount)

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Score", "Category", "Urgency", "Verified", "Title", "Agency", "Country"})
	for i, opp := range snap.Opportunities {
		if i >= *top {
			break
		}
		title := opp.Title
		if len(title) > 60 {
			title = title[:57] + "..."
		}
		t.AppendRow(table.Row{opp.PriorityScore, opp.Category, opp.Urgency, opp.SourceVerified, title, opp.Agency, opp.Country})
	}
	t.Render()

	fmt.Println()
	q := table.NewWriter()
	q.SetOutputMirror(os.Stdout)
	q.AppendHeader(table.Row{"Records", "Errors", "Warnings", "Excluded", "Duplicates", "Pass Rate"})
	q.AppendRow(table.Row{
		report.TotalRecords, report.TotalErrors, report.TotalWarnings,
		report.Excluded, report.Duplicates, fmt.Sprintf("%.1f%%", report.PassRate*100),
	})
	q.Render()
}
