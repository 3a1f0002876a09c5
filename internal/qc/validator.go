// Package qc validates the classified batch. The core policy is
// inclusion over exclusion: soft failures are counted and reported but
// records are only ever dropped by the explicit topic-exclusion rule
// and duplicate collapsing.
package qc

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/nuview/topo-pipeline/internal/models"
)

// Issue is one per-record finding.
type Issue struct {
	RecordID string `json:"recordId"`
	Field    string `json:"field"`
	Severity string `json:"severity"` // "error" or "warning"
	Message  string `json:"message"`
}

// Report summarizes a validation pass.
type Report struct {
	TotalRecords  int     `json:"totalRecords"`
	TotalErrors   int     `json:"totalErrors"`
	TotalWarnings int     `json:"totalWarnings"`
	PassRate      float64 `json:"passRate"` // share of records with zero errors, 0..1
	Excluded      int     `json:"excluded"`
	Duplicates    int     `json:"duplicates"`
	Issues        []Issue `json:"issues,omitempty"`
}

// MatrixRow is one line of the source-verification matrix.
type MatrixRow struct {
	ID       string
	Source   string
	Verified bool
	Category models.Category
	Score    int
}

// excludedTerms mark out-of-scope bathymetric content, across the
// languages the sources publish in.
var excludedTerms = []string{
	"bathymetry", "bathymetric", "seafloor", "sea floor", "seabed",
	"batimetría", "batimétrico", "bathymétrie", "bathymetrie",
}

// retainedTerms are in-scope topics. A record mentioning an excluded
// term alongside any of these is kept; only exclusively-bathymetric
// records are dropped.
var retainedTerms = []string{
	"topographic", "topography", "lidar", "elevation", "terrain",
	"digital elevation model", "point cloud", "photogrammetry",
	"orthoimagery", "land survey", "geospatial",
	"topográfico", "topografía", "topographie", "geländemodell",
}

type Validator struct {
	logger *zap.Logger
}

func NewValidator(logger *zap.Logger) *Validator {
	return &Validator{logger: logger}
}

// VerifyLinks sets SourceVerified on each record from a link format
// check. This runs before scoring so the verified bonus is part of the
// stored score and recomputing from fields reproduces it.
func (v *Validator) VerifyLinks(opps []models.Opportunity) {
	for i := range opps {
		opps[i].SourceVerified = linkWellFormed(opps[i].Link)
	}
}

// linkWellFormed checks the URL shape: absolute http(s) with a dotted
// host.
func linkWellFormed(link string) bool {
	u, err := url.Parse(link)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return strings.Contains(u.Host, ".")
}

// Validate checks the batch and returns the retained records plus the
// report. Records are dropped only for exclusively-bathymetric content
// or as duplicate collapses; every other finding is a counted issue on
// a retained record.
func (v *Validator) Validate(opps []models.Opportunity) ([]models.Opportunity, *Report) {
	report := &Report{TotalRecords: len(opps)}
	recordsWithErrors := make(map[string]bool)

	addIssue := func(id, field, severity, message string) {
		report.Issues = append(report.Issues, Issue{RecordID: id, Field: field, Severity: severity, Message: message})
		if severity == "error" {
			report.TotalErrors++
			recordsWithErrors[id] = true
		} else {
			report.TotalWarnings++
		}
	}

	kept := make([]models.Opportunity, 0, len(opps))
	for _, opp := range opps {
		if isExclusivelyExcluded(opp) {
			report.Excluded++
			v.logger.Debug("record excluded as out of scope",
				zap.String("id", opp.ID),
				zap.String("title", opp.Title))
			continue
		}

		if opp.Title == "" {
			addIssue(opp.ID, "title", "error", "missing required field")
		}
		if opp.Agency == "" {
			addIssue(opp.ID, "agency", "error", "missing required field")
		}
		if opp.Link == "" {
			addIssue(opp.ID, "link", "error", "missing required field")
		} else if !linkWellFormed(opp.Link) {
			addIssue(opp.ID, "link", "warning", fmt.Sprintf("link does not look like a URL: %s", opp.Link))
		}

		kept = append(kept, opp)
	}

	kept, dupes := dedupe(kept)
	report.Duplicates = dupes

	if report.TotalRecords > 0 {
		report.PassRate = float64(report.TotalRecords-len(recordsWithErrors)) / float64(report.TotalRecords)
	} else {
		report.PassRate = 1
	}

	v.logger.Info("validation complete",
		zap.Int("total", report.TotalRecords),
		zap.Int("kept", len(kept)),
		zap.Int("errors", report.TotalErrors),
		zap.Int("warnings", report.TotalWarnings),
		zap.Int("excluded", report.Excluded),
		zap.Int("duplicates", report.Duplicates))

	return kept, report
}

// isExclusivelyExcluded applies the mixed-topic rule: drop only when an
// excluded term appears and no in-scope term does.
func isExclusivelyExcluded(opp models.Opportunity) bool {
	text := strings.ToLower(opp.Title + " " + opp.Description)

	hasExcluded := false
	for _, term := range excludedTerms {
		if strings.Contains(text, term) {
			hasExcluded = true
			break
		}
	}
	if !hasExcluded {
		return false
	}

	for _, term := range retainedTerms {
		if strings.Contains(text, term) {
			return false
		}
	}
	return true
}

// dedupe collapses records sharing a title+agency key. The survivor is
// chosen deterministically regardless of fetch completion order: the
// higher score wins, then the smaller ID.
func dedupe(opps []models.Opportunity) ([]models.Opportunity, int) {
	best := make(map[string]models.Opportunity, len(opps))
	order := make([]string, 0, len(opps))

	for _, opp := range opps {
		key := strings.ToLower(opp.Title) + "|" + strings.ToLower(opp.Agency)
		cur, exists := best[key]
		if !exists {
			best[key] = opp
			order = append(order, key)
			continue
		}
		if opp.PriorityScore > cur.PriorityScore ||
			(opp.PriorityScore == cur.PriorityScore && opp.ID < cur.ID) {
			best[key] = opp
		}
	}

	out := make([]models.Opportunity, 0, len(best))
	for _, key := range order {
		out = append(out, best[key])
	}
	return out, len(opps) - len(out)
}

// Matrix builds the audit matrix, one row per retained record, ordered
// by score descending then ID ascending to match the snapshot.
func Matrix(opps []models.Opportunity) []MatrixRow {
	rows := make([]MatrixRow, 0, len(opps))
	for _, opp := range opps {
		rows = append(rows, MatrixRow{
			ID:       opp.ID,
			Source:   opp.Provenance.Scraper,
			Verified: opp.SourceVerified,
			Category: opp.Category,
			Score:    opp.PriorityScore,
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Score != rows[j].Score {
			return rows[i].Score > rows[j].Score
		}
		return rows[i].ID < rows[j].ID
	})
	return rows
}
