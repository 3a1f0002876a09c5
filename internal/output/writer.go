// Package output persists run artifacts: the opportunity snapshot, the
// source-verification matrix, and the QC report. Every file is written
// atomically and with deterministic content so consecutive runs over
// identical data produce byte-identical output.
package output

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/nuview/topo-pipeline/internal/models"
	"github.com/nuview/topo-pipeline/internal/qc"
)

// Snapshot is the JSON contract the dashboard consumes.
type Snapshot struct {
	Meta          Meta                 `json:"meta"`
	Opportunities []models.Opportunity `json:"opportunities"`
}

type Meta struct {
	Updated    time.Time `json:"updated"`
	TotalCount int       `json:"totalCount"`
}

type Writer struct {
	dir    string
	logger *zap.Logger
}

func NewWriter(dir string, logger *zap.Logger) *Writer {
	return &Writer{dir: dir, logger: logger}
}

// SortRecords orders records by priority score descending, then ID
// ascending. Fetch completion order is nondeterministic; this sort is
// what makes snapshots diffable across runs.
func SortRecords(opps []models.Opportunity) {
	sort.SliceStable(opps, func(i, j int) bool {
		if opps[i].PriorityScore != opps[j].PriorityScore {
			return opps[i].PriorityScore > opps[j].PriorityScore
		}
		return opps[i].ID < opps[j].ID
	})
}

// WriteSnapshot sorts the records and writes the snapshot JSON.
func (w *Writer) WriteSnapshot(filename string, opps []models.Opportunity, updated time.Time) error {
	SortRecords(opps)
	snap := Snapshot{
		Meta:          Meta{Updated: updated.UTC(), TotalCount: len(opps)},
		Opportunities: opps,
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	data = append(data, '\n')

	if err := w.writeAtomic(filename, data); err != nil {
		return err
	}
	w.logger.Info("snapshot written",
		zap.String("file", filename),
		zap.Int("records", len(opps)))
	return nil
}

// WriteMatrix writes the source-verification CSV, one row per record.
func (w *Writer) WriteMatrix(filename string, rows []qc.MatrixRow) error {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	if err := cw.Write([]string{"id", "source", "verified", "category", "priorityScore"}); err != nil {
		return fmt.Errorf("write matrix header: %w", err)
	}
	for _, r := range rows {
		rec := []string{r.ID, r.Source, strconv.FormatBool(r.Verified), string(r.Category), strconv.Itoa(r.Score)}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write matrix row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush matrix: %w", err)
	}

	if err := w.writeAtomic(filename, buf.Bytes()); err != nil {
		return err
	}
	w.logger.Info("matrix written", zap.String("file", filename), zap.Int("rows", len(rows)))
	return nil
}

// WriteQCReport writes the QC report JSON.
func (w *Writer) WriteQCReport(filename string, report *qc.Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal qc report: %w", err)
	}
	data = append(data, '\n')
	if err := w.writeAtomic(filename, data); err != nil {
		return err
	}
	w.logger.Info("qc report written", zap.String("file", filename))
	return nil
}

// writeAtomic writes via a temp file and rename so a crashed run never
// leaves a truncated artifact for the dashboard to read.
func (w *Writer) writeAtomic(filename string, data []byte) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	target := filepath.Join(w.dir, filename)

	tmp, err := os.CreateTemp(w.dir, filename+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", filename, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", filename, err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename %s: %w", filename, err)
	}
	return nil
}

// ReadSnapshot loads a snapshot file back, for the API server and the
// rescore tool.
func ReadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	return &snap, nil
}
