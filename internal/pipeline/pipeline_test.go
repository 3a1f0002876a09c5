package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nuview/topo-pipeline/internal/classify"
	"github.com/nuview/topo-pipeline/internal/config"
	"github.com/nuview/topo-pipeline/internal/ingest"
	"github.com/nuview/topo-pipeline/internal/models"
	"github.com/nuview/topo-pipeline/internal/output"
)

type fixedStrategy struct {
	records map[string][]models.RawOpportunity
	fail    map[string]error
}

func (s *fixedStrategy) Run(_ context.Context, src ingest.SourceConfig, _ ingest.Deps) ([]models.RawOpportunity, error) {
	if err, ok := s.fail[src.ID]; ok {
		return nil, err
	}
	return s.records[src.ID], nil
}

func testConfig(dir string) config.Config {
	return config.Config{
		Dispatch: config.DispatchConfig{Workers: 2, SourceTimeoutSec: 5},
		Output: config.OutputConfig{
			Dir:          dir,
			SnapshotFile: "opportunities.json",
			MatrixFile:   "sources_matrix.csv",
			QCReportFile: "qc_report.json",
		},
	}
}

func newTestPipeline(t *testing.T, dir string, stub *fixedStrategy) *Pipeline {
	t.Helper()
	scoring, err := classify.DefaultConfig()
	require.NoError(t, err)

	factory := ingest.NewStrategyFactory()
	factory.Register("stub", stub)

	p, err := New(testConfig(dir), scoring, factory, nil, zap.NewNop())
	require.NoError(t, err)
	return p
}

func stubSource(id string) ingest.SourceConfig {
	return ingest.SourceConfig{ID: id, Name: id, Country: "USA", Strategy: "stub", Active: true}
}

func TestRunEndToEnd(t *testing.T) {
	dir := t.TempDir()
	deadline := time.Now().UTC().AddDate(0, 0, 10).Format("2006-01-02")

	stub := &fixedStrategy{records: map[string][]models.RawOpportunity{
		"sam": {
			{
				Title:       "Topographic DaaS subscription for coastal zones",
				Agency:      "X",
				Country:     "USA",
				Link:        "https://example.gov/opp/1",
				RawAmount:   "$6,000,000",
				RawCurrency: "USD",
				RawDeadline: deadline,
				Scraper:     "sam",
				SourceType:  "api",
			},
			{
				Title:      "Bathymetric survey only",
				Agency:     "NOAA",
				Country:    "USA",
				Link:       "https://example.gov/opp/2",
				Scraper:    "sam",
				SourceType: "api",
			},
		},
	}}

	p := newTestPipeline(t, dir, stub)
	res, err := p.Run(context.Background(), []ingest.SourceConfig{stubSource("sam")})
	require.NoError(t, err)

	// The bathymetry-only record is excluded; the batch shrinks by one.
	require.Len(t, res.Opportunities, 1)
	assert.Equal(t, 1, res.Report.Excluded)

	top := res.Opportunities[0]
	assert.Equal(t, models.CategoryDaaS, top.Category)
	assert.Equal(t, models.UrgencyUrgent, top.Urgency)
	assert.True(t, top.SourceVerified)
	assert.Equal(t, 85, top.PriorityScore)

	// All three artifacts land on disk.
	snap, err := output.ReadSnapshot(filepath.Join(dir, "opportunities.json"))
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Meta.TotalCount)
	assert.FileExists(t, filepath.Join(dir, "sources_matrix.csv"))
	assert.FileExists(t, filepath.Join(dir, "qc_report.json"))
}

func TestRunPartialFailureStillWrites(t *testing.T) {
	dir := t.TempDir()
	stub := &fixedStrategy{
		records: map[string][]models.RawOpportunity{
			"good": {{
				Title:   "Terrain mapping tender",
				Agency:  "USGS",
				Country: "USA",
				Link:    "https://example.gov/opp/3",
				Scraper: "good",
			}},
		},
		fail: map[string]error{"bad": errors.New("connection refused")},
	}

	p := newTestPipeline(t, dir, stub)
	res, err := p.Run(context.Background(), []ingest.SourceConfig{stubSource("bad"), stubSource("good")})
	require.NoError(t, err)

	assert.Len(t, res.Opportunities, 1)
	require.Len(t, res.Stats, 2)
	assert.Error(t, res.Stats[0].Err)
	assert.NoError(t, res.Stats[1].Err)

	snap, err := output.ReadSnapshot(filepath.Join(dir, "opportunities.json"))
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Meta.TotalCount)
}

func TestRunAllSourcesDownWritesEmptySnapshot(t *testing.T) {
	dir := t.TempDir()
	stub := &fixedStrategy{fail: map[string]error{"a": errors.New("down"), "b": errors.New("down")}}

	p := newTestPipeline(t, dir, stub)
	res, err := p.Run(context.Background(), []ingest.SourceConfig{stubSource("a"), stubSource("b")})
	require.NoError(t, err)

	assert.Empty(t, res.Opportunities)
	snap, err := output.ReadSnapshot(filepath.Join(dir, "opportunities.json"))
	require.NoError(t, err)
	assert.Equal(t, 0, snap.Meta.TotalCount)
}

func TestRunStoredScoreIsRecomputable(t *testing.T) {
	dir := t.TempDir()
	stub := &fixedStrategy{records: map[string][]models.RawOpportunity{
		"src": {{
			Title:       "LiDAR point cloud acquisition",
			Agency:      "Agency",
			Country:     "USA",
			Link:        "https://example.gov/opp/7",
			RawAmount:   "$2,000,000",
			RawDeadline: time.Now().UTC().AddDate(0, 0, 90).Format("2006-01-02"),
			Scraper:     "src",
		}},
	}}

	p := newTestPipeline(t, dir, stub)
	res, err := p.Run(context.Background(), []ingest.SourceConfig{stubSource("src")})
	require.NoError(t, err)
	require.Len(t, res.Opportunities, 1)

	scoring, err := classify.DefaultConfig()
	require.NoError(t, err)
	classifier, err := classify.NewClassifier(scoring)
	require.NoError(t, err)

	stored := res.Opportunities[0]
	recomputed := classifier.ClassifyAndScore(stored, time.Now().UTC())
	assert.Equal(t, stored.PriorityScore, recomputed.Score)
}
