package qc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nuview/topo-pipeline/internal/models"
)

func opp(id, title, agency, link string) models.Opportunity {
	return models.Opportunity{ID: id, Title: title, Agency: agency, Link: link}
}

func TestVerifyLinks(t *testing.T) {
	v := NewValidator(zap.NewNop())
	opps := []models.Opportunity{
		opp("a", "t", "x", "https://example.gov/opp/1"),
		opp("b", "t2", "x", "not a url"),
		opp("c", "t3", "x", "ftp://example.gov/opp"),
		opp("d", "t4", "x", "http://localhost/opp"),
	}

	v.VerifyLinks(opps)

	assert.True(t, opps[0].SourceVerified)
	assert.False(t, opps[1].SourceVerified)
	assert.False(t, opps[2].SourceVerified)
	assert.False(t, opps[3].SourceVerified, "host without a dot is not verifiable")
}

func TestValidateRequiredFields(t *testing.T) {
	v := NewValidator(zap.NewNop())
	opps := []models.Opportunity{
		opp("a", "Topographic survey", "USGS", "https://example.gov/1"),
		opp("b", "", "", ""),
	}

	kept, report := v.Validate(opps)

	// Missing fields are errors, never drops.
	assert.Len(t, kept, 2)
	assert.Equal(t, 3, report.TotalErrors)
	assert.InDelta(t, 0.5, report.PassRate, 1e-9)
}

func TestValidateLinkShapeIsWarning(t *testing.T) {
	v := NewValidator(zap.NewNop())
	opps := []models.Opportunity{
		opp("a", "Terrain mapping", "Agency", "not a url"),
	}

	kept, report := v.Validate(opps)

	assert.Len(t, kept, 1)
	assert.Equal(t, 0, report.TotalErrors)
	assert.Equal(t, 1, report.TotalWarnings)
	assert.InDelta(t, 1.0, report.PassRate, 1e-9)
}

func TestValidateMixedTopicRule(t *testing.T) {
	v := NewValidator(zap.NewNop())
	opps := []models.Opportunity{
		opp("a", "Bathymetric survey only", "NOAA", "https://example.gov/1"),
		opp("b", "Combined topographic and bathymetric LiDAR", "NOAA", "https://example.gov/2"),
		opp("c", "Batimetría del litoral", "SEMAR", "https://example.mx/3"),
		opp("d", "Terrain mapping program", "USGS", "https://example.gov/4"),
	}

	kept, report := v.Validate(opps)

	require.Len(t, kept, 2)
	assert.Equal(t, 2, report.Excluded)
	assert.Equal(t, "b", kept[0].ID)
	assert.Equal(t, "d", kept[1].ID)
}

func TestValidateInclusionOverExclusion(t *testing.T) {
	v := NewValidator(zap.NewNop())
	// No amount, no deadline, no description: retained regardless.
	record := opp("a", "Elevation data services", "Agency", "https://example.gov/1")

	kept, report := v.Validate([]models.Opportunity{record})

	assert.Len(t, kept, 1)
	assert.Equal(t, 0, report.TotalErrors)
	assert.Equal(t, 0, report.Excluded)
}

func TestValidateDedupe(t *testing.T) {
	v := NewValidator(zap.NewNop())
	a := opp("aaa", "National LiDAR Program", "USGS", "https://example.gov/1")
	a.PriorityScore = 55
	b := opp("bbb", "national lidar program", "usgs", "https://mirror.example.org/1")
	b.PriorityScore = 70
	c := opp("ccc", "Other tender", "USGS", "https://example.gov/2")

	kept, report := v.Validate([]models.Opportunity{a, b, c})

	require.Len(t, kept, 2)
	assert.Equal(t, 1, report.Duplicates)
	// Higher score survives the collapse.
	assert.Equal(t, "bbb", kept[0].ID)
	assert.Equal(t, "ccc", kept[1].ID)
}

func TestValidateDedupeTieBreaksOnID(t *testing.T) {
	v := NewValidator(zap.NewNop())
	a := opp("zzz", "Tender", "Agency", "https://example.gov/1")
	b := opp("aaa", "Tender", "Agency", "https://example.gov/2")

	kept, _ := v.Validate([]models.Opportunity{a, b})
	require.Len(t, kept, 1)
	assert.Equal(t, "aaa", kept[0].ID)

	// Same survivor regardless of input order.
	kept, _ = v.Validate([]models.Opportunity{b, a})
	require.Len(t, kept, 1)
	assert.Equal(t, "aaa", kept[0].ID)
}

func TestMatrixOrdering(t *testing.T) {
	a := opp("bbb", "T1", "X", "https://example.gov/1")
	a.PriorityScore = 50
	a.Provenance.Scraper = "sam_gov"
	b := opp("aaa", "T2", "X", "https://example.gov/2")
	b.PriorityScore = 50
	c := opp("ccc", "T3", "X", "https://example.gov/3")
	c.PriorityScore = 80

	rows := Matrix([]models.Opportunity{a, b, c})

	require.Len(t, rows, 3)
	assert.Equal(t, "ccc", rows[0].ID)
	assert.Equal(t, "aaa", rows[1].ID)
	assert.Equal(t, "bbb", rows[2].ID)
	assert.Equal(t, "sam_gov", rows[2].Source)
}
