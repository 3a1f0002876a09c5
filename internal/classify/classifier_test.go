package classify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nuview/topo-pipeline/internal/models"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestClassifier(t *testing.T) *Classifier {
	t.Helper()
	cfg, err := DefaultConfig()
	require.NoError(t, err)
	c, err := NewClassifier(cfg)
	require.NoError(t, err)
	return c
}

func deadlineIn(days int) *time.Time {
	d := testNow.AddDate(0, 0, days)
	return &d
}

func usd(v int64) *int64 { return &v }

func TestClassifyAndScoreWorkedExample(t *testing.T) {
	c := newTestClassifier(t)

	opp := models.Opportunity{
		Title:          "LiDAR Elevation Data Subscription Service",
		Description:    "Multi-year data as a service agreement for terrain mapping.",
		AmountUSD:      usd(6_000_000),
		Deadline:       deadlineIn(10),
		SourceVerified: true,
	}

	r := c.ClassifyAndScore(opp, testNow)
	assert.Equal(t, models.CategoryDaaS, r.Category)
	assert.Equal(t, models.UrgencyUrgent, r.Urgency)
	assert.Equal(t, models.TierHigh, r.Tier)
	// 30 urgent + 30 high + 15 DaaS + 10 verified
	assert.Equal(t, 85, r.Score)
	assert.Equal(t, c.MaxScore(), r.Score)
}

func TestUrgencyBuckets(t *testing.T) {
	c := newTestClassifier(t)

	tests := []struct {
		name     string
		deadline *time.Time
		want     models.Urgency
	}{
		{"no deadline", nil, models.UrgencyFuture},
		{"today", deadlineIn(0), models.UrgencyUrgent},
		{"boundary 30 days", deadlineIn(30), models.UrgencyUrgent},
		{"31 days", deadlineIn(31), models.UrgencyNear},
		{"boundary 180 days", deadlineIn(180), models.UrgencyNear},
		{"181 days", deadlineIn(181), models.UrgencyFuture},
		{"expired clamps to urgent", deadlineIn(-15), models.UrgencyUrgent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := c.ClassifyAndScore(models.Opportunity{Deadline: tt.deadline}, testNow)
			assert.Equal(t, tt.want, r.Urgency)
		})
	}
}

func TestValueTierBuckets(t *testing.T) {
	c := newTestClassifier(t)

	tests := []struct {
		name   string
		amount *int64
		want   models.ValueTier
	}{
		{"nil amount", nil, models.TierLow},
		{"zero", usd(0), models.TierLow},
		{"below medium", usd(999_999), models.TierLow},
		{"medium boundary", usd(1_000_000), models.TierMedium},
		{"below high", usd(4_999_999), models.TierMedium},
		{"high boundary", usd(5_000_000), models.TierHigh},
		{"well above high", usd(250_000_000), models.TierHigh},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := c.ClassifyAndScore(models.Opportunity{AmountUSD: tt.amount}, testNow)
			assert.Equal(t, tt.want, r.Tier)
		})
	}
}

func TestCategorize(t *testing.T) {
	c := newTestClassifier(t)

	tests := []struct {
		name  string
		title string
		desc  string
		want  models.Category
	}{
		{"daas keyword in title", "National LiDAR Acquisition", "", models.CategoryDaaS},
		{"daas keyword in description", "IDIQ Vehicle", "point cloud deliverables required", models.CategoryDaaS},
		{"case insensitive", "TOPOGRAPHIC Survey Program", "", models.CategoryDaaS},
		{"spanish keyword", "Licitación pública", "modelo digital de elevación nacional", models.CategoryDaaS},
		{"french keyword", "Appel d'offres", "production d'un modèle numérique de terrain", models.CategoryDaaS},
		{"rnd keyword", "SBIR Phase II", "prototype sensor development", models.CategoryRnD},
		{"daas wins over rnd", "Research study on elevation data", "", models.CategoryDaaS},
		{"no match falls through", "Janitorial Services", "office cleaning", models.CategoryPlatform},
		{"empty text", "", "", models.CategoryPlatform},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := c.ClassifyAndScore(models.Opportunity{Title: tt.title, Description: tt.desc}, testNow)
			assert.Equal(t, tt.want, r.Category)
		})
	}
}

func TestScoreDeterministicAndBounded(t *testing.T) {
	c := newTestClassifier(t)

	opps := []models.Opportunity{
		{},
		{Title: "lidar", AmountUSD: usd(2_000_000), Deadline: deadlineIn(45)},
		{Title: "research", SourceVerified: true},
		{Title: "subscription", AmountUSD: usd(10_000_000), Deadline: deadlineIn(5), SourceVerified: true},
	}
	for _, opp := range opps {
		first := c.ClassifyAndScore(opp, testNow)
		for i := 0; i < 3; i++ {
			assert.Equal(t, first, c.ClassifyAndScore(opp, testNow))
		}
		assert.Greater(t, first.Score, 0)
		assert.LessOrEqual(t, first.Score, c.MaxScore())
	}
}

func TestApplyWritesBack(t *testing.T) {
	c := newTestClassifier(t)

	opp := models.Opportunity{
		Title:     "Geospatial data subscription",
		AmountUSD: usd(3_000_000),
		Deadline:  deadlineIn(20),
	}
	r := c.Apply(&opp, testNow)

	assert.Equal(t, r.Category, opp.Category)
	assert.Equal(t, r.Urgency, opp.Urgency)
	assert.Equal(t, r.Score, opp.PriorityScore)

	// Reclassifying the stored record reproduces the stored score.
	again := c.ClassifyAndScore(opp, testNow)
	assert.Equal(t, opp.PriorityScore, again.Score)
}

func TestVerifiedBonus(t *testing.T) {
	c := newTestClassifier(t)

	base := models.Opportunity{Title: "lidar", AmountUSD: usd(6_000_000), Deadline: deadlineIn(10)}
	verified := base
	verified.SourceVerified = true

	assert.Equal(t, 10, c.ClassifyAndScore(verified, testNow).Score-c.ClassifyAndScore(base, testNow).Score)
}

func TestConfigValidation(t *testing.T) {
	valid, err := DefaultConfig()
	require.NoError(t, err)

	t.Run("inverted urgency boundaries", func(t *testing.T) {
		cfg := valid
		cfg.Urgency = UrgencyRules{UrgentWithinDays: 180, NearWithinDays: 30}
		err := cfg.Validate()
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("inverted tier thresholds", func(t *testing.T) {
		cfg := valid
		cfg.Tiers = TierRules{HighMinUSD: 1_000_000, MediumMinUSD: 5_000_000}
		assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
	})

	t.Run("missing bucket score", func(t *testing.T) {
		cfg := valid
		cfg.Scores.Urgency = map[models.Urgency]int{models.UrgencyUrgent: 30}
		assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
	})

	t.Run("unknown keyword category", func(t *testing.T) {
		cfg := valid
		cfg.Keywords = map[models.Category]map[string][]string{
			"Mystery": {"en": {"x"}},
		}
		assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
	})

	t.Run("empty keyword list", func(t *testing.T) {
		cfg := valid
		cfg.Keywords = map[models.Category]map[string][]string{
			models.CategoryDaaS: {"en": {}},
		}
		assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
	})
}
