// Package classify assigns each opportunity a category, urgency bucket
// and priority score from fixed, configurable tables. Everything here is
// pure computation: same record in, same result out.
package classify

import (
	"strings"
	"time"

	"github.com/nuview/topo-pipeline/internal/models"
)

// categoryOrder is the match precedence. The first category whose
// keyword table matches wins; Platform is the fallback and needs no
// keywords.
var categoryOrder = []models.Category{models.CategoryDaaS, models.CategoryRnD}

// Result carries the classification of a single record.
type Result struct {
	Category models.Category
	Urgency  models.Urgency
	Tier     models.ValueTier
	Score    int
}

type Classifier struct {
	cfg Config
}

// NewClassifier validates the config and returns a classifier. The
// returned error wraps ErrInvalidConfig and should abort the run.
func NewClassifier(cfg Config) (*Classifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Classifier{cfg: cfg}, nil
}

// ClassifyAndScore derives category, urgency, value tier and priority
// score for one record. Missing fields never fail; they fall into the
// documented default buckets (future/low/Platform) so incomplete records
// stay in the batch.
func (c *Classifier) ClassifyAndScore(opp models.Opportunity, now time.Time) Result {
	r := Result{
		Category: c.categorize(opp.Title, opp.Description),
		Urgency:  c.urgencyFor(opp.Deadline, now),
		Tier:     c.tierFor(opp.AmountUSD),
	}

	r.Score = c.cfg.Scores.Urgency[r.Urgency] +
		c.cfg.Scores.Tier[r.Tier] +
		c.cfg.Scores.Category[r.Category]
	if opp.SourceVerified {
		r.Score += c.cfg.Scores.VerifiedBonus
	}

	return r
}

// Apply classifies the record and writes the result back onto it.
func (c *Classifier) Apply(opp *models.Opportunity, now time.Time) Result {
	r := c.ClassifyAndScore(*opp, now)
	opp.Category = r.Category
	opp.Urgency = r.Urgency
	opp.PriorityScore = r.Score
	return r
}

// MaxScore returns the largest score the tables can produce, for bounds
// checks and report headers.
func (c *Classifier) MaxScore() int {
	return maxValue(c.cfg.Scores.Urgency) +
		maxValue(c.cfg.Scores.Tier) +
		maxValue(c.cfg.Scores.Category) +
		c.cfg.Scores.VerifiedBonus
}

// urgencyFor buckets by whole days to deadline. No deadline means
// future. An already-passed deadline clamps to urgent: the record needs
// immediate re-verification, not a quiet slide into the future bucket.
func (c *Classifier) urgencyFor(deadline *time.Time, now time.Time) models.Urgency {
	if deadline == nil {
		return models.UrgencyFuture
	}
	days := int(deadline.Sub(now).Hours() / 24)
	switch {
	case days <= c.cfg.Urgency.UrgentWithinDays:
		return models.UrgencyUrgent
	case days <= c.cfg.Urgency.NearWithinDays:
		return models.UrgencyNear
	default:
		return models.UrgencyFuture
	}
}

func (c *Classifier) tierFor(amountUSD *int64) models.ValueTier {
	if amountUSD == nil || *amountUSD <= 0 {
		return models.TierLow
	}
	switch {
	case *amountUSD >= c.cfg.Tiers.HighMinUSD:
		return models.TierHigh
	case *amountUSD >= c.cfg.Tiers.MediumMinUSD:
		return models.TierMedium
	default:
		return models.TierLow
	}
}

func (c *Classifier) categorize(title, description string) models.Category {
	text := strings.ToLower(title + " " + description)
	if text == " " {
		return models.CategoryPlatform
	}

	for _, cat := range categoryOrder {
		for _, words := range c.cfg.Keywords[cat] {
			for _, kw := range words {
				if strings.Contains(text, strings.ToLower(kw)) {
					return cat
				}
			}
		}
	}

	return models.CategoryPlatform
}

func maxValue[K comparable](m map[K]int) int {
	max := 0
	for _, v := range m {
		if v > max {
			max = v
		}
	}
	return max
}
