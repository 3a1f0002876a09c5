package classify

import (
	"embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/nuview/topo-pipeline/internal/models"
)

//go:embed config/scoring.yaml
var scoringYAML embed.FS

// ErrInvalidConfig marks a malformed scoring/keyword table. This is the
// one error class that aborts a whole run instead of degrading it.
var ErrInvalidConfig = errors.New("invalid classifier config")

// UrgencyRules holds the day boundaries for urgency bucketing.
type UrgencyRules struct {
	UrgentWithinDays int `yaml:"urgent_within_days"`
	NearWithinDays   int `yaml:"near_within_days"`
}

// TierRules holds the USD thresholds for value-tier bucketing.
type TierRules struct {
	HighMinUSD   int64 `yaml:"high_min_usd"`
	MediumMinUSD int64 `yaml:"medium_min_usd"`
}

// ScoreTable holds the per-bucket point values summed into the priority
// score.
type ScoreTable struct {
	Urgency       map[models.Urgency]int   `yaml:"urgency"`
	Tier          map[models.ValueTier]int `yaml:"tier"`
	Category      map[models.Category]int  `yaml:"category"`
	VerifiedBonus int                      `yaml:"verified_bonus"`
}

// Config is the full classifier configuration. It is an explicit value
// passed to NewClassifier so tests can substitute thresholds and keyword
// tables without global state.
type Config struct {
	Urgency UrgencyRules `yaml:"urgency"`
	Tiers   TierRules    `yaml:"tiers"`
	Scores  ScoreTable   `yaml:"scores"`

	// Keywords maps a category to per-language keyword lists. All
	// language lists are checked for every record; matching is
	// case-insensitive substring search over title+description.
	Keywords map[models.Category]map[string][]string `yaml:"keywords"`
}

// DefaultConfig returns the embedded production scoring tables.
func DefaultConfig() (Config, error) {
	data, err := scoringYAML.ReadFile("config/scoring.yaml")
	if err != nil {
		return Config{}, fmt.Errorf("read embedded scoring config: %w", err)
	}
	return parseConfig(data)
}

// LoadConfig reads a scoring config from disk, for overriding the
// embedded defaults.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read scoring config: %w", err)
	}
	return parseConfig(data)
}

func parseConfig(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that the tables cover every bucket the classifier can
// emit. A gap here would silently zero out score terms, so it is fatal.
func (c Config) Validate() error {
	if c.Urgency.UrgentWithinDays <= 0 || c.Urgency.NearWithinDays <= c.Urgency.UrgentWithinDays {
		return fmt.Errorf("%w: urgency boundaries must satisfy 0 < urgent < near, got urgent=%d near=%d",
			ErrInvalidConfig, c.Urgency.UrgentWithinDays, c.Urgency.NearWithinDays)
	}
	if c.Tiers.HighMinUSD <= c.Tiers.MediumMinUSD || c.Tiers.MediumMinUSD <= 0 {
		return fmt.Errorf("%w: tier thresholds must satisfy 0 < medium < high, got medium=%d high=%d",
			ErrInvalidConfig, c.Tiers.MediumMinUSD, c.Tiers.HighMinUSD)
	}

	for _, u := range []models.Urgency{models.UrgencyUrgent, models.UrgencyNear, models.UrgencyFuture} {
		if _, ok := c.Scores.Urgency[u]; !ok {
			return fmt.Errorf("%w: missing urgency score for %q", ErrInvalidConfig, u)
		}
	}
	for _, t := range []models.ValueTier{models.TierHigh, models.TierMedium, models.TierLow} {
		if _, ok := c.Scores.Tier[t]; !ok {
			return fmt.Errorf("%w: missing tier score for %q", ErrInvalidConfig, t)
		}
	}
	for _, cat := range []models.Category{models.CategoryDaaS, models.CategoryRnD, models.CategoryPlatform} {
		if _, ok := c.Scores.Category[cat]; !ok {
			return fmt.Errorf("%w: missing category score for %q", ErrInvalidConfig, cat)
		}
	}
	for name, score := range c.Scores.Urgency {
		if score < 0 {
			return fmt.Errorf("%w: negative urgency score for %q", ErrInvalidConfig, name)
		}
	}
	for name, score := range c.Scores.Tier {
		if score < 0 {
			return fmt.Errorf("%w: negative tier score for %q", ErrInvalidConfig, name)
		}
	}
	for name, score := range c.Scores.Category {
		if score < 0 {
			return fmt.Errorf("%w: negative category score for %q", ErrInvalidConfig, name)
		}
	}
	if c.Scores.VerifiedBonus < 0 {
		return fmt.Errorf("%w: negative verified bonus", ErrInvalidConfig)
	}

	for cat, langs := range c.Keywords {
		if cat != models.CategoryDaaS && cat != models.CategoryRnD && cat != models.CategoryPlatform {
			return fmt.Errorf("%w: keywords for unknown category %q", ErrInvalidConfig, cat)
		}
		for lang, words := range langs {
			if len(words) == 0 {
				return fmt.Errorf("%w: empty keyword list for %s/%s", ErrInvalidConfig, cat, lang)
			}
			for _, w := range words {
				if w == "" {
					return fmt.Errorf("%w: blank keyword in %s/%s", ErrInvalidConfig, cat, lang)
				}
			}
		}
	}

	return nil
}
