package ingest

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"

	"github.com/nuview/topo-pipeline/internal/models"
)

var sanitizePolicy = bluemonday.StrictPolicy()

// HTMLToText strips markup and collapses whitespace. Sources hand us
// anything from clean JSON strings to full HTML fragments; everything
// downstream sees plain text.
func HTMLToText(html string) string {
	sanitized := sanitizePolicy.Sanitize(html)
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(sanitized))
	if err != nil {
		return normalizeSpace(sanitized)
	}
	return normalizeSpace(doc.Text())
}

// FromRaw converts a RawOpportunity into a canonical Opportunity. Text
// is sanitized, the amount is converted to whole USD, and the deadline
// is parsed once here so nothing downstream handles loose strings.
// Unparseable amounts and dates become nil, never errors.
func FromRaw(raw models.RawOpportunity, scrapedAt time.Time) models.Opportunity {
	opp := models.Opportunity{
		ID:          models.GenerateID(raw.IDKey()),
		Title:       HTMLToText(raw.Title),
		Description: HTMLToText(raw.Description),
		Agency:      HTMLToText(raw.Agency),
		Country:     normalizeSpace(raw.Country),
		Link:        raw.Link,
		Provenance: models.Provenance{
			Scraper:    raw.Scraper,
			SourceType: raw.SourceType,
			Country:    normalizeSpace(raw.Country),
			ScrapedAt:  scrapedAt.UTC(),
		},
	}

	if raw.RawAmount != "" {
		if usd, ok := ParseAmountUSD(raw.RawAmount, raw.RawCurrency); ok {
			opp.AmountUSD = &usd
		}
	}

	if raw.RawDeadline != "" {
		locales := []string{"en"}
		if dt, err := parseDateRobust(raw.RawDeadline, locales); err == nil {
			utc := dt.UTC()
			opp.Deadline = &utc
		}
	}

	return opp
}

// FromRawAll normalizes a batch, carrying per-record locale hints from
// the source config.
func FromRawAll(raws []models.RawOpportunity, src SourceConfig, scrapedAt time.Time) []models.Opportunity {
	out := make([]models.Opportunity, 0, len(raws))
	for _, raw := range raws {
		opp := FromRaw(raw, scrapedAt)
		if len(src.DateLocales) > 0 && opp.Deadline == nil && raw.RawDeadline != "" {
			if dt, err := parseDateRobust(raw.RawDeadline, src.DateLocales); err == nil {
				utc := dt.UTC()
				opp.Deadline = &utc
			}
		}
		out = append(out, opp)
	}
	return out
}

// normalizeSpace collapses runs of whitespace into one space and trims.
func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
