package models

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
	"time"
)

// Category buckets an opportunity by the kind of work being procured.
// The set is closed at build time; scoring tables key off these values.
type Category string

const (
	CategoryDaaS     Category = "DaaS"
	CategoryRnD      Category = "R&D"
	CategoryPlatform Category = "Platform"
)

// Urgency buckets an opportunity by time-to-deadline.
type Urgency string

const (
	UrgencyUrgent Urgency = "urgent"
	UrgencyNear   Urgency = "near"
	UrgencyFuture Urgency = "future"
)

// ValueTier buckets an opportunity by normalized funding amount.
type ValueTier string

const (
	TierHigh   ValueTier = "high"
	TierMedium ValueTier = "medium"
	TierLow    ValueTier = "low"
)

// Provenance records where and when a record was scraped.
type Provenance struct {
	Scraper    string    `json:"scraper"`
	SourceType string    `json:"sourceType"`
	Country    string    `json:"country"`
	ScrapedAt  time.Time `json:"scrapedAt"`
}

// Opportunity is one contract/grant/tender record being tracked.
// Fetchers create it raw; the classifier fills Category, Urgency and
// PriorityScore; the validator sets SourceVerified. Records are never
// mutated after the output writer persists a snapshot.
type Opportunity struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Description    string     `json:"description,omitempty"`
	Agency         string     `json:"agency"`
	Country        string     `json:"country"`
	Category       Category   `json:"category"`
	Urgency        Urgency    `json:"urgency"`
	AmountUSD      *int64     `json:"amountUSD"`
	Deadline       *time.Time `json:"deadline"`
	Link           string     `json:"link"`
	PriorityScore  int        `json:"priorityScore"`
	SourceVerified bool       `json:"sourceVerified"`
	Provenance     Provenance `json:"provenance"`
}

// RawOpportunity is the untrusted record a fetcher hands to the
// normalizer. Amounts and dates are kept as source strings here; the
// normalizer converts them exactly once so nothing downstream deals
// with loose text.
type RawOpportunity struct {
	Title       string
	Description string
	Agency      string
	Country     string
	Link        string
	SourceID    string // source-assigned ID if the API provides one
	RawAmount   string
	RawCurrency string
	RawDeadline string
	Scraper     string
	SourceType  string
}

// GenerateID derives a stable 12-hex-char record ID from a key, so a
// record keeps its identity across runs. The key is normally the link;
// records without one key off title and agency instead, so two linkless
// records never share an ID.
func GenerateID(key string) string {
	sum := md5.Sum([]byte(key))
	return hex.EncodeToString(sum[:])[:12]
}

// IDKey picks the identity key for a raw record.
func (r *RawOpportunity) IDKey() string {
	if r.Link != "" {
		return r.Link
	}
	return strings.ToLower(r.Title) + "|" + strings.ToLower(r.Agency)
}

// DaysUntil returns whole days between now and the deadline, and false
// when no deadline is set.
func (o *Opportunity) DaysUntil(now time.Time) (int, bool) {
	if o.Deadline == nil {
		return 0, false
	}
	return int(o.Deadline.Sub(now).Hours() / 24), true
}
