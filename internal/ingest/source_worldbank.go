package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"go.uber.org/zap"

	"github.com/nuview/topo-pipeline/internal/models"
)

const worldBankPageSize = 100

// WorldBankStrategy pulls procurement notices from the World Bank
// procnotices search API.
type WorldBankStrategy struct{}

type worldBankResponse struct {
	Total   int                        `json:"total"`
	Notices map[string]worldBankNotice `json:"procnotices"`
}

type worldBankNotice struct {
	ID             string `json:"id"`
	BidDescription string `json:"bid_description"`
	NoticeType     string `json:"notice_type"`
	ProjectCountry string `json:"project_ctry_name"`
	BuyerName      string `json:"contact_organization"`
	DeadlineDate   string `json:"submission_deadline_date"`
	NoticeLang     string `json:"notice_lang_name"`
	URL            string `json:"url"`
}

func (s *WorldBankStrategy) Run(ctx context.Context, src SourceConfig, deps Deps) ([]models.RawOpportunity, error) {
	var out []models.RawOpportunity
	offset := 0

	for {
		page, total, err := s.fetchPage(ctx, src, deps, offset)
		if err != nil {
			return out, err
		}
		out = append(out, page...)

		offset += worldBankPageSize
		if offset >= total || len(page) == 0 {
			break
		}
	}

	deps.Logger.Info("world bank fetch complete",
		zap.String("source", src.ID),
		zap.Int("records", len(out)))
	return out, nil
}

func (s *WorldBankStrategy) fetchPage(ctx context.Context, src SourceConfig, deps Deps, offset int) ([]models.RawOpportunity, int, error) {
	q := url.Values{}
	q.Set("format", "json")
	q.Set("qterm", src.Keyword)
	q.Set("rows", fmt.Sprintf("%d", worldBankPageSize))
	q.Set("os", fmt.Sprintf("%d", offset))

	doc, err := deps.Fetcher.Fetch(ctx, src.BaseURL+"?"+q.Encode())
	if err != nil {
		return nil, 0, fmt.Errorf("world bank page os=%d: %w", offset, err)
	}
	defer doc.Body.Close()

	var resp worldBankResponse
	if err := json.NewDecoder(doc.Body).Decode(&resp); err != nil {
		return nil, 0, fmt.Errorf("decode world bank response: %w", err)
	}

	raws := make([]models.RawOpportunity, 0, len(resp.Notices))
	for _, n := range resp.Notices {
		if n.BidDescription == "" {
			continue
		}
		link := n.URL
		if link == "" {
			link = fmt.Sprintf("https://projects.worldbank.org/en/projects-operations/procurement-detail/%s", n.ID)
		}
		country := n.ProjectCountry
		if country == "" {
			country = src.Country
		}
		raws = append(raws, models.RawOpportunity{
			Title:       n.BidDescription,
			Agency:      n.BuyerName,
			Country:     country,
			Link:        link,
			SourceID:    n.ID,
			RawCurrency: src.Currency,
			RawDeadline: n.DeadlineDate,
			Scraper:     src.ID,
			SourceType:  "api",
		})
	}

	deps.Logger.Debug("world bank page",
		zap.String("source", src.ID),
		zap.Int("offset", offset),
		zap.Int("hits", len(raws)),
		zap.Int("total", resp.Total))

	return raws, resp.Total, nil
}
