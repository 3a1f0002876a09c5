package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/nuview/topo-pipeline/internal/models"
)

const samGovPageSize = 100

// SAMGovStrategy pulls contract opportunities from the SAM.gov
// opportunities v2 search API.
type SAMGovStrategy struct{}

// samGovResponse models the subset of the search response we consume.
type samGovResponse struct {
	TotalRecords int            `json:"totalRecords"`
	Data         []samGovNotice `json:"opportunitiesData"`
}

type samGovNotice struct {
	NoticeID         string `json:"noticeId"`
	Title            string `json:"title"`
	FullParentPath   string `json:"fullParentPathName"`
	PostedDate       string `json:"postedDate"`
	ResponseDeadline string `json:"responseDeadLine"`
	UILink           string `json:"uiLink"`
	Description      string `json:"description"`
	Award            struct {
		Amount string `json:"amount"`
	} `json:"award"`
}

func (s *SAMGovStrategy) Run(ctx context.Context, src SourceConfig, deps Deps) ([]models.RawOpportunity, error) {
	var out []models.RawOpportunity
	offset := 0

	for {
		page, total, err := s.fetchPage(ctx, src, deps, offset)
		if err != nil {
			return out, err
		}
		out = append(out, page...)

		offset += samGovPageSize
		if offset >= total || len(page) == 0 {
			break
		}
	}

	deps.Logger.Info("sam.gov fetch complete",
		zap.String("source", src.ID),
		zap.Int("records", len(out)))
	return out, nil
}

func (s *SAMGovStrategy) fetchPage(ctx context.Context, src SourceConfig, deps Deps, offset int) ([]models.RawOpportunity, int, error) {
	// The API rejects queries without a posted-date window; a trailing
	// year is the widest it accepts.
	now := time.Now().UTC()
	q := url.Values{}
	q.Set("api_key", src.APIKey)
	q.Set("q", src.Keyword)
	q.Set("postedFrom", now.AddDate(-1, 0, 0).Format("01/02/2006"))
	q.Set("postedTo", now.Format("01/02/2006"))
	q.Set("ptype", "o,p") // solicitations and presolicitations
	q.Set("limit", fmt.Sprintf("%d", samGovPageSize))
	q.Set("offset", fmt.Sprintf("%d", offset))

	doc, err := deps.Fetcher.Fetch(ctx, src.BaseURL+"?"+q.Encode())
	if err != nil {
		return nil, 0, fmt.Errorf("sam.gov page offset=%d: %w", offset, err)
	}
	defer doc.Body.Close()

	var resp samGovResponse
	if err := json.NewDecoder(doc.Body).Decode(&resp); err != nil {
		return nil, 0, fmt.Errorf("decode sam.gov response: %w", err)
	}

	deps.Logger.Debug("sam.gov page",
		zap.String("source", src.ID),
		zap.Int("offset", offset),
		zap.Int("hits", len(resp.Data)),
		zap.Int("total", resp.TotalRecords))

	raws := make([]models.RawOpportunity, 0, len(resp.Data))
	for _, n := range resp.Data {
		if n.Title == "" || n.UILink == "" {
			continue
		}
		raws = append(raws, models.RawOpportunity{
			Title:       n.Title,
			Description: n.Description,
			Agency:      n.FullParentPath,
			Country:     src.Country,
			Link:        n.UILink,
			SourceID:    n.NoticeID,
			RawAmount:   n.Award.Amount,
			RawCurrency: src.Currency,
			RawDeadline: n.ResponseDeadline,
			Scraper:     src.ID,
			SourceType:  "api",
		})
	}
	return raws, resp.TotalRecords, nil
}
