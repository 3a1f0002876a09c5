package ingest

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/nuview/topo-pipeline/internal/models"
)

// HTMLListingStrategy scrapes tender listing pages with Colly. The
// source config supplies CSS selectors for the listing rows and an
// optional next-page selector for pagination.
type HTMLListingStrategy struct{}

func (s *HTMLListingStrategy) Run(ctx context.Context, src SourceConfig, deps Deps) ([]models.RawOpportunity, error) {
	maxPages := src.MaxPages
	if maxPages == 0 {
		maxPages = 1
	}

	parsedURL, err := url.Parse(src.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	delay := 1 * time.Second
	if src.Fetch.RateLimitRPS > 0 {
		delay = time.Duration(float64(time.Second) / src.Fetch.RateLimitRPS)
	}
	timeout := 30 * time.Second
	if src.Fetch.TimeoutSeconds > 0 {
		timeout = time.Duration(src.Fetch.TimeoutSeconds) * time.Second
	}

	collector := colly.NewCollector(
		colly.AllowedDomains(parsedURL.Host),
		colly.UserAgent(defaultUserAgent),
		colly.DetectCharset(),
	)
	collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 1,
		Delay:       delay,
		RandomDelay: delay / 2,
	})
	collector.SetRequestTimeout(timeout)

	var (
		raws        []models.RawOpportunity
		nextPageURL string
	)

	sel := src.Selectors
	collector.OnHTML(sel.Container, func(e *colly.HTMLElement) {
		title := strings.TrimSpace(e.ChildText(sel.Title))

		linkAttr := sel.LinkAttr
		if linkAttr == "" {
			linkAttr = "href"
		}
		var link string
		if sel.Link == "" || sel.Link == "." {
			link = strings.TrimSpace(e.Attr(linkAttr))
		} else {
			link = strings.TrimSpace(e.ChildAttr(sel.Link, linkAttr))
		}

		if title == "" || link == "" {
			return
		}

		raw := models.RawOpportunity{
			Title:       title,
			Link:        CanonicalizeURL(e.Request.AbsoluteURL(link)),
			Country:     src.Country,
			RawCurrency: src.Currency,
			Scraper:     src.ID,
			SourceType:  "html",
		}
		if sel.Agency != "" {
			raw.Agency = strings.TrimSpace(e.ChildText(sel.Agency))
		}
		if sel.Content != "" {
			raw.Description = strings.TrimSpace(e.ChildText(sel.Content))
		}
		if sel.Deadline != "" {
			raw.RawDeadline = strings.TrimSpace(e.ChildText(sel.Deadline))
		}
		if sel.Amount != "" {
			raw.RawAmount = strings.TrimSpace(e.ChildText(sel.Amount))
		}

		raws = append(raws, raw)
	})

	if src.Pagination.Next != "" {
		collector.OnHTML(src.Pagination.Next, func(e *colly.HTMLElement) {
			nextPageURL = e.Request.AbsoluteURL(e.Attr("href"))
		})
	}

	var fetchErr error
	collector.OnError(func(r *colly.Response, err error) {
		deps.Logger.Warn("listing fetch error",
			zap.String("source", src.ID),
			zap.String("url", r.Request.URL.String()),
			zap.Error(err))
		fetchErr = err
	})

	visited := make(map[string]bool)
	currentURL := src.BaseURL

	for page := 0; page < maxPages; page++ {
		if err := ctx.Err(); err != nil {
			return raws, err
		}

		canonPage := CanonicalizeURL(currentURL)
		if visited[canonPage] {
			deps.Logger.Warn("pagination cycle detected",
				zap.String("source", src.ID),
				zap.String("url", canonPage))
			break
		}
		visited[canonPage] = true

		deps.Logger.Debug("fetching listing page",
			zap.String("source", src.ID),
			zap.Int("page", page+1),
			zap.String("url", currentURL))

		nextPageURL = ""
		if err := collector.Visit(currentURL); err != nil {
			return raws, fmt.Errorf("visit %s: %w", currentURL, err)
		}
		collector.Wait()

		if nextPageURL == "" || src.Pagination.Next == "" {
			break
		}
		currentURL = nextPageURL
	}

	if len(raws) == 0 && fetchErr != nil {
		return nil, fetchErr
	}
	return raws, nil
}

// CanonicalizeURL lowercases the host and strips fragments and common
// tracking parameters so record IDs stay stable across runs.
func CanonicalizeURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	q := u.Query()
	for k := range q {
		if strings.HasPrefix(k, "utm_") {
			q.Del(k)
		}
	}
	for _, p := range []string{"fbclid", "gclid", "mc_cid", "mc_eid", "mkt_tok", "ref", "session"} {
		q.Del(p)
	}
	u.RawQuery = q.Encode()

	return u.String()
}
