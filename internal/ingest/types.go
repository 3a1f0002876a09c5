// Package ingest fetches opportunity records from configured sources and
// normalizes them into canonical form. Each source declares a strategy
// in the registry; strategies share a retrying HTTP fetcher.
package ingest

import (
	"context"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/nuview/topo-pipeline/internal/models"
)

// FetchedDocument is the raw result of a fetch operation. The caller
// owns Body and must close it.
type FetchedDocument struct {
	URL         string
	StatusCode  int
	ContentType string
	Body        io.ReadCloser
	FetchedAt   time.Time
	Headers     map[string][]string
}

// Fetcher retrieves raw content from a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*FetchedDocument, error)
}

// Deps bundles the shared resources a strategy runs with.
type Deps struct {
	Fetcher Fetcher
	Logger  *zap.Logger
}

// Strategy pulls raw records for one configured source. Implementations
// must respect ctx and return whatever they collected before an error;
// the dispatcher records partial results alongside the failure.
type Strategy interface {
	Run(ctx context.Context, src SourceConfig, deps Deps) ([]models.RawOpportunity, error)
}
