// Package pagination aggregates paged OGC API Features responses by following
// "next" links until the server stops offering them or a result limit is reached.
package pagination

import (
	"context"
	"log/slog"
	"net/url"

	"github.com/UnknownOlympus/aquifer/internal/metrics"
	"github.com/UnknownOlympus/aquifer/internal/models"
)

// Fetcher returns the raw body for a reference. *transport.Client satisfies it.
type Fetcher interface {
	Get(ctx context.Context, ref string, query url.Values) ([]byte, error)
}

// Aggregator collects every page of a query into one FeatureCollection.
type Aggregator struct {
	fetcher Fetcher
	log     *slog.Logger
	metrics *metrics.Metrics
}

// New creates an Aggregator. A nil logger uses slog.Default, nil metrics a private registry.
func New(fetcher Fetcher, log *slog.Logger, m *metrics.Metrics) *Aggregator {
	if log == nil {
		log = slog.Default()
	}
	if m == nil {
		m = metrics.NewMetrics(nil)
	}
	return &Aggregator{fetcher: fetcher, log: log, metrics: m}
}

// FetchAll requests path with query, then follows next links verbatim.
//
// A resultLimit <= 0 means unlimited; otherwise the result holds exactly
// min(resultLimit, available) features, the last page being truncated.
// Aggregation also ends on an empty page or a next link that was already visited.
// Any page failure discards the partial result and returns the error unchanged.
//
// The result keeps the first page's metadata without its next link, and
// NumberReturned is the aggregated count.
func (a *Aggregator) FetchAll(
	ctx context.Context,
	path string,
	query url.Values,
	resultLimit int,
) (*models.FeatureCollection, error) {
	page, err := a.fetchPage(ctx, path, query)
	if err != nil {
		return nil, err
	}

	result := &models.FeatureCollection{
		Features:      make([]models.Feature, 0, len(page.Features)),
		Links:         withoutNext(page.Links),
		NumberMatched: page.NumberMatched,
		TimeStamp:     page.TimeStamp,
		CRS:           page.CRS,
	}

	var (
		pages      = 1
		duplicates = 0
		seen       = make(map[string]struct{})
		visited    = map[string]struct{}{path: {}}
	)

	for {
		features := page.Features
		if resultLimit > 0 && len(result.Features)+len(features) > resultLimit {
			features = features[:resultLimit-len(result.Features)]
		}
		for _, f := range features {
			if f.ID != "" {
				if _, dup := seen[f.ID]; dup {
					duplicates++
				}
				seen[f.ID] = struct{}{}
			}
		}
		result.Features = append(result.Features, features...)

		a.log.DebugContext(ctx, "Fetched page",
			"path", path,
			"page", pages,
			"features", len(page.Features),
			"total", len(result.Features))

		if len(page.Features) == 0 {
			break
		}
		next, ok := page.Next()
		if !ok {
			break
		}
		if resultLimit > 0 && len(result.Features) >= resultLimit {
			break
		}
		if _, loop := visited[next]; loop {
			a.log.WarnContext(ctx, "Next link points to an already visited page, stopping", "next", next)
			break
		}
		visited[next] = struct{}{}

		if page, err = a.fetchPage(ctx, next, nil); err != nil {
			return nil, err
		}
		pages++
	}

	if duplicates > 0 {
		a.log.WarnContext(ctx, "Duplicate feature IDs across pages",
			"path", path,
			"duplicates", duplicates,
			"pages", pages)
	}

	returned := len(result.Features)
	result.NumberReturned = &returned
	a.metrics.FeaturesFetched.Add(float64(returned))

	return result, nil
}

func (a *Aggregator) fetchPage(ctx context.Context, ref string, query url.Values) (*models.FeatureCollection, error) {
	body, err := a.fetcher.Get(ctx, ref, query)
	if err != nil {
		return nil, err
	}
	page, err := models.ParseFeatureCollection(body)
	if err != nil {
		return nil, err
	}
	a.metrics.PagesFetched.Inc()
	return page, nil
}

func withoutNext(links []models.Link) []models.Link {
	out := make([]models.Link, 0, len(links))
	for _, l := range links {
		if l.Rel != models.RelNext {
			out = append(out, l)
		}
	}
	return out
}
