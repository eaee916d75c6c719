// Package client exposes typed access to the SGU groundwater APIs: observed
// levels, modeled levels and groundwater chemistry.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/UnknownOlympus/aquifer/internal/config"
	"github.com/UnknownOlympus/aquifer/internal/errs"
	"github.com/UnknownOlympus/aquifer/internal/metrics"
	"github.com/UnknownOlympus/aquifer/internal/models"
	"github.com/UnknownOlympus/aquifer/internal/pagination"
	"github.com/UnknownOlympus/aquifer/internal/transport"
	"github.com/prometheus/client_golang/prometheus"
)

// Collection roots below the base URL.
const (
	ObservedRoot  = "grundvattennivaer-observerade/ogc/features/v1"
	ModeledRoot   = "grundvattennivaer-sgu-hype-omraden/ogc/features/v1"
	ChemistryRoot = "grundvattenkvalitet-analysresultat-provplatser/ogc/features/v1"
)

// ErrAmbiguousMatch is returned when a single-name lookup matches more than one record.
var ErrAmbiguousMatch = errors.New("lookup matched more than one record")

// NameField selects which property a name lookup compares against.
type NameField int

const (
	// ByStationID matches the station identifier (platsbeteckning).
	ByStationID NameField = iota
	// BySiteName matches the human readable site name.
	BySiteName
)

// Client bundles the domain clients over one shared transport.
type Client struct {
	Observed  *ObservedClient
	Modeled   *ModeledClient
	Chemistry *ChemistryClient

	transport *transport.Client
	metrics   *metrics.Metrics
}

type options struct {
	httpClient transport.HTTPClient
	log        *slog.Logger
	registry   prometheus.Registerer
}

// Option customises New.
type Option func(*options)

// WithHTTPClient replaces the net/http client, mainly for tests.
func WithHTTPClient(c transport.HTTPClient) Option {
	return func(o *options) { o.httpClient = c }
}

// WithLogger sets the logger, slog.Default otherwise.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithRegistry registers the client metrics on reg instead of a private registry.
func WithRegistry(reg prometheus.Registerer) Option {
	return func(o *options) { o.registry = reg }
}

// New builds a client from cfg. A nil cfg uses config.Default.
func New(cfg *config.Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = slog.Default()
	}

	m := metrics.NewMetrics(o.registry)
	tcfg := transport.Config{
		BaseURL:      cfg.BaseURL,
		Timeout:      cfg.Timeout,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
		RateLimit:    cfg.RateLimit,
		UserAgent:    cfg.UserAgent,
		Debug:        cfg.Debug,
	}

	var (
		tr  *transport.Client
		err error
	)
	if o.httpClient != nil {
		tr, err = transport.NewWithClient(o.httpClient, tcfg, o.log, m)
	} else {
		tr, err = transport.New(tcfg, o.log, m)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create transport: %w", err)
	}

	pager := pagination.New(tr, o.log, m)
	newAPI := func(root string) *api {
		return &api{root: root, transport: tr, pager: pager, log: o.log, maxFeatures: cfg.MaxFeatures}
	}

	return &Client{
		Observed:  &ObservedClient{api: newAPI(ObservedRoot)},
		Modeled:   &ModeledClient{api: newAPI(ModeledRoot)},
		Chemistry: &ChemistryClient{api: newAPI(ChemistryRoot)},
		transport: tr,
		metrics:   m,
	}, nil
}

// Transport returns the shared transport, e.g. for a geocoder.
func (c *Client) Transport() *transport.Client { return c.transport }

// Metrics returns the collectors updated by the client.
func (c *Client) Metrics() *metrics.Metrics { return c.metrics }

// api is one OGC API Features root and the operations shared by all domains.
type api struct {
	root        string
	transport   *transport.Client
	pager       *pagination.Aggregator
	log         *slog.Logger
	maxFeatures int
}

func (a *api) itemsPath(collection string) string {
	return a.root + "/collections/" + collection + "/items"
}

// list fetches every page of collection matching q. The result is limited to
// q.Limit, or to the configured safety cap when q.Limit is 0.
func (a *api) list(ctx context.Context, collection string, q models.Query) (*models.FeatureCollection, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	limit := q.Limit
	if limit == 0 {
		limit = a.maxFeatures
	}
	fc, err := a.pager.FetchAll(ctx, a.itemsPath(collection), q.Values(), limit)
	if err != nil {
		return nil, err
	}
	if err = checkSchema(collection, fc.Features...); err != nil {
		return nil, err
	}
	return fc, nil
}

// item fetches items/{id}. The SGU APIs answer with either a Feature or a
// one-element FeatureCollection.
func (a *api) item(ctx context.Context, collection, resource, id string) (*models.Feature, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty %s id", errs.ErrInvalidArgument, resource)
	}

	body, err := a.transport.Get(ctx, a.itemsPath(collection)+"/"+url.PathEscape(id), nil)
	if err != nil {
		var apiErr *errs.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, &errs.NotFoundError{Resource: resource, Key: id}
		}
		return nil, err
	}

	var head struct {
		Type string `json:"type"`
	}
	if err = json.Unmarshal(body, &head); err != nil {
		return nil, errs.Validation("", "body is not a GeoJSON object", err)
	}
	if head.Type == "Feature" {
		var f models.Feature
		if err = json.Unmarshal(body, &f); err != nil {
			return nil, err
		}
		if err = checkSchema(collection, f); err != nil {
			return nil, err
		}
		return &f, nil
	}

	fc, err := models.ParseFeatureCollection(body)
	if err != nil {
		return nil, err
	}
	if err = checkSchema(collection, fc.Features...); err != nil {
		return nil, err
	}
	return single(fc, resource, id)
}

// one runs a filtered query that must match exactly one record.
func (a *api) one(ctx context.Context, collection, resource, filter string) (*models.Feature, error) {
	const enough = 2 // a second match means ambiguous

	fc, err := a.list(ctx, collection, models.Query{Filter: filter, Limit: enough})
	if err != nil {
		return nil, err
	}
	return single(fc, resource, filter)
}

func single(fc *models.FeatureCollection, resource, key string) (*models.Feature, error) {
	switch fc.Len() {
	case 0:
		return nil, &errs.NotFoundError{Resource: resource, Key: key}
	case 1:
		return &fc.Features[0], nil
	default:
		return nil, fmt.Errorf("%w: %d %s records for %s", ErrAmbiguousMatch, fc.Len(), resource, key)
	}
}

// filtered returns q with conditions ANDed in front of its own filter.
func filtered(q models.Query, conditions ...string) models.Query {
	q.Filter = And(append(conditions, q.Filter)...)
	return q
}

func requireNames(names []string) error {
	if len(names) == 0 {
		return fmt.Errorf("%w: at least one name must be provided", errs.ErrInvalidArgument)
	}
	for _, n := range names {
		if n == "" {
			return fmt.Errorf("%w: names must not be empty", errs.ErrInvalidArgument)
		}
	}
	return nil
}

// stationIDs collects the station ids of resolved sites. A site without one is
// a *errs.ValidationError.
func stationIDs(fc *models.FeatureCollection) ([]string, error) {
	ids := make([]string, 0, fc.Len())
	for _, f := range fc.Features {
		id := f.StringProperty(fieldStationID)
		if id == "" {
			return nil, errs.Validation(fieldStationID, fmt.Sprintf("site %q has no station id", f.ID), nil)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
