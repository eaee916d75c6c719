package client

import (
	"context"
	"fmt"

	"github.com/UnknownOlympus/aquifer/internal/errs"
	"github.com/UnknownOlympus/aquifer/internal/models"
)

const (
	fieldSampleSiteName = "provplatsnamn"
	fieldSamplingDate   = "provtagningsdat"
	fieldParameterShort = "param_kort"

	collectionSites   = "provplatser"
	collectionResults = "analysresultat"
)

// ChemistryClient reads groundwater chemistry sampling sites and analysis results.
type ChemistryClient struct {
	api *api
}

func (c *ChemistryClient) nameColumn(field NameField) string {
	if field == BySiteName {
		return fieldSampleSiteName
	}
	return fieldStationID
}

// GetSamplingSites lists sampling sites.
func (c *ChemistryClient) GetSamplingSites(ctx context.Context, q models.Query) (*models.FeatureCollection, error) {
	return c.api.list(ctx, collectionSites, q)
}

// GetSamplingSite fetches one sampling site by feature id.
func (c *ChemistryClient) GetSamplingSite(ctx context.Context, id string) (*models.Feature, error) {
	return c.api.item(ctx, collectionSites, "sampling site", id)
}

// GetSamplingSiteByName returns the single site with the given station id or site name.
func (c *ChemistryClient) GetSamplingSiteByName(
	ctx context.Context,
	field NameField,
	name string,
) (*models.Feature, error) {
	if err := requireNames([]string{name}); err != nil {
		return nil, err
	}
	return c.api.one(ctx, collectionSites, "sampling site", Eq(c.nameColumn(field), name))
}

// GetSamplingSitesByNames returns the sites matching any of names, skipping misses.
func (c *ChemistryClient) GetSamplingSitesByNames(
	ctx context.Context,
	field NameField,
	names []string,
	q models.Query,
) (*models.FeatureCollection, error) {
	if err := requireNames(names); err != nil {
		return nil, err
	}
	return c.api.list(ctx, collectionSites, filtered(q, In(c.nameColumn(field), names)))
}

// GetAnalysisResults lists analysis results.
func (c *ChemistryClient) GetAnalysisResults(ctx context.Context, q models.Query) (*models.FeatureCollection, error) {
	return c.api.list(ctx, collectionResults, q)
}

// GetAnalysisResult fetches one analysis result by feature id.
func (c *ChemistryClient) GetAnalysisResult(ctx context.Context, id string) (*models.Feature, error) {
	return c.api.item(ctx, collectionResults, "analysis result", id)
}

// GetResultsBySite returns the analysis results of one site sampled inside r,
// narrowed by q. No result is *errs.NotFoundError.
func (c *ChemistryClient) GetResultsBySite(
	ctx context.Context,
	field NameField,
	name string,
	r Range,
	q models.Query,
) (*models.FeatureCollection, error) {
	if err := requireNames([]string{name}); err != nil {
		return nil, err
	}

	stationID := name
	if field == BySiteName {
		c.api.log.WarnContext(ctx,
			"Looking up results by site name needs an extra request, prefer the station id",
			"site_name", name)
		site, err := c.GetSamplingSiteByName(ctx, BySiteName, name)
		if err != nil {
			return nil, err
		}
		if stationID = site.StringProperty(fieldStationID); stationID == "" {
			return nil, errs.Validation(fieldStationID, fmt.Sprintf("site %q has no station id", name), nil)
		}
	}

	conditions := append([]string{Eq(fieldStationID, stationID)}, r.filters(fieldSamplingDate)...)
	q = filtered(q, conditions...)
	fc, err := c.api.list(ctx, collectionResults, q)
	if err != nil {
		return nil, err
	}
	if fc.Len() == 0 {
		return nil, &errs.NotFoundError{Resource: "analysis results", Key: q.Filter}
	}
	return fc, nil
}

// GetResultsBySites returns the analysis results of several sites sampled inside r.
func (c *ChemistryClient) GetResultsBySites(
	ctx context.Context,
	field NameField,
	names []string,
	r Range,
	q models.Query,
) (*models.FeatureCollection, error) {
	if err := requireNames(names); err != nil {
		return nil, err
	}

	ids := names
	if field == BySiteName {
		c.api.log.WarnContext(ctx,
			"Looking up results by site names needs an extra request, prefer station ids",
			"site_names", names)
		sites, err := c.GetSamplingSitesByNames(ctx, BySiteName, names, models.Query{})
		if err != nil {
			return nil, err
		}
		if ids, err = stationIDs(sites); err != nil {
			return nil, err
		}
		if len(ids) == 0 {
			return emptyCollection(), nil
		}
	}

	conditions := append([]string{In(fieldStationID, ids)}, r.filters(fieldSamplingDate)...)
	return c.api.list(ctx, collectionResults, filtered(q, conditions...))
}

// GetResultsByParameter returns the results of one chemical parameter (its
// short name, e.g. "PH" or "NITRAT"), optionally restricted to stations.
func (c *ChemistryClient) GetResultsByParameter(
	ctx context.Context,
	parameter string,
	stations []string,
	r Range,
	q models.Query,
) (*models.FeatureCollection, error) {
	if parameter == "" {
		return nil, fmt.Errorf("%w: empty parameter", errs.ErrInvalidArgument)
	}

	conditions := []string{Eq(fieldParameterShort, parameter)}
	if len(stations) == 1 {
		conditions = append(conditions, Eq(fieldStationID, stations[0]))
	} else if len(stations) > 1 {
		conditions = append(conditions, In(fieldStationID, stations))
	}
	conditions = append(conditions, r.filters(fieldSamplingDate)...)

	return c.api.list(ctx, collectionResults, filtered(q, conditions...))
}
