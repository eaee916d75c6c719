package client

import (
	"context"
	"fmt"

	"github.com/UnknownOlympus/aquifer/internal/errs"
	"github.com/UnknownOlympus/aquifer/internal/models"
)

// Property names shared by several collections.
const (
	fieldStationID       = "platsbeteckning"
	fieldObservedName    = "obsplatsnamn"
	fieldObservationDate = "obsdatum"
)

const (
	collectionStations     = "stationer"
	collectionMeasurements = "nivaer"
)

// ObservedClient reads observed groundwater stations and level measurements.
type ObservedClient struct {
	api *api
}

func (c *ObservedClient) nameColumn(field NameField) string {
	if field == BySiteName {
		return fieldObservedName
	}
	return fieldStationID
}

// GetStations lists monitoring stations.
func (c *ObservedClient) GetStations(ctx context.Context, q models.Query) (*models.FeatureCollection, error) {
	return c.api.list(ctx, collectionStations, q)
}

// GetStation fetches one station by feature id.
func (c *ObservedClient) GetStation(ctx context.Context, id string) (*models.Feature, error) {
	return c.api.item(ctx, collectionStations, "station", id)
}

// GetStationByName returns the single station whose identifier or site name
// equals name. No match is *errs.NotFoundError, several are ErrAmbiguousMatch.
func (c *ObservedClient) GetStationByName(ctx context.Context, field NameField, name string) (*models.Feature, error) {
	if err := requireNames([]string{name}); err != nil {
		return nil, err
	}
	return c.api.one(ctx, collectionStations, "station", Eq(c.nameColumn(field), name))
}

// GetStationsByNames returns the stations matching any of names, narrowed by q.
// Names without a match are skipped; an empty result is not an error.
func (c *ObservedClient) GetStationsByNames(
	ctx context.Context,
	field NameField,
	names []string,
	q models.Query,
) (*models.FeatureCollection, error) {
	if err := requireNames(names); err != nil {
		return nil, err
	}
	return c.api.list(ctx, collectionStations, filtered(q, In(c.nameColumn(field), names)))
}

// GetMeasurements lists level measurements.
func (c *ObservedClient) GetMeasurements(ctx context.Context, q models.Query) (*models.FeatureCollection, error) {
	return c.api.list(ctx, collectionMeasurements, q)
}

// GetMeasurement fetches one measurement by feature id.
func (c *ObservedClient) GetMeasurement(ctx context.Context, id string) (*models.Feature, error) {
	return c.api.item(ctx, collectionMeasurements, "measurement", id)
}

// GetMeasurementsByName returns the measurements of one station inside r,
// narrowed by q. A site name is first resolved to its station id with an extra request.
// No measurement at all is *errs.NotFoundError.
func (c *ObservedClient) GetMeasurementsByName(
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
			"Looking up measurements by site name needs an extra request, prefer the station id",
			"site_name", name)
		station, err := c.GetStationByName(ctx, BySiteName, name)
		if err != nil {
			return nil, err
		}
		if stationID = station.StringProperty(fieldStationID); stationID == "" {
			return nil, errs.Validation(fieldStationID, fmt.Sprintf("station %q has no station id", name), nil)
		}
	}

	conditions := append([]string{Eq(fieldStationID, stationID)}, r.filters(fieldObservationDate)...)
	q = filtered(q, conditions...)
	fc, err := c.api.list(ctx, collectionMeasurements, q)
	if err != nil {
		return nil, err
	}
	if fc.Len() == 0 {
		return nil, &errs.NotFoundError{Resource: "measurements", Key: q.Filter}
	}
	return fc, nil
}

// GetMeasurementsByNames returns the measurements of several stations inside r,
// narrowed by q. Stations without measurements are skipped without error.
func (c *ObservedClient) GetMeasurementsByNames(
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
			"Looking up measurements by site names needs an extra request, prefer station ids",
			"site_names", names)
		stations, err := c.GetStationsByNames(ctx, BySiteName, names, models.Query{})
		if err != nil {
			return nil, err
		}
		if ids, err = stationIDs(stations); err != nil {
			return nil, err
		}
		if len(ids) == 0 {
			return emptyCollection(), nil
		}
	}

	conditions := append([]string{In(fieldStationID, ids)}, r.filters(fieldObservationDate)...)
	return c.api.list(ctx, collectionMeasurements, filtered(q, conditions...))
}

func emptyCollection() *models.FeatureCollection {
	zero := 0
	return &models.FeatureCollection{Features: []models.Feature{}, NumberReturned: &zero}
}
