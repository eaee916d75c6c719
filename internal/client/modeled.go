package client

import (
	"context"
	"fmt"

	"github.com/UnknownOlympus/aquifer/internal/errs"
	"github.com/UnknownOlympus/aquifer/internal/models"
)

const (
	fieldAreaID = "omrade_id"

	collectionAreas  = "omraden"
	collectionLevels = "grundvattennivaer-tidigare"
)

// DefaultBuffer is the half-width in degrees of the box searched around a point.
const DefaultBuffer = 0.01

// Geocoder resolves a place name to coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (*models.Coordinates, error)
}

// ModeledClient reads SGU-HYPE modeled groundwater areas and levels.
type ModeledClient struct {
	api *api
}

// GetAreas lists the modelling areas.
func (c *ModeledClient) GetAreas(ctx context.Context, q models.Query) (*models.FeatureCollection, error) {
	return c.api.list(ctx, collectionAreas, q)
}

// GetArea fetches one area by feature id.
func (c *ModeledClient) GetArea(ctx context.Context, id string) (*models.Feature, error) {
	return c.api.item(ctx, collectionAreas, "modeled area", id)
}

// GetLevels lists modeled levels.
func (c *ModeledClient) GetLevels(ctx context.Context, q models.Query) (*models.FeatureCollection, error) {
	return c.api.list(ctx, collectionLevels, q)
}

// GetLevel fetches one modeled level by feature id.
func (c *ModeledClient) GetLevel(ctx context.Context, id string) (*models.Feature, error) {
	return c.api.item(ctx, collectionLevels, "modeled level", id)
}

// GetLevelsByArea lists the modeled levels of one area. q.Filter, if any, is ANDed.
func (c *ModeledClient) GetLevelsByArea(
	ctx context.Context,
	areaID int,
	q models.Query,
) (*models.FeatureCollection, error) {
	return c.api.list(ctx, collectionLevels, filtered(q, EqInt(fieldAreaID, areaID)))
}

// GetLevelsByAreas lists the modeled levels of several areas.
func (c *ModeledClient) GetLevelsByAreas(
	ctx context.Context,
	ids []int,
	q models.Query,
) (*models.FeatureCollection, error) {
	switch len(ids) {
	case 0:
		return nil, fmt.Errorf("%w: at least one area id must be provided", errs.ErrInvalidArgument)
	case 1:
		return c.GetLevelsByArea(ctx, ids[0], q)
	}
	return c.api.list(ctx, collectionLevels, filtered(q, InInts(fieldAreaID, ids)))
}

// GetLevelsByCoords finds the areas intersecting a box of +/- buffer degrees
// around the point and lists their modeled levels. A buffer <= 0 uses
// DefaultBuffer. No area is *errs.NotFoundError; several areas are logged.
func (c *ModeledClient) GetLevelsByCoords(
	ctx context.Context,
	lat, lon, buffer float64,
	q models.Query,
) (*models.FeatureCollection, error) {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	box := models.Around(lat, lon, buffer)
	if err := box.Validate(); err != nil {
		return nil, err
	}

	areas, err := c.GetAreas(ctx, models.Query{BBox: &box})
	if err != nil {
		return nil, err
	}
	ids, err := areaIDs(areas)
	if err != nil {
		return nil, err
	}

	if len(ids) == 0 {
		return nil, &errs.NotFoundError{
			Resource: "modeled area",
			Key:      fmt.Sprintf("lat=%v lon=%v buffer=%v", lat, lon, buffer),
		}
	}
	if len(ids) > 1 {
		c.api.log.WarnContext(ctx,
			fmt.Sprintf("Found %d areas near coordinates, returning levels for all of them", len(ids)),
			"lat", lat,
			"lon", lon,
			"areas", ids)
	}

	return c.GetLevelsByAreas(ctx, ids, q)
}

// GetLevelsByPlace geocodes place and delegates to GetLevelsByCoords.
func (c *ModeledClient) GetLevelsByPlace(
	ctx context.Context,
	geocoder Geocoder,
	place string,
	buffer float64,
	q models.Query,
) (*models.FeatureCollection, error) {
	if geocoder == nil {
		return nil, fmt.Errorf("%w: no geocoder configured", errs.ErrInvalidArgument)
	}
	if place == "" {
		return nil, fmt.Errorf("%w: empty place name", errs.ErrInvalidArgument)
	}

	coords, err := geocoder.Geocode(ctx, place)
	if err != nil {
		return nil, fmt.Errorf("failed to geocode %q: %w", place, err)
	}
	c.api.log.InfoContext(ctx, "Resolved place", "place", place, "lat", coords.Latitude, "lon", coords.Longitude)

	return c.GetLevelsByCoords(ctx, coords.Latitude, coords.Longitude, buffer, q)
}

// areaIDs returns the distinct area ids in order of appearance.
func areaIDs(fc *models.FeatureCollection) ([]int, error) {
	seen := make(map[int]struct{}, fc.Len())
	ids := make([]int, 0, fc.Len())
	for _, f := range fc.Features {
		props, err := models.DecodeProperties[models.ModeledAreaProperties](f)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[props.AreaID]; dup {
			continue
		}
		seen[props.AreaID] = struct{}{}
		ids = append(ids, props.AreaID)
	}
	return ids, nil
}
