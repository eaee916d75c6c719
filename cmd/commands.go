package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/UnknownOlympus/aquifer/internal/client"
	"github.com/UnknownOlympus/aquifer/internal/errs"
	"github.com/UnknownOlympus/aquifer/internal/models"
	"github.com/UnknownOlympus/aquifer/internal/table"
	"github.com/jessevdk/go-flags"
)

// QueryOptions are the item query parameters shared by all commands.
type QueryOptions struct {
	BBox       string   `long:"bbox" description:"Bounding box minLon,minLat,maxLon,maxLat"`
	Datetime   string   `long:"datetime" description:"ISO-8601 instant or start/end interval"`
	Filter     string   `long:"filter" description:"CQL filter expression"`
	Limit      int      `short:"l" long:"limit" description:"Maximum number of features, 0 for the configured cap"`
	SortBy     []string `long:"sortby" description:"Sort key such as +obsdatum (repeatable)"`
	Names      []string `short:"n" long:"name" description:"Station id or site name (repeatable)"`
	BySiteName bool     `long:"by-site-name" description:"Match --name against site names instead of station ids"`
	ID         string   `long:"id" description:"Fetch one feature by its feature id"`
}

// RangeOptions bound a measurement or sampling date.
type RangeOptions struct {
	From string `long:"from" description:"Earliest date, YYYY-MM-DD or RFC 3339"`
	To   string `long:"to" description:"Latest date, YYYY-MM-DD or RFC 3339"`
}

func (o QueryOptions) query() (models.Query, error) {
	q := models.Query{
		Datetime: o.Datetime,
		Filter:   o.Filter,
		Limit:    o.Limit,
		SortBy:   o.SortBy,
	}
	if o.BBox != "" {
		box, err := models.ParseBBox(o.BBox)
		if err != nil {
			return q, err
		}
		q.BBox = box
	}
	return q, q.Validate()
}

// single rejects the query flags a single-feature lookup cannot honour.
func (o QueryOptions) single() error {
	if o.BBox != "" || o.Datetime != "" || o.Filter != "" || o.Limit != 0 || len(o.SortBy) > 0 {
		return fmt.Errorf("%w: a single feature lookup takes no query flags", errs.ErrInvalidArgument)
	}
	if o.ID != "" && len(o.Names) > 0 {
		return fmt.Errorf("%w: --id and --name are exclusive", errs.ErrInvalidArgument)
	}
	return nil
}

func (o QueryOptions) field() client.NameField {
	if o.BySiteName {
		return client.BySiteName
	}
	return client.ByStationID
}

// interval moves the range into the datetime parameter of q, for listings
// that have no date field to filter on.
func (o RangeOptions) interval(q *models.Query) error {
	r, err := o.dateRange()
	if err != nil || (r.From == nil && r.To == nil) {
		return err
	}
	if q.Datetime != "" {
		return fmt.Errorf("%w: --datetime cannot be combined with --from/--to", errs.ErrInvalidArgument)
	}
	q.Datetime = models.Interval(r.From, r.To)
	return nil
}

func (o RangeOptions) dateRange() (client.Range, error) {
	var r client.Range
	for _, p := range []struct {
		flag  string
		value string
		dst   **time.Time
	}{{"from", o.From, &r.From}, {"to", o.To, &r.To}} {
		if p.value == "" {
			continue
		}
		t, ok := models.ParseTime(p.value)
		if !ok {
			return r, fmt.Errorf("%w: --%s %q is not a date", errs.ErrInvalidArgument, p.flag, p.value)
		}
		*p.dst = &t
	}
	return r, nil
}

// StationsCommand lists observed-level monitoring stations.
type StationsCommand struct {
	QueryOptions
	app *app
}

func (c *StationsCommand) Execute(_ []string) error {
	q, err := c.query()
	if err != nil {
		return err
	}
	obs := c.app.client.Observed
	if c.ID != "" {
		if err = c.single(); err != nil {
			return err
		}
		return c.app.writeFeature(obs.GetStation(c.app.ctx, c.ID))
	}
	switch len(c.Names) {
	case 0:
		return c.app.write(obs.GetStations(c.app.ctx, q))
	case 1:
		if err = c.single(); err != nil {
			return err
		}
		return c.app.writeFeature(obs.GetStationByName(c.app.ctx, c.field(), c.Names[0]))
	default:
		return c.app.write(obs.GetStationsByNames(c.app.ctx, c.field(), c.Names, q))
	}
}

// MeasurementsCommand lists observed groundwater levels.
type MeasurementsCommand struct {
	QueryOptions
	RangeOptions
	app *app
}

func (c *MeasurementsCommand) Execute(_ []string) error {
	q, err := c.query()
	if err != nil {
		return err
	}
	obs := c.app.client.Observed
	if c.ID != "" {
		if err = c.single(); err != nil {
			return err
		}
		return c.app.writeFeature(obs.GetMeasurement(c.app.ctx, c.ID))
	}
	if len(c.Names) == 0 {
		if err = c.interval(&q); err != nil {
			return err
		}
		return c.app.write(obs.GetMeasurements(c.app.ctx, q))
	}

	r, err := c.dateRange()
	if err != nil {
		return err
	}
	if len(c.Names) == 1 {
		return c.app.write(obs.GetMeasurementsByName(c.app.ctx, c.field(), c.Names[0], r, q))
	}
	return c.app.write(obs.GetMeasurementsByNames(c.app.ctx, c.field(), c.Names, r, q))
}

// AreasCommand lists SGU-HYPE modelling areas.
type AreasCommand struct {
	QueryOptions
	app *app
}

func (c *AreasCommand) Execute(_ []string) error {
	q, err := c.query()
	if err != nil {
		return err
	}
	if c.ID != "" {
		if err = c.single(); err != nil {
			return err
		}
		return c.app.writeFeature(c.app.client.Modeled.GetArea(c.app.ctx, c.ID))
	}
	return c.app.write(c.app.client.Modeled.GetAreas(c.app.ctx, q))
}

// LevelsCommand lists modeled groundwater levels by area, point or place.
type LevelsCommand struct {
	QueryOptions
	Areas  []int    `long:"area" description:"Area id (omrade_id, repeatable)"`
	Lat    *float64 `long:"lat" description:"Latitude of the point to search around"`
	Lon    *float64 `long:"lon" description:"Longitude of the point to search around"`
	Place  string   `long:"place" description:"Place name to geocode"`
	Buffer float64  `long:"buffer" description:"Search half-width in degrees around the point" default:"0.01"`
	app    *app
}

func (c *LevelsCommand) Execute(_ []string) error {
	q, err := c.query()
	if err != nil {
		return err
	}
	modeled := c.app.client.Modeled

	switch {
	case c.ID != "":
		if err = c.single(); err != nil {
			return err
		}
		return c.app.writeFeature(modeled.GetLevel(c.app.ctx, c.ID))
	case c.Place != "":
		geocoder, gerr := c.app.placeGeocoder()
		if gerr != nil {
			return gerr
		}
		return c.app.write(modeled.GetLevelsByPlace(c.app.ctx, geocoder, c.Place, c.Buffer, q))
	case c.Lat != nil || c.Lon != nil:
		if c.Lat == nil || c.Lon == nil {
			return fmt.Errorf("%w: --lat and --lon go together", errs.ErrInvalidArgument)
		}
		return c.app.write(modeled.GetLevelsByCoords(c.app.ctx, *c.Lat, *c.Lon, c.Buffer, q))
	case len(c.Areas) == 1:
		return c.app.write(modeled.GetLevelsByArea(c.app.ctx, c.Areas[0], q))
	case len(c.Areas) > 1:
		return c.app.write(modeled.GetLevelsByAreas(c.app.ctx, c.Areas, q))
	default:
		return c.app.write(modeled.GetLevels(c.app.ctx, q))
	}
}

// SitesCommand lists water chemistry sampling sites.
type SitesCommand struct {
	QueryOptions
	app *app
}

func (c *SitesCommand) Execute(_ []string) error {
	q, err := c.query()
	if err != nil {
		return err
	}
	chem := c.app.client.Chemistry
	if c.ID != "" {
		if err = c.single(); err != nil {
			return err
		}
		return c.app.writeFeature(chem.GetSamplingSite(c.app.ctx, c.ID))
	}
	switch len(c.Names) {
	case 0:
		return c.app.write(chem.GetSamplingSites(c.app.ctx, q))
	case 1:
		if err = c.single(); err != nil {
			return err
		}
		return c.app.writeFeature(chem.GetSamplingSiteByName(c.app.ctx, c.field(), c.Names[0]))
	default:
		return c.app.write(chem.GetSamplingSitesByNames(c.app.ctx, c.field(), c.Names, q))
	}
}

// ResultsCommand lists water chemistry analysis results.
type ResultsCommand struct {
	QueryOptions
	RangeOptions
	Parameter string `short:"p" long:"parameter" description:"Parameter short name, e.g. PH or NITRAT"`
	app       *app
}

func (c *ResultsCommand) Execute(_ []string) error {
	q, err := c.query()
	if err != nil {
		return err
	}
	chem := c.app.client.Chemistry
	if c.ID != "" {
		if err = c.single(); err != nil {
			return err
		}
		return c.app.writeFeature(chem.GetAnalysisResult(c.app.ctx, c.ID))
	}

	if c.Parameter == "" && len(c.Names) == 0 {
		if err = c.interval(&q); err != nil {
			return err
		}
		return c.app.write(chem.GetAnalysisResults(c.app.ctx, q))
	}

	r, err := c.dateRange()
	if err != nil {
		return err
	}
	switch {
	case c.Parameter != "":
		return c.app.write(chem.GetResultsByParameter(c.app.ctx, c.Parameter, c.Names, r, q))
	case len(c.Names) == 1:
		return c.app.write(chem.GetResultsBySite(c.app.ctx, c.field(), c.Names[0], r, q))
	default:
		return c.app.write(chem.GetResultsBySites(c.app.ctx, c.field(), c.Names, r, q))
	}
}

func registerCommands(parser *flags.Parser, a *app) {
	commands := []struct {
		name, short, long string
		data              any
	}{
		{"stations", "List monitoring stations", "Observed groundwater level stations.",
			&StationsCommand{app: a}},
		{"measurements", "List observed levels", "Observed groundwater levels. With --name, one station's series.",
			&MeasurementsCommand{app: a}},
		{"areas", "List modelling areas", "SGU-HYPE modelling areas.",
			&AreasCommand{app: a}},
		{"levels", "List modeled levels", "Modeled groundwater levels by --area, --lat/--lon or --place.",
			&LevelsCommand{app: a}},
		{"sites", "List sampling sites", "Groundwater chemistry sampling sites.",
			&SitesCommand{app: a}},
		{"results", "List analysis results", "Groundwater chemistry results by site or --parameter.",
			&ResultsCommand{app: a}},
	}
	for _, c := range commands {
		if _, err := parser.AddCommand(c.name, c.short, c.long, c.data); err != nil {
			panic("failed to register command " + c.name + ": " + err.Error())
		}
	}
}

// write prints fc in the selected format. JSON prints the collection as is
// unless table options are set, in which case it prints the rows.
func (a *app) write(fc *models.FeatureCollection, err error) error {
	if err != nil {
		return err
	}
	if a.opts.Format == "json" && !a.opts.tabular() {
		return a.writeJSON(fc)
	}

	tbl, err := table.FromCollection(fc, a.opts.tableOptions()...)
	if err != nil {
		return err
	}
	if a.opts.Sort != "" {
		if err = tbl.SortBy(a.opts.Sort); err != nil {
			return err
		}
	}
	if a.opts.Series != "" {
		index, data, _ := strings.Cut(a.opts.Series, ",")
		s, serr := tbl.Series(index, data)
		if serr != nil {
			return serr
		}
		if a.opts.Format == "json" {
			return a.writeJSON(s)
		}
		tbl = s.Table()
	}

	switch a.opts.Format {
	case "csv":
		return tbl.WriteCSV(a.out)
	case "yaml":
		return tbl.WriteYAML(a.out)
	default:
		return a.writeJSON(tbl.Rows)
	}
}

// writeFeature prints a single feature; tables get a one-row collection.
func (a *app) writeFeature(f *models.Feature, err error) error {
	if err != nil {
		return err
	}
	if a.opts.Format == "json" {
		return a.writeJSON(f)
	}
	return a.write(&models.FeatureCollection{Features: []models.Feature{*f}}, nil)
}

func (a *app) writeJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to write json: %w", err)
	}
	return nil
}
