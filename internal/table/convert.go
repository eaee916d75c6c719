//go:build !notable

package table

import (
	"sort"

	"github.com/UnknownOlympus/aquifer/internal/errs"
	"github.com/UnknownOlympus/aquifer/internal/models"
	"github.com/paulmach/orb/planar"
)

// Enabled reports whether tabular conversion is compiled in.
const Enabled = true

// FromCollection flattens fc into one row per feature, in input order.
// Point coordinates become longitude, latitude and, when present, altitude
// columns. Other geometry types only get columns through WithCentroids.
// Properties are copied as top-level columns without further flattening and
// take precedence over geometry columns of the same name.
func FromCollection(fc *models.FeatureCollection, opts ...Option) (*Table, error) {
	if fc == nil {
		return nil, &errs.ConversionError{Op: "FromCollection", Reason: "nil feature collection"}
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	t := &Table{Rows: make([]Row, 0, fc.Len())}
	cols := newColumnSet()

	for _, f := range fc.Features {
		row := Row{}
		geometryColumns(row, f.Geometry, o.centroids)
		if o.idColumn != "" {
			row[o.idColumn] = f.ID
		}
		for _, tc := range o.timeColumns {
			row[tc.dst] = parseTime(f.Properties[tc.src])
		}

		keys := make([]string, 0, len(f.Properties))
		for k := range f.Properties {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if o.isTimeDst(k) {
				continue
			}
			row[k] = f.Properties[k]
		}

		cols.addGeometry(row)
		if o.idColumn != "" {
			cols.add(o.idColumn, rankID)
		}
		for _, tc := range o.timeColumns {
			cols.add(tc.dst, rankTime)
		}
		for _, k := range keys {
			cols.add(k, rankProperty)
		}

		t.Rows = append(t.Rows, row)
	}

	t.Columns = cols.ordered()
	return t, nil
}

func (o options) isTimeDst(col string) bool {
	for _, tc := range o.timeColumns {
		if tc.dst == col {
			return true
		}
	}
	return false
}

func geometryColumns(row Row, g *models.Geometry, centroids bool) {
	if g == nil {
		return
	}
	if g.Type == models.GeometryPoint {
		row[ColLongitude] = g.Point.Lon()
		row[ColLatitude] = g.Point.Lat()
		if alt, ok := g.Point.Altitude(); ok {
			row[ColAltitude] = alt
		}
	}
	if !centroids {
		return
	}
	og := g.Orb()
	if og == nil || og.Bound().IsEmpty() {
		return
	}
	c, _ := planar.CentroidArea(og)
	row[ColCentroidLongitude] = c.Lon()
	row[ColCentroidLatitude] = c.Lat()
}

func parseTime(v any) any {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	t, ok := models.ParseTime(s)
	if !ok {
		return nil
	}
	return t
}

// Geometry columns rank by their position here, the others after them.
var geometryRank = [...]string{ColLongitude, ColLatitude, ColAltitude, ColCentroidLongitude, ColCentroidLatitude}

const (
	rankID = len(geometryRank) + iota
	rankTime
	rankProperty
)

// columnSet keeps columns ordered by rank, then by first appearance.
type columnSet struct {
	rank  map[string]int
	order []string
}

func newColumnSet() *columnSet {
	return &columnSet{rank: map[string]int{}}
}

func (c *columnSet) addGeometry(row Row) {
	for rank, col := range geometryRank {
		if _, ok := row[col]; ok {
			c.add(col, rank)
		}
	}
}

func (c *columnSet) add(col string, rank int) {
	if _, ok := c.rank[col]; ok {
		return
	}
	c.rank[col] = rank
	c.order = append(c.order, col)
}

func (c *columnSet) ordered() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	sort.SliceStable(out, func(i, j int) bool {
		return c.rank[out[i]] < c.rank[out[j]]
	})
	return out
}
