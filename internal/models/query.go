package models

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/UnknownOlympus/aquifer/internal/errs"
)

// BBox is a WGS84 bounding box.
type BBox struct {
	MinLon float64
	MinLat float64
	MaxLon float64
	MaxLat float64
}

// ParseBBox parses "minLon,minLat,maxLon,maxLat".
func ParseBBox(s string) (*BBox, error) {
	const parts = 4

	fields := strings.Split(s, ",")
	if len(fields) != parts {
		return nil, fmt.Errorf("%w: bbox needs 4 comma-separated values, got %q", errs.ErrInvalidArgument, s)
	}
	vals := make([]float64, parts)
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: bbox value %q is not a number", errs.ErrInvalidArgument, f)
		}
		vals[i] = v
	}
	box := &BBox{MinLon: vals[0], MinLat: vals[1], MaxLon: vals[2], MaxLat: vals[3]}
	if err := box.Validate(); err != nil {
		return nil, err
	}
	return box, nil
}

// Around returns a box of +/- buffer degrees centred on the point.
func Around(lat, lon, buffer float64) BBox {
	return BBox{MinLon: lon - buffer, MinLat: lat - buffer, MaxLon: lon + buffer, MaxLat: lat + buffer}
}

// Validate checks ordering and WGS84 ranges.
func (b BBox) Validate() error {
	switch {
	case b.MinLon > b.MaxLon:
		return fmt.Errorf("%w: bbox minLon %v > maxLon %v", errs.ErrInvalidArgument, b.MinLon, b.MaxLon)
	case b.MinLat > b.MaxLat:
		return fmt.Errorf("%w: bbox minLat %v > maxLat %v", errs.ErrInvalidArgument, b.MinLat, b.MaxLat)
	case b.MinLon < -180 || b.MaxLon > 180:
		return fmt.Errorf("%w: bbox longitude outside [-180, 180]", errs.ErrInvalidArgument)
	case b.MinLat < -90 || b.MaxLat > 90:
		return fmt.Errorf("%w: bbox latitude outside [-90, 90]", errs.ErrInvalidArgument)
	}
	return nil
}

func (b BBox) String() string {
	return strings.Join([]string{
		strconv.FormatFloat(b.MinLon, 'f', -1, 64),
		strconv.FormatFloat(b.MinLat, 'f', -1, 64),
		strconv.FormatFloat(b.MaxLon, 'f', -1, 64),
		strconv.FormatFloat(b.MaxLat, 'f', -1, 64),
	}, ",")
}

// Query holds the parameters shared by all item endpoints. Zero values are omitted.
type Query struct {
	BBox     *BBox
	Datetime string   // ISO-8601 instant or "start/end" interval
	Filter   string   // CQL expression
	Limit    int      // Maximum number of features, 0 for the default
	SortBy   []string // e.g. "+datum", "-obsdatum"
	Params   url.Values
}

// Validate rejects queries the API would refuse.
func (q Query) Validate() error {
	if q.Limit < 0 {
		return fmt.Errorf("%w: limit must be positive, got %d", errs.ErrInvalidArgument, q.Limit)
	}
	if q.BBox != nil {
		return q.BBox.Validate()
	}
	return nil
}

// Values encodes the query as URL parameters.
func (q Query) Values() url.Values {
	values := url.Values{}
	for key, vals := range q.Params {
		for _, v := range vals {
			values.Add(key, v)
		}
	}
	if q.BBox != nil {
		values.Set("bbox", q.BBox.String())
	}
	if q.Datetime != "" {
		values.Set("datetime", q.Datetime)
	}
	if q.Filter != "" {
		values.Set("filter", q.Filter)
	}
	if q.Limit > 0 {
		values.Set("limit", strconv.Itoa(q.Limit))
	}
	if len(q.SortBy) > 0 {
		values.Set("sortby", strings.Join(q.SortBy, ","))
	}
	return values
}

// Instant formats t as an RFC 3339 datetime filter.
func Instant(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// Interval formats a datetime interval; a nil end is open ("..").
func Interval(start, end *time.Time) string {
	const open = ".."

	from, to := open, open
	if start != nil {
		from = Instant(*start)
	}
	if end != nil {
		to = Instant(*end)
	}
	return from + "/" + to
}
