package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/UnknownOlympus/aquifer/internal/errs"
)

// Link relations used by the client.
const (
	RelNext = "next"
	RelSelf = "self"
)

// Link is a typed reference inside a GeoJSON response.
type Link struct {
	Href  string `json:"href"`
	Rel   string `json:"rel,omitempty"`
	Type  string `json:"type,omitempty"`
	Title string `json:"title,omitempty"`
}

// CRS is the coordinate reference system block some SGU collections carry.
type CRS struct {
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`
}

// Feature is one geolocated record.
type Feature struct {
	ID         string
	Geometry   *Geometry
	Properties map[string]any
	Links      []Link
}

type rawFeature struct {
	Type       string          `json:"type"`
	ID         json.RawMessage `json:"id"`
	Geometry   json.RawMessage `json:"geometry"`
	Properties json.RawMessage `json:"properties"`
	Links      []Link          `json:"links"`
}

// UnmarshalJSON decodes a GeoJSON feature. Null geometry and null properties are allowed.
func (f *Feature) UnmarshalJSON(data []byte) error {
	var raw rawFeature
	if err := json.Unmarshal(data, &raw); err != nil {
		return errs.Validation("", "malformed feature object", err)
	}
	if raw.Type != "" && raw.Type != "Feature" {
		return errs.Validation("type", fmt.Sprintf("expected Feature, got %q", raw.Type), nil)
	}

	id, err := decodeID(raw.ID)
	if err != nil {
		return err
	}

	out := Feature{ID: id, Links: raw.Links, Properties: map[string]any{}}

	if !isNull(raw.Geometry) {
		out.Geometry = &Geometry{}
		if err = json.Unmarshal(raw.Geometry, out.Geometry); err != nil {
			return err
		}
	}

	if !isNull(raw.Properties) {
		if err = json.Unmarshal(raw.Properties, &out.Properties); err != nil {
			return errs.Validation("properties", "properties must be an object", err)
		}
	}

	*f = out
	return nil
}

// MarshalJSON encodes the feature as GeoJSON.
func (f Feature) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type       string         `json:"type"`
		ID         string         `json:"id,omitempty"`
		Geometry   *Geometry      `json:"geometry"`
		Properties map[string]any `json:"properties"`
		Links      []Link         `json:"links,omitempty"`
	}{"Feature", f.ID, f.Geometry, f.Properties, f.Links})
}

// StringProperty returns a property as a string, or "" when absent or not a string.
func (f Feature) StringProperty(key string) string {
	s, _ := f.Properties[key].(string)
	return s
}

// FeatureCollection is an ordered set of features plus pagination metadata.
type FeatureCollection struct {
	Features       []Feature
	Links          []Link
	NumberMatched  *int
	NumberReturned *int
	TimeStamp      string
	CRS            *CRS
}

type rawCollection struct {
	Type           string          `json:"type"`
	Features       json.RawMessage `json:"features"`
	Links          []Link          `json:"links"`
	NumberMatched  json.RawMessage `json:"numberMatched"`
	NumberReturned json.RawMessage `json:"numberReturned"`
	TimeStamp      string          `json:"timeStamp"`
	CRS            *CRS            `json:"crs"`
}

// ParseFeatureCollection decodes a response body into a FeatureCollection.
// Any schema violation is reported as *errs.ValidationError.
func ParseFeatureCollection(body []byte) (*FeatureCollection, error) {
	var raw rawCollection
	if err := json.Unmarshal(body, &raw); err != nil {
		var verr *errs.ValidationError
		if errors.As(err, &verr) {
			return nil, verr
		}
		return nil, errs.Validation("", "body is not a GeoJSON object", err)
	}
	if raw.Type != "FeatureCollection" {
		return nil, errs.Validation("type", fmt.Sprintf("expected FeatureCollection, got %q", raw.Type), nil)
	}

	fc := &FeatureCollection{
		Links:          raw.Links,
		NumberMatched:  decodeCount(raw.NumberMatched),
		NumberReturned: decodeCount(raw.NumberReturned),
		TimeStamp:      raw.TimeStamp,
		CRS:            raw.CRS,
		Features:       []Feature{},
	}

	if isNull(raw.Features) {
		return fc, nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw.Features, &items); err != nil {
		return nil, errs.Validation("features", "features must be an array", err)
	}
	for idx, item := range items {
		var feature Feature
		if err := json.Unmarshal(item, &feature); err != nil {
			var verr *errs.ValidationError
			if errors.As(err, &verr) {
				verr.Field = joinField(fmt.Sprintf("features[%d]", idx), verr.Field)
				return nil, verr
			}
			return nil, errs.Validation(fmt.Sprintf("features[%d]", idx), "malformed feature", err)
		}
		fc.Features = append(fc.Features, feature)
	}

	return fc, nil
}

// MarshalJSON encodes the collection as GeoJSON.
func (fc FeatureCollection) MarshalJSON() ([]byte, error) {
	features := fc.Features
	if features == nil {
		features = []Feature{}
	}
	return json.Marshal(struct {
		Type           string    `json:"type"`
		Features       []Feature `json:"features"`
		Links          []Link    `json:"links,omitempty"`
		NumberMatched  *int      `json:"numberMatched,omitempty"`
		NumberReturned *int      `json:"numberReturned,omitempty"`
		TimeStamp      string    `json:"timeStamp,omitempty"`
		CRS            *CRS      `json:"crs,omitempty"`
	}{"FeatureCollection", features, fc.Links, fc.NumberMatched, fc.NumberReturned, fc.TimeStamp, fc.CRS})
}

// Len returns the number of features.
func (fc *FeatureCollection) Len() int { return len(fc.Features) }

// Link returns the href of the first link with the given relation.
func (fc *FeatureCollection) Link(rel string) (string, bool) {
	for _, l := range fc.Links {
		if l.Rel == rel && l.Href != "" {
			return l.Href, true
		}
	}
	return "", false
}

// Next returns the href of the "next" link, if any.
func (fc *FeatureCollection) Next() (string, bool) { return fc.Link(RelNext) }

func decodeID(raw json.RawMessage) (string, error) {
	if isNull(raw) {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), nil
	}
	return "", errs.Validation("id", "id must be a string or a number", nil)
}

// decodeCount accepts integers and ignores anything else (the modeled API reports "unknown").
func decodeCount(raw json.RawMessage) *int {
	if isNull(raw) {
		return nil
	}
	n, err := strconv.Atoi(string(bytes.TrimSpace(raw)))
	if err != nil {
		return nil
	}
	return &n
}

func joinField(prefix, field string) string {
	if field == "" {
		return prefix
	}
	return prefix + "." + field
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
