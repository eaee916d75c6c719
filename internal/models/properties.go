package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/UnknownOlympus/aquifer/internal/errs"
)

// StationProperties are the fields of an observed groundwater station.
type StationProperties struct {
	StationID       string   `json:"platsbeteckning"`
	SiteName        string   `json:"obsplatsnamn"`
	Municipality    string   `json:"kommun"`
	County          string   `json:"lan"`
	Province        string   `json:"landskap"`
	Aquifer         string   `json:"akvifer_tx"`
	DepthM          *float64 `json:"djup_m"`
	PipeTopMASL     *float64 `json:"roropp_m_o_h"`
	PipeBottomMASL  *float64 `json:"rorbotten_m_o_h"`
	GroundLevelMASL *float64 `json:"markyta_m_o_h"`
	Status          string   `json:"status"`
	Installed       string   `json:"installerad"`
	Decommissioned  string   `json:"avslutad"`
}

// MeasurementProperties are the fields of an observed groundwater level reading.
type MeasurementProperties struct {
	StationID         string   `json:"platsbeteckning"`
	ObservationDate   string   `json:"obsdatum"`
	LevelMASL         *float64 `json:"grundvattenniva_m_o_h"`
	LevelBelowGroundM *float64 `json:"grundvattenniva_m_urok"`
	Method            string   `json:"metod_for_matning"`
	Equipment         string   `json:"matutrustning"`
	Comment           *string  `json:"kommentar"`
	Status            string   `json:"status"`
}

// ModeledAreaProperties are the fields of an SGU-HYPE modelling area.
type ModeledAreaProperties struct {
	AreaID   int    `json:"omrade_id"`
	ObjectID *int   `json:"objectid"`
	URL      string `json:"url_tidigare"`
}

// ModeledLevelProperties are the fields of a modeled groundwater level.
type ModeledLevelProperties struct {
	AreaID              int      `json:"omrade_id"`
	ObjectID            int      `json:"objectid"`
	Date                string   `json:"datum"`
	SituationSmall      *float64 `json:"grundvattensituation_sma"`
	SituationLarge      *float64 `json:"grundvattensituation_stora"`
	FillingDegreeSmall  *float64 `json:"fyllnadsgrad_sma"`
	FillingDegreeLarge  *float64 `json:"fyllnadsgrad_stora"`
	DeviationSmall      *float64 `json:"avvikelse_sma"`
	DeviationLarge      *float64 `json:"avvikelse_stora"`
	RelativeLevelsSmall *float64 `json:"relativ_niva_sma"`
}

// SamplingSiteProperties are the fields of a water chemistry sampling site.
type SamplingSiteProperties struct {
	StationID         string   `json:"platsbeteckning"`
	SiteName          string   `json:"provplatsnamn"`
	NationalSiteID    *int     `json:"nationellt_provplatsid"`
	EUStationCode     string   `json:"eucd_stn"`
	SiteType          string   `json:"provplatstyp_tx"`
	Municipality      string   `json:"kommun"`
	County            string   `json:"lan"`
	Aquifer           string   `json:"akvifer_tx"`
	WellDepthM        *float64 `json:"brunnsdjup"`
	ReferenceLevel    *float64 `json:"refniva"`
	EstablishedDate   string   `json:"etabldatum"`
	DecommissionDate  string   `json:"nedlagdatum"`
	SampleCount       *int     `json:"antal_prov"`
	NationalMonitored string   `json:"nationell"`
}

// AnalysisResultProperties are the fields of a water chemistry analysis result.
type AnalysisResultProperties struct {
	StationID        string   `json:"platsbeteckning"`
	SampleID         string   `json:"provid"`
	SamplingDate     string   `json:"provtagningsdat"`
	SubmissionDate   string   `json:"inlamningsdat"`
	Parameter        string   `json:"param"`
	ParameterShort   string   `json:"param_kort"`
	Laboratory       string   `json:"labb"`
	Method           string   `json:"metod"`
	ReportingLimit   *float64 `json:"rapporteringsgrans"`
	DetectionLimit   *float64 `json:"detektionsgrans"`
	ValueAnnotation  string   `json:"matvardetalanm"`
	Value            *float64 `json:"matvardetal"`
	ValueText        string   `json:"matvardetext"`
	Unit             string   `json:"enhet"`
	Uncertainty      string   `json:"matosakerhet"`
	LastUpdated      string   `json:"lastupdate"`
	ProgramName      string   `json:"programnamn"`
	ParameterSeqNo   *int     `json:"paramlopnr"`
	WaterPreparation string   `json:"vattenberedn"`
}

// DecodeProperties maps the raw properties of a feature onto a typed struct.
func DecodeProperties[T any](f Feature) (T, error) {
	var out T
	buf, err := json.Marshal(f.Properties)
	if err != nil {
		return out, errs.Validation("properties", "cannot re-encode properties", err)
	}
	if err = json.Unmarshal(buf, &out); err != nil {
		return out, errs.Validation(
			"properties",
			fmt.Sprintf("feature %q does not match %T", f.ID, out),
			err,
		)
	}
	return out, nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02Z07:00",
	"2006-01-02",
}

// ParseTime parses the date formats used across the SGU APIs,
// including the modeled API's "2024-08-01Z".
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
