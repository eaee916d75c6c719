package client

import "github.com/UnknownOlympus/aquifer/internal/models"

// schemas decode the properties of each collection into its typed record.
var schemas = map[string]func(models.Feature) error{
	collectionStations:     decodeAs[models.StationProperties],
	collectionMeasurements: decodeAs[models.MeasurementProperties],
	collectionAreas:        decodeAs[models.ModeledAreaProperties],
	collectionLevels:       decodeAs[models.ModeledLevelProperties],
	collectionSites:        decodeAs[models.SamplingSiteProperties],
	collectionResults:      decodeAs[models.AnalysisResultProperties],
}

func decodeAs[T any](f models.Feature) error {
	_, err := models.DecodeProperties[T](f)
	return err
}

// checkSchema fails with *errs.ValidationError on the first feature whose
// properties do not fit the collection's record type.
func checkSchema(collection string, features ...models.Feature) error {
	check, ok := schemas[collection]
	if !ok {
		return nil
	}
	for _, f := range features {
		if err := check(f); err != nil {
			return err
		}
	}
	return nil
}
