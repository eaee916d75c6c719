//go:build notable

package table

import (
	"github.com/UnknownOlympus/aquifer/internal/errs"
	"github.com/UnknownOlympus/aquifer/internal/models"
)

// Enabled reports whether tabular conversion is compiled in.
const Enabled = false

// FromCollection always fails in builds tagged notable.
func FromCollection(_ *models.FeatureCollection, _ ...Option) (*Table, error) {
	return nil, &errs.ConversionError{
		Op:     "FromCollection",
		Reason: "tabular conversion is not available in this build (notable)",
	}
}
