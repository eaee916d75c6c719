//go:build notable

package table_test

import (
	"testing"

	"github.com/UnknownOlympus/aquifer/internal/errs"
	"github.com/UnknownOlympus/aquifer/internal/models"
	"github.com/UnknownOlympus/aquifer/internal/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromCollection_Disabled(t *testing.T) {
	assert.False(t, table.Enabled)

	tbl, err := table.FromCollection(&models.FeatureCollection{})

	assert.Nil(t, tbl)
	var convErr *errs.ConversionError
	require.ErrorAs(t, err, &convErr)
	assert.ErrorIs(t, err, errs.ErrConversion)
}
