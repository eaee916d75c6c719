package models_test

import (
	"net/url"
	"testing"
	"time"

	"github.com/UnknownOlympus/aquifer/internal/errs"
	"github.com/UnknownOlympus/aquifer/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBBox(t *testing.T) {
	box, err := models.ParseBBox("12.5, 56.0,16.25,60")

	require.NoError(t, err)
	assert.Equal(t, &models.BBox{MinLon: 12.5, MinLat: 56, MaxLon: 16.25, MaxLat: 60}, box)
	assert.Equal(t, "12.5,56,16.25,60", box.String())

	for _, bad := range []string{"", "1,2,3", "a,2,3,4", "10,0,5,1", "0,10,1,5", "-190,0,0,1", "0,-95,1,1"} {
		_, err = models.ParseBBox(bad)
		assert.ErrorIs(t, err, errs.ErrInvalidArgument, bad)
	}
}

func TestBBox_Around(t *testing.T) {
	box := models.Around(59.3, 18.0, 0.5)

	assert.InDelta(t, 17.5, box.MinLon, 1e-9)
	assert.InDelta(t, 58.8, box.MinLat, 1e-9)
	assert.InDelta(t, 18.5, box.MaxLon, 1e-9)
	assert.InDelta(t, 59.8, box.MaxLat, 1e-9)
}

func TestQuery_Values(t *testing.T) {
	t.Run("empty query", func(t *testing.T) {
		assert.Empty(t, models.Query{}.Values())
	})

	t.Run("all parameters", func(t *testing.T) {
		q := models.Query{
			BBox:     &models.BBox{MinLon: 11, MinLat: 55, MaxLon: 24, MaxLat: 69},
			Datetime: "2024-01-01T00:00:00Z/..",
			Filter:   "platsbeteckning = '95_2'",
			Limit:    25,
			SortBy:   []string{"-obsdatum", "+platsbeteckning"},
			Params:   url.Values{"f": {"json"}},
		}

		v := q.Values()

		assert.Equal(t, "11,55,24,69", v.Get("bbox"))
		assert.Equal(t, "2024-01-01T00:00:00Z/..", v.Get("datetime"))
		assert.Equal(t, "platsbeteckning = '95_2'", v.Get("filter"))
		assert.Equal(t, "25", v.Get("limit"))
		assert.Equal(t, "-obsdatum,+platsbeteckning", v.Get("sortby"))
		assert.Equal(t, "json", v.Get("f"))
	})
}

func TestQuery_Validate(t *testing.T) {
	require.NoError(t, models.Query{Limit: 10}.Validate())
	require.ErrorIs(t, models.Query{Limit: -1}.Validate(), errs.ErrInvalidArgument)
	require.ErrorIs(t,
		models.Query{BBox: &models.BBox{MinLon: 5, MaxLon: 1}}.Validate(),
		errs.ErrInvalidArgument,
	)
}

func TestInterval(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 6, 30, 12, 0, 0, 0, time.FixedZone("CEST", 2*60*60))

	assert.Equal(t, "2024-01-01T00:00:00Z/2024-06-30T10:00:00Z", models.Interval(&start, &end))
	assert.Equal(t, "2024-01-01T00:00:00Z/..", models.Interval(&start, nil))
	assert.Equal(t, "../..", models.Interval(nil, nil))
	assert.Equal(t, "2024-01-01T00:00:00Z", models.Instant(start))
}
