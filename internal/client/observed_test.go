package client_test

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/UnknownOlympus/aquifer/internal/client"
	"github.com/UnknownOlympus/aquifer/internal/errs"
	"github.com/UnknownOlympus/aquifer/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObservedClient_GetStations(t *testing.T) {
	rec := &recorder{handler: func(req *http.Request) (int, string) {
		assert.True(t, strings.HasSuffix(req.URL.Path, "/collections/stationer/items"))
		assert.Equal(t, "12,55,16,58", req.URL.Query().Get("bbox"))
		assert.Equal(t, "5", req.URL.Query().Get("limit"))
		return http.StatusOK, collection(t,
			map[string]any{"platsbeteckning": "95_2"},
			map[string]any{"platsbeteckning": "101_1"},
		)
	}}
	c := newTestClient(t, rec)

	fc, err := c.Observed.GetStations(context.Background(), models.Query{
		BBox:  &models.BBox{MinLon: 12, MinLat: 55, MaxLon: 16, MaxLat: 58},
		Limit: 5,
	})

	require.NoError(t, err)
	assert.Equal(t, 2, fc.Len())
	require.Len(t, rec.requests, 1)
}

func TestObservedClient_GetStations_InvalidQuery(t *testing.T) {
	c := newTestClient(t, &mockHTTPClient{})

	_, err := c.Observed.GetStations(context.Background(), models.Query{Limit: -5})

	require.ErrorIs(t, err, errs.ErrInvalidArgument)
}

func TestObservedClient_GetStationByName(t *testing.T) {
	ctx := context.Background()

	t.Run("single match", func(t *testing.T) {
		rec := &recorder{handler: func(req *http.Request) (int, string) {
			assert.Equal(t, "2", req.URL.Query().Get("limit"))
			return http.StatusOK, collection(t, map[string]any{"platsbeteckning": "95_2"})
		}}
		c := newTestClient(t, rec)

		f, err := c.Observed.GetStationByName(ctx, client.ByStationID, "95_2")

		require.NoError(t, err)
		assert.Equal(t, "95_2", f.StringProperty("platsbeteckning"))
		assert.Equal(t, []string{"platsbeteckning = '95_2'"}, rec.filters())
	})

	t.Run("site name column", func(t *testing.T) {
		rec := &recorder{handler: func(_ *http.Request) (int, string) {
			return http.StatusOK, collection(t, map[string]any{"platsbeteckning": "95_2", "obsplatsnamn": "Lagga_2"})
		}}
		c := newTestClient(t, rec)

		_, err := c.Observed.GetStationByName(ctx, client.BySiteName, "Lagga_2")

		require.NoError(t, err)
		assert.Equal(t, []string{"obsplatsnamn = 'Lagga_2'"}, rec.filters())
	})

	t.Run("zero matches is not found", func(t *testing.T) {
		rec := &recorder{handler: func(_ *http.Request) (int, string) {
			return http.StatusOK, collection(t)
		}}
		c := newTestClient(t, rec)

		f, err := c.Observed.GetStationByName(ctx, client.ByStationID, "missing")

		require.Error(t, err)
		assert.Nil(t, f)
		var nf *errs.NotFoundError
		require.ErrorAs(t, err, &nf)
		assert.Equal(t, "station", nf.Resource)
		assert.Equal(t, "platsbeteckning = 'missing'", nf.Key)
	})

	t.Run("several matches are ambiguous", func(t *testing.T) {
		rec := &recorder{handler: func(_ *http.Request) (int, string) {
			return http.StatusOK, collection(t,
				map[string]any{"obsplatsnamn": "Brunn"},
				map[string]any{"obsplatsnamn": "Brunn"},
			)
		}}
		c := newTestClient(t, rec)

		_, err := c.Observed.GetStationByName(ctx, client.BySiteName, "Brunn")

		require.ErrorIs(t, err, client.ErrAmbiguousMatch)
		assert.NotErrorIs(t, err, errs.ErrNotFound)
	})

	t.Run("empty name", func(t *testing.T) {
		c := newTestClient(t, &mockHTTPClient{})

		_, err := c.Observed.GetStationByName(ctx, client.ByStationID, "")

		require.ErrorIs(t, err, errs.ErrInvalidArgument)
	})
}

func TestObservedClient_GetStationsByNames(t *testing.T) {
	ctx := context.Background()

	t.Run("partial match returns the subset", func(t *testing.T) {
		rec := &recorder{handler: func(_ *http.Request) (int, string) {
			return http.StatusOK, collection(t, map[string]any{"platsbeteckning": "95_2"})
		}}
		c := newTestClient(t, rec)

		fc, err := c.Observed.GetStationsByNames(ctx, client.ByStationID, []string{"95_2", "missing"}, models.Query{})

		require.NoError(t, err)
		assert.Equal(t, 1, fc.Len())
		assert.Equal(t, []string{"platsbeteckning in ('95_2', 'missing')"}, rec.filters())
	})

	t.Run("query parameters are kept", func(t *testing.T) {
		rec := &recorder{handler: func(req *http.Request) (int, string) {
			assert.Equal(t, "12,55,16,58", req.URL.Query().Get("bbox"))
			assert.Equal(t, "1", req.URL.Query().Get("limit"))
			return http.StatusOK, collection(t, map[string]any{"platsbeteckning": "95_2"})
		}}
		c := newTestClient(t, rec)

		_, err := c.Observed.GetStationsByNames(ctx, client.ByStationID, []string{"95_2", "101_1"}, models.Query{
			BBox:   &models.BBox{MinLon: 12, MinLat: 55, MaxLon: 16, MaxLat: 58},
			Filter: "akvifer = 'JS'",
			Limit:  1,
		})

		require.NoError(t, err)
		assert.Equal(t, []string{"platsbeteckning in ('95_2', '101_1') AND akvifer = 'JS'"}, rec.filters())
	})

	t.Run("no match is not an error", func(t *testing.T) {
		rec := &recorder{handler: func(_ *http.Request) (int, string) {
			return http.StatusOK, collection(t)
		}}
		c := newTestClient(t, rec)

		fc, err := c.Observed.GetStationsByNames(ctx, client.ByStationID, []string{"missing"}, models.Query{})

		require.NoError(t, err)
		assert.Equal(t, 0, fc.Len())
	})

	t.Run("empty list", func(t *testing.T) {
		c := newTestClient(t, &mockHTTPClient{})

		_, err := c.Observed.GetStationsByNames(ctx, client.ByStationID, nil, models.Query{})

		require.ErrorIs(t, err, errs.ErrInvalidArgument)
	})
}

func TestObservedClient_GetMeasurementsByName(t *testing.T) {
	ctx := context.Background()
	from := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	r := client.Range{From: &from, To: &to}

	t.Run("station id with time range", func(t *testing.T) {
		rec := &recorder{handler: func(req *http.Request) (int, string) {
			assert.True(t, strings.HasSuffix(req.URL.Path, "/collections/nivaer/items"))
			assert.Equal(t, "10", req.URL.Query().Get("limit"))
			return http.StatusOK, collection(t,
				map[string]any{"platsbeteckning": "95_2", "obsdatum": "2020-03-01T00:00:00Z"},
				map[string]any{"platsbeteckning": "95_2", "obsdatum": "2020-04-01T00:00:00Z"},
			)
		}}
		c := newTestClient(t, rec)

		fc, err := c.Observed.GetMeasurementsByName(ctx, client.ByStationID, "95_2", r, models.Query{Limit: 10})

		require.NoError(t, err)
		assert.Equal(t, 2, fc.Len())
		assert.Equal(t, []string{
			"platsbeteckning = '95_2' AND obsdatum >= '2020-01-01T00:00:00Z' AND obsdatum <= '2021-01-01T00:00:00Z'",
		}, rec.filters())
	})

	t.Run("query parameters are kept", func(t *testing.T) {
		rec := &recorder{handler: func(req *http.Request) (int, string) {
			query := req.URL.Query()
			assert.Equal(t, "12,55,16,58", query.Get("bbox"))
			assert.Equal(t, "2020-01-01T00:00:00Z/..", query.Get("datetime"))
			assert.Equal(t, "-obsdatum", query.Get("sortby"))
			assert.Equal(t, "3", query.Get("limit"))
			return http.StatusOK, collection(t, map[string]any{"platsbeteckning": "95_2"})
		}}
		c := newTestClient(t, rec)

		_, err := c.Observed.GetMeasurementsByName(ctx, client.ByStationID, "95_2", client.Range{}, models.Query{
			BBox:     &models.BBox{MinLon: 12, MinLat: 55, MaxLon: 16, MaxLat: 58},
			Datetime: "2020-01-01T00:00:00Z/..",
			Filter:   "nivaer > 5 OR nivaer < 1",
			SortBy:   []string{"-obsdatum"},
			Limit:    3,
		})

		require.NoError(t, err)
		assert.Equal(t, []string{"platsbeteckning = '95_2' AND (nivaer > 5 OR nivaer < 1)"}, rec.filters())
	})

	t.Run("site name resolves the station first", func(t *testing.T) {
		rec := &recorder{handler: func(req *http.Request) (int, string) {
			if strings.Contains(req.URL.Path, "/stationer/") {
				return http.StatusOK, collection(t, map[string]any{"platsbeteckning": "95_2", "obsplatsnamn": "Lagga_2"})
			}
			return http.StatusOK, collection(t, map[string]any{"platsbeteckning": "95_2"})
		}}
		c := newTestClient(t, rec)

		fc, err := c.Observed.GetMeasurementsByName(ctx, client.BySiteName, "Lagga_2", client.Range{}, models.Query{})

		require.NoError(t, err)
		assert.Equal(t, 1, fc.Len())
		assert.Equal(t, []string{"obsplatsnamn = 'Lagga_2'", "platsbeteckning = '95_2'"}, rec.filters())
	})

	t.Run("no measurements is not found", func(t *testing.T) {
		rec := &recorder{handler: func(_ *http.Request) (int, string) {
			return http.StatusOK, collection(t)
		}}
		c := newTestClient(t, rec)

		_, err := c.Observed.GetMeasurementsByName(ctx, client.ByStationID, "95_2", client.Range{}, models.Query{})

		require.ErrorIs(t, err, errs.ErrNotFound)
	})

	t.Run("transport errors are not converted", func(t *testing.T) {
		rec := &recorder{handler: func(_ *http.Request) (int, string) {
			return http.StatusBadRequest, `{"description":"Invalid filter"}`
		}}
		c := newTestClient(t, rec)

		_, err := c.Observed.GetMeasurementsByName(ctx, client.ByStationID, "95_2", client.Range{}, models.Query{})

		require.ErrorIs(t, err, errs.ErrAPI)
		assert.NotErrorIs(t, err, errs.ErrNotFound)
	})
}

func TestObservedClient_GetMeasurementsByNames(t *testing.T) {
	ctx := context.Background()

	t.Run("partial match returns the subset", func(t *testing.T) {
		rec := &recorder{handler: func(_ *http.Request) (int, string) {
			return http.StatusOK, collection(t, map[string]any{"platsbeteckning": "95_2"})
		}}
		c := newTestClient(t, rec)

		from := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
		fc, err := c.Observed.GetMeasurementsByNames(ctx, client.ByStationID,
			[]string{"95_2", "missing"}, client.Range{From: &from}, models.Query{Limit: 20})

		require.NoError(t, err)
		assert.Equal(t, 1, fc.Len())
		assert.Equal(t, []string{
			"platsbeteckning in ('95_2', 'missing') AND obsdatum >= '2020-01-01T00:00:00Z'",
		}, rec.filters())
	})

	t.Run("unknown site names give an empty result", func(t *testing.T) {
		rec := &recorder{handler: func(_ *http.Request) (int, string) {
			return http.StatusOK, collection(t)
		}}
		c := newTestClient(t, rec)

		fc, err := c.Observed.GetMeasurementsByNames(ctx, client.BySiteName,
			[]string{"Nowhere"}, client.Range{}, models.Query{})

		require.NoError(t, err)
		assert.Equal(t, 0, fc.Len())
		assert.Len(t, rec.requests, 1)
	})
}
