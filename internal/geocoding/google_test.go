package geocoding_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/UnknownOlympus/aquifer/internal/geocoding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"googlemaps.github.io/maps"
)

type mockGoogleClient struct {
	mock.Mock
}

func (m *mockGoogleClient) Geocode(ctx context.Context, r *maps.GeocodingRequest) ([]maps.GeocodingResult, error) {
	args := m.Called(ctx, r)
	res, _ := args.Get(0).([]maps.GeocodingResult)
	return res, args.Error(1)
}

func TestGoogleProvider_Geocode(t *testing.T) {
	mockClient := &mockGoogleClient{}
	provider := geocoding.NewGoogleProvider(mockClient, slog.Default())
	ctx := t.Context()

	t.Run("api returns error", func(t *testing.T) {
		address := "some invalid place"

		mockClient.On("Geocode", ctx, geocoding.GoogleRequest(address)).Return(nil, assert.AnError).Once()

		_, err := provider.Geocode(ctx, address)

		require.ErrorIs(t, err, assert.AnError)
		mockClient.AssertExpectations(t)
	})

	t.Run("api return empty response", func(t *testing.T) {
		address := "Ingenstans"

		mockClient.On("Geocode", ctx, geocoding.GoogleRequest(address)).Return(nil, nil).Once()

		coords, err := provider.Geocode(ctx, address)

		require.Nil(t, coords)
		require.ErrorIs(t, err, geocoding.ErrEmptyResponse)
		mockClient.AssertExpectations(t)
	})

	t.Run("successful geocoding", func(t *testing.T) {
		address := "Uppsala"
		mockResponse := []maps.GeocodingResult{
			{Geometry: maps.AddressGeometry{Location: maps.LatLng{Lat: 59.8586, Lng: 17.6389}}},
		}

		mockClient.On("Geocode", ctx, geocoding.GoogleRequest(address)).Return(mockResponse, nil).Once()

		coords, err := provider.Geocode(ctx, address)

		require.NoError(t, err)
		require.NotNil(t, coords)
		require.InEpsilon(t, 59.8586, coords.Latitude, 0.0001)
		require.InEpsilon(t, 17.6389, coords.Longitude, 0.0001)
		mockClient.AssertExpectations(t)
	})
}

func TestGoogleRequest(t *testing.T) {
	req := geocoding.GoogleRequest("Knivsta")

	assert.Equal(t, "Knivsta", req.Address)
	assert.Equal(t, "se", req.Region)
	assert.Equal(t, "SE", req.Components[maps.ComponentCountry])
}
