package providers

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/kelvins/geocoder"

	"github.com/i474232898/weather-lookup/internal/weather"
)

// googleMu guards writes to geocoder.ApiKey, which the library keeps in a
// package variable. The process therefore holds one Google key: the most
// recently constructed geocoder's.
var googleMu sync.Mutex

// GoogleGeocoder implements weather.Geocoder with the Google Geocoding API.
// It authenticates with its own key and ignores the lookup credential.
type GoogleGeocoder struct {
	timeout time.Duration
}

// NewGoogleGeocoder sets the library key. Each call is bounded by timeout
// when it is positive.
func NewGoogleGeocoder(apiKey string, timeout time.Duration) *GoogleGeocoder {
	googleMu.Lock()
	geocoder.ApiKey = apiKey
	googleMu.Unlock()
	return &GoogleGeocoder{timeout: timeout}
}

func (g *GoogleGeocoder) Name() string {
	return "google"
}

// ForwardGeocode resolves the name to a coordinate, then reverse geocodes
// that coordinate so the returned place carries Google's own spelling of the
// city rather than an echo of the query.
func (g *GoogleGeocoder) ForwardGeocode(ctx context.Context, _ string, name string) ([]weather.Place, error) {
	var loc geocoder.Location
	var addrs []geocoder.Address
	err := g.call(ctx, func() error {
		var err error
		loc, err = geocoder.Geocoding(geocoder.Address{City: name})
		if err != nil {
			return err
		}
		addrs, err = geocoder.GeocodingReverse(loc)
		return err
	})
	if err != nil {
		return nil, mapGoogleError(err)
	}

	coord := weather.Coordinate{Lat: loc.Latitude, Lon: loc.Longitude}
	place, ok := placeFromAddresses(addrs, coord)
	if !ok {
		return nil, nil
	}
	return []weather.Place{place}, nil
}

func (g *GoogleGeocoder) ReverseGeocode(ctx context.Context, _ string, coord weather.Coordinate) ([]weather.Place, error) {
	var addrs []geocoder.Address
	err := g.call(ctx, func() error {
		var err error
		addrs, err = geocoder.GeocodingReverse(geocoder.Location{Latitude: coord.Lat, Longitude: coord.Lon})
		return err
	})
	if err != nil {
		return nil, mapGoogleError(err)
	}

	place, ok := placeFromAddresses(addrs, coord)
	if !ok {
		return nil, nil
	}
	return []weather.Place{place}, nil
}

// call runs fn until it returns, ctx ends or the timeout elapses. The library
// takes no context and its client has no deadline, so an expired call is
// abandoned rather than interrupted. Abandoned calls hold nothing that later
// calls wait on.
func (g *GoogleGeocoder) call(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	done := make(chan error, 1)
	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func placeFromAddresses(addrs []geocoder.Address, coord weather.Coordinate) (weather.Place, bool) {
	for _, a := range addrs {
		name := strings.TrimSpace(a.City)
		if name == "" {
			name = strings.TrimSpace(a.FormattedAddress)
		}
		if name == "" {
			continue
		}
		return weather.Place{
			Name:    name,
			Country: a.Country,
			State:   a.State,
			Coord:   coord,
		}, true
	}
	return weather.Place{}, false
}

// mapGoogleError turns the API status strings into the errors the lookup
// service classifies. ZERO_RESULTS is an empty answer, not a failure.
func mapGoogleError(err error) error {
	msg := err.Error()
	switch {
	case hasStatus(msg, "ZERO_RESULTS"):
		return nil
	case hasStatus(msg, "REQUEST_DENIED"):
		return &weather.StatusError{Code: http.StatusForbidden, Body: msg}
	case hasStatus(msg, "INVALID_REQUEST"):
		return &weather.StatusError{Code: http.StatusBadRequest, Body: msg}
	case hasStatus(msg, "OVER_QUERY_LIMIT", "OVER_DAILY_LIMIT"):
		return &weather.StatusError{Code: http.StatusTooManyRequests, Body: msg}
	default:
		return err
	}
}

// hasStatus reports whether the library error carries one of the API statuses.
func hasStatus(msg string, statuses ...string) bool {
	for _, status := range statuses {
		if strings.Contains(msg, status) {
			return true
		}
	}
	return false
}
