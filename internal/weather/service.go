package weather

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/i474232898/weather-lookup/internal/logger"
)

// Service runs the two-stage lookup: resolve a place, then fetch its current
// conditions, and merge both into a Record.
type Service struct {
	geocoder   Geocoder
	conditions ConditionsSource
}

// NewService creates a new Service.
func NewService(geocoder Geocoder, conditions ConditionsSource) *Service {
	return &Service{
		geocoder:   geocoder,
		conditions: conditions,
	}
}

// LookupByName geocodes the query and fetches conditions at the first
// candidate's coordinate. Failures are always *LookupError.
func (s *Service) LookupByName(ctx context.Context, query, credential string) (Record, error) {
	id := uuid.NewString()
	logger.Debugf("lookup %s: by name %q", id, query)

	place, lerr := resolve(s.geocoder.ForwardGeocode(ctx, credential, query))
	if lerr != nil {
		return Record{}, s.fail(id, lerr)
	}

	rec, lerr := s.fetch(ctx, credential, place, place.Coord)
	if lerr != nil {
		return Record{}, s.fail(id, lerr)
	}
	logger.Debugf("lookup %s: resolved %q to %q", id, query, rec.Place.Name)
	return rec, nil
}

// LookupByCoordinate reverse geocodes the coordinate for a display name and
// fetches conditions at the input coordinate, not at the one reverse
// geocoding returned.
func (s *Service) LookupByCoordinate(ctx context.Context, lat, lon float64, credential string) (Record, error) {
	id := uuid.NewString()
	coord := Coordinate{Lat: lat, Lon: lon}
	logger.Debugf("lookup %s: by coordinate %s", id, coord)

	place, lerr := resolve(s.geocoder.ReverseGeocode(ctx, credential, coord))
	if lerr != nil {
		return Record{}, s.fail(id, lerr)
	}

	rec, lerr := s.fetch(ctx, credential, place, coord)
	if lerr != nil {
		return Record{}, s.fail(id, lerr)
	}
	logger.Debugf("lookup %s: %s is %q", id, coord, rec.Place.Name)
	return rec, nil
}

// resolve picks the first geocoding candidate. An empty body counts as an
// empty sequence.
func resolve(places []Place, err error) (Place, *LookupError) {
	if err != nil && !errors.Is(err, ErrEmptyBody) {
		return Place{}, classify("geocode", err)
	}
	place, ok := first(places)
	if !ok {
		return Place{}, classify("geocode", errNoPlace)
	}
	return place, nil
}

func (s *Service) fetch(ctx context.Context, credential string, place Place, at Coordinate) (Record, *LookupError) {
	report, err := s.conditions.CurrentConditions(ctx, credential, at)
	if err != nil {
		return Record{}, classify("conditions", err)
	}
	summary, ok := first(report.Summaries)
	if !ok {
		return Record{}, classify("conditions", errNoCondition)
	}
	return Record{
		Place:      place,
		Condition:  summary,
		Conditions: report.Conditions,
	}, nil
}

func (s *Service) fail(id string, err *LookupError) error {
	logger.Warnf("lookup %s failed: %v", id, err)
	return err
}

func first[T any](items []T) (T, bool) {
	if len(items) == 0 {
		var zero T
		return zero, false
	}
	return items[0], true
}
