package weather

import (
	"context"
)

// Geocoder resolves names to places and coordinates to places. Both return
// candidates in the order the upstream ranked them; an empty slice means
// nothing matched.
type Geocoder interface {
	ForwardGeocode(ctx context.Context, credential, name string) ([]Place, error)
	ReverseGeocode(ctx context.Context, credential string, coord Coordinate) ([]Place, error)
}

// ConditionsSource fetches current conditions for a coordinate.
type ConditionsSource interface {
	CurrentConditions(ctx context.Context, credential string, coord Coordinate) (Report, error)
}

// Source is a backend that can do both halves of a lookup.
type Source interface {
	Name() string
	Geocoder
	ConditionsSource
}

// Store is the single-slot last-known-location store.
// Load returns the zero Record when nothing has been saved yet.
type Store interface {
	Save(ctx context.Context, rec Record) error
	Load(ctx context.Context) (Record, error)
	Close() error
}
