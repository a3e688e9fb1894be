package screen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-lookup/internal/store"
	"github.com/i474232898/weather-lookup/internal/weather"
	"github.com/i474232898/weather-lookup/internal/weather/providers"
)

func record(name string) weather.Record {
	return weather.Record{
		Place:      weather.Place{Name: name, Country: "GB", Coord: weather.Coordinate{Lat: 51.5, Lon: -0.12}},
		Condition:  weather.Condition{Text: "Clear", Icon: "01d"},
		Conditions: weather.Conditions{Temperature: 60, Humidity: 40, Pressure: 1020, FeelsLike: 58},
	}
}

// fakeLookup answers from fixed tables. A channel in gates holds the named
// query until it is closed.
type fakeLookup struct {
	mu          sync.Mutex
	byName      map[string]weather.Record
	byCoord     map[weather.Coordinate]weather.Record
	gates       map[string]chan struct{}
	credentials []string
}

func (f *fakeLookup) LookupByName(ctx context.Context, query, credential string) (weather.Record, error) {
	f.mu.Lock()
	f.credentials = append(f.credentials, credential)
	gate := f.gates[query]
	rec, ok := f.byName[query]
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return weather.Record{}, ctx.Err()
		}
	}
	if !ok {
		return weather.Record{}, &weather.LookupError{Kind: weather.KindPlaceNotFound, Stage: "geocode"}
	}
	return rec, nil
}

func (f *fakeLookup) LookupByCoordinate(ctx context.Context, lat, lon float64, credential string) (weather.Record, error) {
	rec, ok := f.byCoord[weather.Coordinate{Lat: lat, Lon: lon}]
	if !ok {
		return weather.Record{}, &weather.LookupError{Kind: weather.KindHTTP, Stage: "conditions", Status: 403}
	}
	return rec, nil
}

type failingStore struct {
	store.MemoryStore
	saves int
	mu    sync.Mutex
}

func (s *failingStore) Save(ctx context.Context, rec weather.Record) error {
	s.mu.Lock()
	s.saves++
	s.mu.Unlock()
	return errors.New("disk full")
}

// countingStore is a MemoryStore that counts saves.
type countingStore struct {
	store.MemoryStore
	mu    sync.Mutex
	saves int
}

func (s *countingStore) Save(ctx context.Context, rec weather.Record) error {
	s.mu.Lock()
	s.saves++
	s.mu.Unlock()
	return s.MemoryStore.Save(ctx, rec)
}

func (s *countingStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

func newController(t *testing.T, lookup Lookuper, st weather.Store) *Controller {
	t.Helper()
	c := New(context.Background(), lookup, st, "cred")
	t.Cleanup(c.Close)
	return c
}

func TestInitialStateFromEmptyStore(t *testing.T) {
	c := newController(t, &fakeLookup{}, store.NewMemoryStore())

	s, err := c.State()
	require.NoError(t, err)
	assert.Equal(t, NoSelectionState(), s)
}

func TestInitialStateFromStoredRecord(t *testing.T) {
	st := store.NewMemoryStore()
	require.NoError(t, st.Save(context.Background(), record("Oslo")))

	c := newController(t, &fakeLookup{}, st)
	s, err := c.State()
	require.NoError(t, err)
	assert.Equal(t, ActiveState(record("Oslo")), s)
}

func TestSearchNameGate(t *testing.T) {
	lookup := &fakeLookup{byName: map[string]weather.Record{
		"London":      record("London"),
		"london":      record("London"),
		"Londonderry": record("London"),
	}}

	tests := []struct {
		query string
		want  Kind
	}{
		{query: "London", want: SearchResultAvailable},
		{query: "  london  ", want: SearchResultAvailable},
		{query: "Londonderry", want: SearchResultNotFound},
		{query: "Atlantis", want: SearchResultNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			c := newController(t, lookup, store.NewMemoryStore())
			s, err := c.Search(context.Background(), tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.want, s.Kind)
			if tt.want == SearchResultAvailable {
				require.NotNil(t, s.Record)
				assert.Equal(t, "London", s.Record.Place.Name)
			} else {
				assert.Nil(t, s.Record)
			}
		})
	}
	assert.Contains(t, lookup.credentials, "cred")
}

func TestSearchRejectsDifferentResolvedName(t *testing.T) {
	lookup := &fakeLookup{byName: map[string]weather.Record{
		"London": record("Londonderry"),
		"York":   record("New York"),
	}}

	for _, query := range []string{"London", "York"} {
		t.Run(query, func(t *testing.T) {
			c := newController(t, lookup, store.NewMemoryStore())
			s, err := c.Search(context.Background(), query)
			require.NoError(t, err)
			assert.Equal(t, NotFoundState(), s)
		})
	}
}

// forbiddenSource geocodes every name to London and rejects every
// conditions request.
type forbiddenSource struct{}

func (forbiddenSource) ForwardGeocode(_ context.Context, _, name string) ([]weather.Place, error) {
	return []weather.Place{{Name: name, Coord: weather.Coordinate{Lat: 51.5, Lon: -0.12}}}, nil
}

func (forbiddenSource) ReverseGeocode(_ context.Context, _ string, coord weather.Coordinate) ([]weather.Place, error) {
	return []weather.Place{{Name: "London", Coord: coord}}, nil
}

func (forbiddenSource) CurrentConditions(context.Context, string, weather.Coordinate) (weather.Report, error) {
	return weather.Report{}, &weather.StatusError{Code: 403, Body: "forbidden"}
}

func TestSearchLookupFailureShowsNotFound(t *testing.T) {
	st := store.NewMemoryStore()
	require.NoError(t, st.Save(context.Background(), record("Oslo")))
	svc := weather.NewService(forbiddenSource{}, forbiddenSource{})
	c := newController(t, svc, st)

	s, err := c.Search(context.Background(), "London")
	require.NoError(t, err)
	assert.Equal(t, NotFoundState(), s)

	_, err = c.Confirm(context.Background())
	assert.ErrorIs(t, err, ErrNothingToConfirm)

	saved, err := st.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, record("Oslo"), saved)
}

func TestConfirmPersistsAndClearsQuery(t *testing.T) {
	st := store.NewMemoryStore()
	c := newController(t, &fakeLookup{byName: map[string]weather.Record{"Paris": record("Paris")}}, st)
	ctx := context.Background()

	_, err := c.Search(ctx, "Paris")
	require.NoError(t, err)
	q, _ := c.Query()
	assert.Equal(t, "Paris", q)

	s, err := c.Confirm(ctx)
	require.NoError(t, err)
	assert.Equal(t, ActiveState(record("Paris")), s)

	q, _ = c.Query()
	assert.Empty(t, q)

	c.Close()
	saved, err := st.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, record("Paris"), saved)
}

func TestConfirmWithoutResult(t *testing.T) {
	c := newController(t, &fakeLookup{}, store.NewMemoryStore())

	s, err := c.Confirm(context.Background())
	assert.ErrorIs(t, err, ErrNothingToConfirm)
	assert.Equal(t, NoSelection, s.Kind)

	_, err = c.Search(context.Background(), "Nowhere")
	require.NoError(t, err)
	s, err = c.Confirm(context.Background())
	assert.ErrorIs(t, err, ErrNothingToConfirm)
	assert.Equal(t, SearchResultNotFound, s.Kind)
}

func TestReselectionIsIdempotent(t *testing.T) {
	st := store.NewMemoryStore()
	c := newController(t, &fakeLookup{byName: map[string]weather.Record{"Rome": record("Rome")}}, st)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := c.Search(ctx, "Rome")
		require.NoError(t, err)
		s, err := c.Confirm(ctx)
		require.NoError(t, err)
		assert.Equal(t, ActiveState(record("Rome")), s)
	}

	s, err := c.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, ActiveState(record("Rome")), s)
}

func TestConfirmActiveSelectionIsNoop(t *testing.T) {
	st := &countingStore{}
	c := newController(t, &fakeLookup{byName: map[string]weather.Record{"Rome": record("Rome")}}, st)
	ctx := context.Background()

	_, err := c.Search(ctx, "Rome")
	require.NoError(t, err)
	first, err := c.Confirm(ctx)
	require.NoError(t, err)

	second, err := c.Confirm(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, ActiveState(record("Rome")), second)

	c.Close()
	assert.Equal(t, 1, st.count())
}

func TestBlankSearchRestoresSelection(t *testing.T) {
	c := newController(t, &fakeLookup{byName: map[string]weather.Record{"Rome": record("Rome")}}, store.NewMemoryStore())
	ctx := context.Background()

	s, err := c.Search(ctx, "   ")
	require.NoError(t, err)
	assert.Equal(t, NoSelectionState(), s)

	_, err = c.Search(ctx, "Rome")
	require.NoError(t, err)
	_, err = c.Confirm(ctx)
	require.NoError(t, err)
	_, err = c.Search(ctx, "Atlantis")
	require.NoError(t, err)

	// The restore is queued behind the save, so it sees Rome.
	s, err = c.Search(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, ActiveState(record("Rome")), s)
}

func TestLocationGranted(t *testing.T) {
	st := store.NewMemoryStore()
	lookup := &fakeLookup{byCoord: map[weather.Coordinate]weather.Record{
		{Lat: 40.71, Lon: -74.0}: record("New York"),
	}}
	c := newController(t, lookup, st)
	ctx := context.Background()

	s, err := c.LocationGranted(ctx, 40.71, -74.0)
	require.NoError(t, err)
	assert.Equal(t, ActiveState(record("New York")), s)

	s, err = c.LocationGranted(ctx, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, NotFoundState(), s)

	c.Close()
	saved, err := st.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "New York", saved.Place.Name)
}

func TestSaveFailureIsNotSurfaced(t *testing.T) {
	st := &failingStore{}
	c := newController(t, &fakeLookup{byName: map[string]weather.Record{"Rome": record("Rome")}}, st)
	ctx := context.Background()

	_, err := c.Search(ctx, "Rome")
	require.NoError(t, err)
	s, err := c.Confirm(ctx)
	require.NoError(t, err)
	assert.Equal(t, SelectionActive, s.Kind)

	c.Close()
	assert.Equal(t, 1, st.saves)
}

func TestStaleResultIsDropped(t *testing.T) {
	gate := make(chan struct{})
	lookup := &fakeLookup{
		byName: map[string]weather.Record{"Slow": record("Slow"), "Fast": record("Fast")},
		gates:  map[string]chan struct{}{"Slow": gate},
	}
	c := newController(t, lookup, store.NewMemoryStore())
	ctx := context.Background()

	slowDone := make(chan DisplayState, 1)
	go func() {
		s, _ := c.Search(ctx, "Slow")
		slowDone <- s
	}()

	// Wait until the slow search is in flight.
	require.Eventually(t, func() bool {
		q, _ := c.Query()
		return q == "Slow"
	}, time.Second, 5*time.Millisecond)

	s, err := c.Search(ctx, "Fast")
	require.NoError(t, err)
	assert.Equal(t, AvailableState(record("Fast")), s)

	// The superseded lookup was cancelled and its result ignored.
	select {
	case s := <-slowDone:
		if s.Record != nil {
			assert.Equal(t, "Fast", s.Record.Place.Name)
		}
	case <-time.After(time.Second):
		t.Fatal("slow search did not return after being superseded")
	}

	close(gate)
	s, err = c.State()
	require.NoError(t, err)
	assert.Equal(t, "Fast", s.Record.Place.Name)
}

func TestClosedControllerRejectsIntents(t *testing.T) {
	c := New(context.Background(), &fakeLookup{}, store.NewMemoryStore(), "")
	c.Close()
	c.Close()

	_, err := c.State()
	assert.ErrorIs(t, err, ErrClosed)
	_, err = c.Search(context.Background(), "x")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestDisplayStateJSON(t *testing.T) {
	b, err := json.Marshal(NoSelectionState())
	require.NoError(t, err)
	assert.JSONEq(t, `{"state":"no_selection"}`, string(b))

	b, err = json.Marshal(ActiveState(record("Oslo")))
	require.NoError(t, err)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, "selection_active", out["state"])
	assert.Contains(t, out, "record")

	_, err = json.Marshal(DisplayState{Kind: Kind(42)})
	assert.Error(t, err)
}

func TestSupersededSearchesKeepProviderUsable(t *testing.T) {
	arrived := make(chan struct{}, 16)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/geo/1.0/direct":
			if r.URL.Query().Get("q") != "London" {
				arrived <- struct{}{}
				<-r.Context().Done()
				return
			}
			fmt.Fprint(w, `[{"name":"London","lat":51.5073,"lon":-0.1276,"country":"GB"}]`)
		case "/data/2.5/weather":
			fmt.Fprint(w, `{"weather":[{"main":"Rain","icon":"10d"}],
				"main":{"temp":39.4,"feels_like":38.9,"pressure":1012,"humidity":100}}`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	p := providers.NewOpenWeatherProvider(srv.Client(), srv.URL, "imperial")
	c := newController(t, weather.NewService(p, p), store.NewMemoryStore())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 2*int(providers.DefaultBreaker.ConsecutiveFailures); i++ {
		wg.Add(1)
		go func(q string) {
			defer wg.Done()
			c.Search(ctx, q)
		}(fmt.Sprintf("Lon%d", i))
		<-arrived
	}

	s, err := c.Search(ctx, "London")
	wg.Wait()
	require.NoError(t, err)
	assert.Equal(t, SearchResultAvailable, s.Kind)
	require.NotNil(t, s.Record)
	assert.Equal(t, "London", s.Record.Place.Name)
}
