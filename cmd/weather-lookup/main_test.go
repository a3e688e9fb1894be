package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-lookup/internal/screen"
	"github.com/i474232898/weather-lookup/internal/weather"
)

var tokyo = weather.Record{
	Place:      weather.Place{Name: "Tokyo", Country: "JP", Coord: weather.Coordinate{Lat: 35.68, Lon: 139.69}},
	Condition:  weather.Condition{Text: "Rain", Icon: "10n"},
	Conditions: weather.Conditions{Temperature: 61.6, Humidity: 88, Pressure: 1009.4, FeelsLike: 60.2},
}

func TestRenderText(t *testing.T) {
	tests := []struct {
		name     string
		state    screen.DisplayState
		contains []string
		excludes []string
	}{
		{
			name:     "no selection",
			state:    screen.NoSelectionState(),
			contains: []string{"No City Selected", "Please Search For A City"},
		},
		{
			name:     "not found",
			state:    screen.NotFoundState(),
			contains: []string{"City Not Found"},
		},
		{
			name:     "search result",
			state:    screen.AvailableState(tokyo),
			contains: []string{"Tokyo, JP", "62°  Rain", "https://openweathermap.org/img/wn/10n@2x.png"},
			excludes: []string{"Humidity"},
		},
		{
			name:     "selection",
			state:    screen.ActiveState(tokyo),
			contains: []string{"Tokyo, JP", "Humidity    88%", "Pressure    1009", "Feels Like  60°"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, render(&buf, "text", tt.state))
			for _, s := range tt.contains {
				assert.Contains(t, buf.String(), s)
			}
			for _, s := range tt.excludes {
				assert.NotContains(t, buf.String(), s)
			}
		})
	}
}

func TestRenderJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, render(&buf, "json", screen.ActiveState(tokyo)))

	var out struct {
		State  string         `json:"state"`
		Record weather.Record `json:"record"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, "selection_active", out.State)
	assert.Equal(t, tokyo, out.Record)
}

func TestRenderRejectsBadInput(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, render(&buf, "xml", screen.NoSelectionState()))
	assert.Error(t, render(&buf, "text", screen.DisplayState{Kind: screen.SelectionActive}))
	assert.Error(t, render(&buf, "text", screen.DisplayState{Kind: screen.Kind(9)}))
}

func TestParseCoordinate(t *testing.T) {
	coord, err := parseCoordinate("40.7128", "-74.0060")
	require.NoError(t, err)
	assert.Equal(t, weather.Coordinate{Lat: 40.7128, Lon: -74.006}, coord)

	_, err = parseCoordinate("north", "0")
	assert.Error(t, err)
	_, err = parseCoordinate("91", "0")
	assert.Error(t, err)
	_, err = parseCoordinate("0", "181")
	assert.Error(t, err)
}

func newOpenWeatherServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/geo/1.0/direct":
			fmt.Fprint(w, `[{"name":"London","lat":51.5073,"lon":-0.1276,"country":"GB"}]`)
		case "/data/2.5/weather":
			fmt.Fprint(w, `{"weather":[{"main":"Rain","icon":"10d"}],
				"main":{"temp":39.4,"feels_like":38.9,"pressure":1012,"humidity":100}}`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func runCommand(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs(args)
	require.NoError(t, cmd.ExecuteContext(context.Background()))
	return out.String()
}

func TestSelectionSurvivesBetweenCommands(t *testing.T) {
	srv := newOpenWeatherServer(t)
	env := map[string]string{
		"CONFIG_PATH":         "",
		"WEATHER_API_KEY":     "k",
		"WEATHER_PROVIDER":    "openweather",
		"GEOCODER":            "",
		"CONDITIONS_PROVIDER": "",
		"WEATHER_BASE_URL":    srv.URL,
		"UNITS":               "",
		"HTTP_TIMEOUT":        "",
		"STORE_DRIVER":        "sqlite3",
		"STORE_DSN":           filepath.Join(t.TempDir(), "last_location.db"),
		"LOG_LEVEL":           "ERROR",
	}
	for k, v := range env {
		t.Setenv(k, v)
	}

	assert.Contains(t, runCommand(t, "show"), "No City Selected")

	out := runCommand(t, "search", "London", "--select")
	assert.Contains(t, out, "London, GB")
	assert.Contains(t, out, "Humidity    100%")

	out = runCommand(t, "show")
	assert.Contains(t, out, "London, GB")
	assert.Contains(t, out, "Feels Like  39°")

	var shown struct {
		State  string         `json:"state"`
		Record weather.Record `json:"record"`
	}
	require.NoError(t, json.Unmarshal([]byte(runCommand(t, "show", "-o", "json")), &shown))
	assert.Equal(t, "selection_active", shown.State)
	assert.Equal(t, "London", shown.Record.Place.Name)
}
