package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-lookup/internal/weather"
)

const (
	openWeatherBaseURL = "https://api.openweathermap.org"
	geocodeLimit       = 5
)

// OpenWeatherProvider implements weather.Source on top of the OpenWeatherMap
// geocoding and current weather APIs.
type OpenWeatherProvider struct {
	name    string
	baseURL string
	units   string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

// NewOpenWeatherProvider creates the provider. An empty baseURL means the
// public API; units is one of "imperial", "metric" or "standard".
func NewOpenWeatherProvider(client *http.Client, baseURL, units string) *OpenWeatherProvider {
	if baseURL == "" {
		baseURL = openWeatherBaseURL
	}
	if units == "" {
		units = "imperial"
	}

	p := &OpenWeatherProvider{
		name:    "openweather",
		baseURL: strings.TrimRight(baseURL, "/"),
		units:   units,
		httpCfg: HTTPClientConfig{
			Client:  client,
			Breaker: DefaultBreaker,
		},
	}
	p.circuit = newBreaker(p.name, p.httpCfg.Breaker)
	return p
}

func (p *OpenWeatherProvider) Name() string {
	return p.name
}

type owPlace struct {
	Name    string  `json:"name"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Country string  `json:"country"`
	State   string  `json:"state"`
}

func (o owPlace) toPlace() weather.Place {
	return weather.Place{
		Name:    o.Name,
		Country: o.Country,
		State:   o.State,
		Coord:   weather.Coordinate{Lat: o.Lat, Lon: o.Lon},
	}
}

// ForwardGeocode calls /geo/1.0/direct.
func (p *OpenWeatherProvider) ForwardGeocode(ctx context.Context, credential, name string) ([]weather.Place, error) {
	values := url.Values{}
	values.Set("appid", credential)
	values.Set("q", name)
	values.Set("limit", strconv.Itoa(geocodeLimit))

	return p.geocode(ctx, "/geo/1.0/direct", values)
}

// ReverseGeocode calls /geo/1.0/reverse.
func (p *OpenWeatherProvider) ReverseGeocode(ctx context.Context, credential string, coord weather.Coordinate) ([]weather.Place, error) {
	values := url.Values{}
	values.Set("appid", credential)
	values.Set("lat", formatCoord(coord.Lat))
	values.Set("lon", formatCoord(coord.Lon))
	values.Set("limit", "1")

	return p.geocode(ctx, "/geo/1.0/reverse", values)
}

func (p *OpenWeatherProvider) geocode(ctx context.Context, path string, values url.Values) ([]weather.Place, error) {
	var payload []owPlace
	u := fmt.Sprintf("%s%s?%s", p.baseURL, path, values.Encode())
	if err := getJSON(ctx, p.httpCfg, p.circuit, u, &payload); err != nil {
		return nil, err
	}

	places := make([]weather.Place, 0, len(payload))
	for _, item := range payload {
		places = append(places, item.toPlace())
	}
	return places, nil
}

// CurrentConditions calls /data/2.5/weather.
func (p *OpenWeatherProvider) CurrentConditions(ctx context.Context, credential string, coord weather.Coordinate) (weather.Report, error) {
	values := url.Values{}
	values.Set("appid", credential)
	values.Set("lat", formatCoord(coord.Lat))
	values.Set("lon", formatCoord(coord.Lon))
	values.Set("units", p.units)

	var payload struct {
		Main struct {
			Temp      float64 `json:"temp"`
			FeelsLike float64 `json:"feels_like"`
			Humidity  int     `json:"humidity"`
			Pressure  float64 `json:"pressure"`
		} `json:"main"`
		Weather []struct {
			Main        string `json:"main"`
			Description string `json:"description"`
			Icon        string `json:"icon"`
		} `json:"weather"`
	}

	u := fmt.Sprintf("%s/data/2.5/weather?%s", p.baseURL, values.Encode())
	if err := getJSON(ctx, p.httpCfg, p.circuit, u, &payload); err != nil {
		return weather.Report{}, err
	}

	summaries := make([]weather.Condition, 0, len(payload.Weather))
	for _, w := range payload.Weather {
		summaries = append(summaries, weather.Condition{Text: w.Main, Icon: w.Icon})
	}

	return weather.Report{
		Conditions: weather.Conditions{
			Temperature: payload.Main.Temp,
			Humidity:    payload.Main.Humidity,
			Pressure:    payload.Main.Pressure,
			FeelsLike:   payload.Main.FeelsLike,
		},
		Summaries: summaries,
	}, nil
}
