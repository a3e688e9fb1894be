package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-lookup/internal/weather"
)

const weatherAPIBaseURL = "https://api.weatherapi.com/v1"

// WeatherAPIProvider implements weather.Source for WeatherAPI.com. Its search
// endpoint serves both directions of geocoding.
type WeatherAPIProvider struct {
	name    string
	baseURL string
	metric  bool
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewWeatherAPIProvider(client *http.Client, baseURL, units string) *WeatherAPIProvider {
	if baseURL == "" {
		baseURL = weatherAPIBaseURL
	}

	p := &WeatherAPIProvider{
		name:    "weatherapi",
		baseURL: strings.TrimRight(baseURL, "/"),
		metric:  units == "metric",
		httpCfg: HTTPClientConfig{
			Client:  client,
			Breaker: DefaultBreaker,
		},
	}
	p.circuit = newBreaker(p.name, p.httpCfg.Breaker)
	return p
}

func (p *WeatherAPIProvider) Name() string {
	return p.name
}

func (p *WeatherAPIProvider) ForwardGeocode(ctx context.Context, credential, name string) ([]weather.Place, error) {
	return p.search(ctx, credential, name)
}

// ReverseGeocode uses the search endpoint with a "lat,lon" query, which
// returns the nearest named locations.
func (p *WeatherAPIProvider) ReverseGeocode(ctx context.Context, credential string, coord weather.Coordinate) ([]weather.Place, error) {
	return p.search(ctx, credential, fmt.Sprintf("%s,%s", formatCoord(coord.Lat), formatCoord(coord.Lon)))
}

func (p *WeatherAPIProvider) search(ctx context.Context, credential, q string) ([]weather.Place, error) {
	values := url.Values{}
	values.Set("key", credential)
	values.Set("q", q)

	var payload []struct {
		Name    string  `json:"name"`
		Region  string  `json:"region"`
		Country string  `json:"country"`
		Lat     float64 `json:"lat"`
		Lon     float64 `json:"lon"`
	}

	u := fmt.Sprintf("%s/search.json?%s", p.baseURL, values.Encode())
	if err := getJSON(ctx, p.httpCfg, p.circuit, u, &payload); err != nil {
		return nil, err
	}

	places := make([]weather.Place, 0, len(payload))
	for _, item := range payload {
		places = append(places, weather.Place{
			Name:    item.Name,
			Country: item.Country,
			State:   item.Region,
			Coord:   weather.Coordinate{Lat: item.Lat, Lon: item.Lon},
		})
	}
	return places, nil
}

func (p *WeatherAPIProvider) CurrentConditions(ctx context.Context, credential string, coord weather.Coordinate) (weather.Report, error) {
	values := url.Values{}
	values.Set("key", credential)
	// WeatherAPI uses "q" for location; it accepts "lat,lon".
	values.Set("q", fmt.Sprintf("%s,%s", formatCoord(coord.Lat), formatCoord(coord.Lon)))

	var payload struct {
		Current *struct {
			TempC      float64 `json:"temp_c"`
			TempF      float64 `json:"temp_f"`
			FeelsLikeC float64 `json:"feelslike_c"`
			FeelsLikeF float64 `json:"feelslike_f"`
			Humidity   int     `json:"humidity"`
			PressureMb float64 `json:"pressure_mb"`
			PressureIn float64 `json:"pressure_in"`
			Condition  struct {
				Text string `json:"text"`
				Icon string `json:"icon"`
			} `json:"condition"`
		} `json:"current"`
	}

	u := fmt.Sprintf("%s/current.json?%s", p.baseURL, values.Encode())
	if err := getJSON(ctx, p.httpCfg, p.circuit, u, &payload); err != nil {
		return weather.Report{}, err
	}
	if payload.Current == nil {
		return weather.Report{}, weather.ErrEmptyBody
	}

	cur := payload.Current
	conditions := weather.Conditions{
		Temperature: cur.TempF,
		Humidity:    cur.Humidity,
		Pressure:    cur.PressureIn,
		FeelsLike:   cur.FeelsLikeF,
	}
	if p.metric {
		conditions.Temperature = cur.TempC
		conditions.Pressure = cur.PressureMb
		conditions.FeelsLike = cur.FeelsLikeC
	}

	var summaries []weather.Condition
	if cur.Condition.Text != "" || cur.Condition.Icon != "" {
		summaries = append(summaries, weather.Condition{Text: cur.Condition.Text, Icon: cur.Condition.Icon})
	}

	return weather.Report{Conditions: conditions, Summaries: summaries}, nil
}
