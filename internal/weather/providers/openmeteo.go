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

const openMeteoBaseURL = "https://api.open-meteo.com/v1"

// OpenMeteoProvider implements weather.ConditionsSource for Open-Meteo.
// It needs no credential and does no geocoding, so it is paired with another
// Geocoder.
type OpenMeteoProvider struct {
	name    string
	baseURL string
	units   string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewOpenMeteoProvider(client *http.Client, baseURL, units string) *OpenMeteoProvider {
	if baseURL == "" {
		baseURL = openMeteoBaseURL
	}

	p := &OpenMeteoProvider{
		name:    "openmeteo",
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

func (p *OpenMeteoProvider) Name() string {
	return p.name
}

// CurrentConditions ignores the credential.
func (p *OpenMeteoProvider) CurrentConditions(ctx context.Context, _ string, coord weather.Coordinate) (weather.Report, error) {
	values := url.Values{}
	values.Set("latitude", formatCoord(coord.Lat))
	values.Set("longitude", formatCoord(coord.Lon))
	values.Set("current", "temperature_2m,relative_humidity_2m,apparent_temperature,surface_pressure,weather_code,is_day")
	if p.units == "imperial" {
		values.Set("temperature_unit", "fahrenheit")
	}

	var payload struct {
		Current *struct {
			Temperature  float64 `json:"temperature_2m"`
			Humidity     float64 `json:"relative_humidity_2m"`
			ApparentTemp float64 `json:"apparent_temperature"`
			Pressure     float64 `json:"surface_pressure"`
			WeatherCode  int     `json:"weather_code"`
			IsDay        int     `json:"is_day"`
		} `json:"current"`
	}

	u := fmt.Sprintf("%s/forecast?%s", p.baseURL, values.Encode())
	if err := getJSON(ctx, p.httpCfg, p.circuit, u, &payload); err != nil {
		return weather.Report{}, err
	}
	if payload.Current == nil {
		return weather.Report{}, weather.ErrEmptyBody
	}

	cur := payload.Current
	return weather.Report{
		Conditions: weather.Conditions{
			Temperature: cur.Temperature,
			Humidity:    int(cur.Humidity + 0.5),
			Pressure:    cur.Pressure,
			FeelsLike:   cur.ApparentTemp,
		},
		Summaries: []weather.Condition{mapOpenMeteoCondition(cur.WeatherCode, cur.IsDay == 1)},
	}, nil
}

// mapOpenMeteoCondition maps WMO weather codes to a label and an
// OpenWeather-style icon code so IconURL can resolve it.
func mapOpenMeteoCondition(code int, day bool) weather.Condition {
	suffix := "n"
	if day {
		suffix = "d"
	}

	switch {
	case code == 0:
		return weather.Condition{Text: "Clear", Icon: "01" + suffix}
	case code >= 1 && code <= 3:
		return weather.Condition{Text: "Clouds", Icon: "03" + suffix}
	case code == 45 || code == 48:
		return weather.Condition{Text: "Fog", Icon: "50" + suffix}
	case code >= 51 && code <= 57:
		return weather.Condition{Text: "Drizzle", Icon: "09" + suffix}
	case (code >= 61 && code <= 67) || (code >= 80 && code <= 82):
		return weather.Condition{Text: "Rain", Icon: "10" + suffix}
	case (code >= 71 && code <= 77) || code == 85 || code == 86:
		return weather.Condition{Text: "Snow", Icon: "13" + suffix}
	case code >= 95:
		return weather.Condition{Text: "Thunderstorm", Icon: "11" + suffix}
	default:
		return weather.Condition{Text: "Unknown", Icon: "03" + suffix}
	}
}
