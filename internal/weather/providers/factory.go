package providers

import (
	"fmt"
	"net/http"

	"github.com/i474232898/weather-lookup/internal/logger"
	"github.com/i474232898/weather-lookup/internal/weather"
)

// Selection names the backends to build. Geocoder and Conditions override
// Source for their half of the lookup when set.
type Selection struct {
	Source       string // "openweather" or "weatherapi"
	Geocoder     string // "" or "google"
	Conditions   string // "" or "openmeteo"
	BaseURL      string
	Units        string
	GoogleAPIKey string
}

// Build returns the geocoder and conditions source for sel.
func Build(client *http.Client, sel Selection) (weather.Geocoder, weather.ConditionsSource, error) {
	var src weather.Source
	switch sel.Source {
	case "", "openweather":
		src = NewOpenWeatherProvider(client, sel.BaseURL, sel.Units)
	case "weatherapi":
		src = NewWeatherAPIProvider(client, sel.BaseURL, sel.Units)
	default:
		return nil, nil, fmt.Errorf("unknown weather provider %q", sel.Source)
	}

	var geo weather.Geocoder = src
	switch sel.Geocoder {
	case "":
	case "google":
		if sel.GoogleAPIKey == "" {
			return nil, nil, fmt.Errorf("google geocoder requires GOOGLE_GEOCODING_API_KEY")
		}
		geo = NewGoogleGeocoder(sel.GoogleAPIKey, client.Timeout)
	default:
		return nil, nil, fmt.Errorf("unknown geocoder %q", sel.Geocoder)
	}

	var cond weather.ConditionsSource = src
	switch sel.Conditions {
	case "":
	case "openmeteo":
		cond = NewOpenMeteoProvider(client, "", sel.Units)
	default:
		return nil, nil, fmt.Errorf("unknown conditions provider %q", sel.Conditions)
	}

	logger.Infof("providers: geocoding with %s, conditions from %s", nameOf(geo), nameOf(cond))
	return geo, cond, nil
}

func nameOf(v interface{}) string {
	if n, ok := v.(interface{ Name() string }); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", v)
}
