package weather

import (
	"fmt"
	"strings"
)

// Coordinate is a latitude/longitude pair in degrees.
// The zero value stands for "no coordinate".
type Coordinate struct {
	Lat float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lon float64 `json:"lon" validate:"gte=-180,lte=180"`
}

func (c Coordinate) String() string {
	return fmt.Sprintf("%.4f,%.4f", c.Lat, c.Lon)
}

// Place is a display name together with the coordinate it resolves to,
// as produced by geocoding.
type Place struct {
	Name    string     `json:"name"`
	Country string     `json:"country,omitempty"`
	State   string     `json:"state,omitempty"`
	Coord   Coordinate `json:"coord"`
}

// Condition is a short condition label and an icon token.
type Condition struct {
	Text string `json:"text"`
	Icon string `json:"icon"`
}

// IconURL resolves the icon token to an image URL.
func (c Condition) IconURL() string {
	return IconURL(c.Icon)
}

// IconURL resolves an icon token. OpenWeather-style codes ("10d") map to the
// OpenWeather image CDN; tokens that are already URLs are passed through.
func IconURL(token string) string {
	switch {
	case token == "":
		return ""
	case strings.HasPrefix(token, "http://"), strings.HasPrefix(token, "https://"):
		return token
	case strings.HasPrefix(token, "//"):
		return "https:" + token
	default:
		return fmt.Sprintf("https://openweathermap.org/img/wn/%s@2x.png", token)
	}
}

// Conditions is a point-in-time bundle of measurements, in the unit system
// the source was asked for. Values are passed through unvalidated.
type Conditions struct {
	Temperature float64 `json:"temperature"`
	Humidity    int     `json:"humidity"`
	Pressure    float64 `json:"pressure"`
	FeelsLike   float64 `json:"feelsLike"`
}

// Report is what a conditions source returns: the snapshot and zero or more
// condition summaries, most relevant first.
type Report struct {
	Conditions Conditions
	Summaries  []Condition
}

// Record is the unit that is displayed and persisted: where, what it looks
// like, and the measurements.
type Record struct {
	Place      Place      `json:"place"`
	Condition  Condition  `json:"condition"`
	Conditions Conditions `json:"conditions"`
}

// IsEmpty reports whether the record carries no place name.
func (r Record) IsEmpty() bool {
	return strings.TrimSpace(r.Place.Name) == ""
}
