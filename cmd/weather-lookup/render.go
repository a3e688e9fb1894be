package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/i474232898/weather-lookup/internal/screen"
	"github.com/i474232898/weather-lookup/internal/weather"
)

// render writes s in the given output format ("text" or "json").
func render(w io.Writer, format string, s screen.DisplayState) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	case "text", "":
		return renderText(w, s)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func renderText(w io.Writer, s screen.DisplayState) error {
	switch s.Kind {
	case screen.NoSelection:
		_, err := fmt.Fprintln(w, "No City Selected\nPlease Search For A City")
		return err
	case screen.SearchResultNotFound:
		_, err := fmt.Fprintln(w, "City Not Found")
		return err
	case screen.SearchResultAvailable:
		if s.Record == nil {
			return fmt.Errorf("%s state without a record", s.Kind)
		}
		return renderSummary(w, *s.Record)
	case screen.SelectionActive:
		if s.Record == nil {
			return fmt.Errorf("%s state without a record", s.Kind)
		}
		if err := renderSummary(w, *s.Record); err != nil {
			return err
		}
		return renderDetails(w, *s.Record)
	default:
		return fmt.Errorf("unknown display state %s", s.Kind)
	}
}

// renderSummary is the search result card: place, temperature and condition.
func renderSummary(w io.Writer, rec weather.Record) error {
	place := rec.Place.Name
	if rec.Place.Country != "" {
		place = fmt.Sprintf("%s, %s", place, rec.Place.Country)
	}
	_, err := fmt.Fprintf(w, "%s\n%.0f°  %s\n%s\n",
		place,
		rec.Conditions.Temperature,
		rec.Condition.Text,
		rec.Condition.IconURL(),
	)
	return err
}

func renderDetails(w io.Writer, rec weather.Record) error {
	_, err := fmt.Fprintf(w, "Humidity    %d%%\nPressure    %.0f\nFeels Like  %.0f°\n",
		rec.Conditions.Humidity,
		rec.Conditions.Pressure,
		rec.Conditions.FeelsLike,
	)
	return err
}
