package screen

import (
	"fmt"

	"github.com/i474232898/weather-lookup/internal/weather"
)

// Kind tags the variant of a DisplayState.
type Kind int

const (
	NoSelection Kind = iota
	SearchResultAvailable
	SearchResultNotFound
	SelectionActive
)

func (k Kind) String() string {
	switch k {
	case NoSelection:
		return "no_selection"
	case SearchResultAvailable:
		return "search_result_available"
	case SearchResultNotFound:
		return "search_result_not_found"
	case SelectionActive:
		return "selection_active"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

func (k Kind) MarshalText() ([]byte, error) {
	switch k {
	case NoSelection, SearchResultAvailable, SearchResultNotFound, SelectionActive:
		return []byte(k.String()), nil
	default:
		return nil, fmt.Errorf("invalid display state kind %d", int(k))
	}
}

// DisplayState is what the screen shows. Record is set exactly for
// SearchResultAvailable and SelectionActive.
type DisplayState struct {
	Kind   Kind            `json:"state"`
	Record *weather.Record `json:"record,omitempty"`
}

func NoSelectionState() DisplayState {
	return DisplayState{Kind: NoSelection}
}

func NotFoundState() DisplayState {
	return DisplayState{Kind: SearchResultNotFound}
}

func AvailableState(rec weather.Record) DisplayState {
	return DisplayState{Kind: SearchResultAvailable, Record: &rec}
}

func ActiveState(rec weather.Record) DisplayState {
	return DisplayState{Kind: SelectionActive, Record: &rec}
}

// restoredState maps a stored record to the state shown on startup.
func restoredState(rec weather.Record) DisplayState {
	if rec.IsEmpty() {
		return NoSelectionState()
	}
	return ActiveState(rec)
}
