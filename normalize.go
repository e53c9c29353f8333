package liveboard2sqlite

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// looseString accepts JSON strings, numbers, and booleans. The liveboard API
// is inconsistent about quoting numeric fields.
type looseString string

func (ls *looseString) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*ls = ""
		return nil
	}
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*ls = looseString(s)
		return nil
	}
	*ls = looseString(trimmed)
	return nil
}

func (ls looseString) String() string { return string(ls) }

// RawDeparture is one untrusted liveboard entry. It is read-only input,
// discarded after normalization.
type RawDeparture struct {
	Vehicle     looseString `json:"vehicle"`
	Platform    looseString `json:"platform"`
	Time        looseString `json:"time"`
	Delay       looseString `json:"delay"`
	Canceled    looseString `json:"canceled"`
	StationInfo StationInfo `json:"stationinfo"`
}

// StationInfo is the nested station object the API attaches to each
// departure, describing the destination.
type StationInfo struct {
	Name         looseString `json:"name"`
	StandardName looseString `json:"standardname"`
	LocationX    looseString `json:"locationX"`
	LocationY    looseString `json:"locationY"`
}

// Departure is a fully validated, normalized departure row. Every instance
// satisfies the field bounds; partially validated records are never created.
type Departure struct {
	Station       string
	TrainID       string
	Destination   string
	Platform      string
	DepartureTime time.Time
	DelayMinutes  int
	Canceled      bool
	FetchedAt     time.Time
}

// Key returns the identity triple used for deduplication.
func (d Departure) Key() DepartureKey {
	return DepartureKey{
		Station:       d.Station,
		TrainID:       d.TrainID,
		DepartureTime: d.DepartureTime.Unix(),
	}
}

type DepartureKey struct {
	Station       string
	TrainID       string
	DepartureTime int64
}

// normalizeDeparture turns one raw entry into a Departure or fails with a
// *ValidationError. station must already be validated.
func normalizeDeparture(raw RawDeparture, station string, fetchedAt time.Time) (Departure, error) {
	trainID := ValidateTrainID(raw.Vehicle.String())

	destination := strings.TrimSpace(raw.StationInfo.Name.String())
	if destination == "" || destination == unknownField {
		return Departure{}, validationErrorf("destination", "missing")
	}

	departureTime, err := ValidateTimestamp(raw.Time.String())
	if err != nil {
		return Departure{}, err
	}

	canceled, err := parseCanceled(raw.Canceled.String())
	if err != nil {
		return Departure{}, err
	}

	return Departure{
		Station:       station,
		TrainID:       trainID,
		Destination:   destination,
		Platform:      ValidatePlatform(raw.Platform.String()),
		DepartureTime: departureTime,
		DelayMinutes:  ValidateDelay(raw.Delay.String()),
		Canceled:      canceled,
		FetchedAt:     fetchedAt,
	}, nil
}

// parseCanceled coerces the upstream 0/1 flag: non-zero means canceled,
// absent means not.
func parseCanceled(s string) (bool, error) {
	if s == "" {
		return false, nil
	}
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return false, validationErrorf("canceled", "not an integer: %q", s)
	}
	return v != 0, nil
}

// SkippedDeparture records one raw entry dropped during batch normalization.
type SkippedDeparture struct {
	Index int
	Raw   RawDeparture
	Err   error
}

// BatchResult separates the survivors of a normalization pass from the
// entries it dropped. Per-record failures never abort the rest of the batch.
type BatchResult struct {
	Records []Departure
	Skipped []SkippedDeparture
}

// NormalizeBatch normalizes each raw entry independently, accumulating valid
// records and reporting the rest as skipped.
func NormalizeBatch(raws []RawDeparture, station string, fetchedAt time.Time) BatchResult {
	var result BatchResult
	for i, raw := range raws {
		record, err := normalizeDeparture(raw, station, fetchedAt)
		if err != nil {
			result.Skipped = append(result.Skipped, SkippedDeparture{Index: i, Raw: raw, Err: err})
			continue
		}
		result.Records = append(result.Records, record)
	}
	return result
}
