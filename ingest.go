package liveboard2sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// Result is the status report for one station ingestion. It is the JSON body
// served by the HTTP surface.
type Result struct {
	Status        string `json:"status"`
	Station       string `json:"station"`
	TrainsFetched int    `json:"trains_fetched"`
	TrainsStored  int    `json:"trains_stored"`
	Message       string `json:"message"`
}

// Ingestor runs the fetch -> normalize -> dedupe -> persist pipeline for one
// station at a time. Concurrent calls against the same Store are fine; there
// is no cross-call coordination, so logically-equivalent rows may repeat
// across separate ingestion calls.
type Ingestor struct {
	Client *Client
	Store  *Store
	Cache  *BoardCache // optional

	// Now is overridable for tests; nil means time.Now.
	Now func() time.Time
}

func (ing *Ingestor) now() time.Time {
	if ing.Now != nil {
		return ing.Now().UTC()
	}
	return time.Now().UTC()
}

// IngestStation processes one station's batch start to finish. The returned
// Result is always populated; err is non-nil exactly when Result.Status is
// "error".
func (ing *Ingestor) IngestStation(ctx context.Context, station string) (Result, error) {
	normalized, err := ValidateStationName(station)
	if err != nil {
		return errorResult(station, err), err
	}

	raws, err := ing.Client.Liveboard(ctx, normalized)
	if err != nil {
		return errorResult(normalized, err), err
	}
	slog.Info(fmt.Sprintf("Fetched %d departures for %s", len(raws), normalized))

	fetchedAt := ing.now()
	batch := NormalizeBatch(raws, normalized, fetchedAt)
	for _, skip := range batch.Skipped {
		payload, _ := json.Marshal(skip.Raw)
		slog.Warn("skipping invalid departure record",
			"index", skip.Index, "reason", skip.Err, "payload", string(payload))
	}

	records := Dedupe(batch.Records)

	if err := ing.Store.EnsureSchema(ctx); err != nil {
		return errorResult(normalized, err), err
	}

	stored, err := ing.Store.InsertDepartures(ctx, records)
	if err != nil {
		return errorResult(normalized, err), err
	}

	// Destination coordinates and the cached snapshot are best-effort; a
	// failure here never fails an otherwise-stored batch.
	if err := ing.Store.UpsertStations(ctx, stationPoints(raws, fetchedAt)); err != nil {
		slog.Warn("failed to record station coordinates", "station", normalized, "error", err)
	}

	result := Result{
		Status:        "success",
		Station:       normalized,
		TrainsFetched: len(raws),
		TrainsStored:  stored,
		Message:       fmt.Sprintf("Successfully processed %d departures for %s", stored, normalized),
	}

	if ing.Cache != nil {
		if err := ing.Cache.PutBoard(normalized, result); err != nil {
			slog.Warn("failed to cache board snapshot", "station", normalized, "error", err)
		}
	}

	return result, nil
}

func errorResult(station string, err error) Result {
	return Result{Status: "error", Station: station, Message: err.Error()}
}
