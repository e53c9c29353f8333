package liveboard2sqlite

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"crawshaw.io/sqlite"
	"crawshaw.io/sqlite/sqlitex"
	"github.com/tidwall/geojson"
	"github.com/tidwall/geojson/geometry"
)

// stationPoints extracts destination coordinates from a raw batch. Entries
// without a usable name or coordinate pair are skipped silently; coordinates
// are a bonus on top of the departure itself.
func stationPoints(raws []RawDeparture, seenAt time.Time) []StationPoint {
	var out []StationPoint
	seen := make(map[string]bool)
	for _, raw := range raws {
		name := strings.TrimSpace(raw.StationInfo.Name.String())
		if name == "" || seen[name] {
			continue
		}

		lon, errX := strconv.ParseFloat(raw.StationInfo.LocationX.String(), 64)
		lat, errY := strconv.ParseFloat(raw.StationInfo.LocationY.String(), 64)
		if errX != nil || errY != nil {
			continue
		}

		seen[name] = true
		out = append(out, StationPoint{Name: name, Lon: lon, Lat: lat, LastSeen: seenAt})
	}
	return out
}

// DeparturesToward returns stored departures whose destination station lies
// inside the given GeoJSON feature.
func DeparturesToward(ctx context.Context, store *Store, featureJSON string) ([]Departure, error) {
	feature, err := geojson.Parse(featureJSON, &geojson.ParseOptions{RequireValid: true})
	if err != nil {
		return nil, fmt.Errorf("parse region feature: %w", err)
	}

	conn, err := store.conn(ctx)
	if err != nil {
		return nil, &PersistenceError{Op: "query region", Err: err}
	}
	defer store.pool.Put(conn)

	insideCount := 0
	totalCount := 0
	var inside []string
	err = sqlitex.Exec(conn, "SELECT name, lon, lat FROM stations", func(stmt *sqlite.Stmt) error {
		totalCount++
		point := geojson.NewPoint(geometry.Point{X: stmt.GetFloat("lon"), Y: stmt.GetFloat("lat")})
		if feature.Contains(point) {
			insideCount++
			inside = append(inside, stmt.GetText("name"))
		}
		return nil
	})
	if err != nil {
		return nil, &PersistenceError{Op: "query region", Err: err}
	}
	slog.Info(fmt.Sprintf("%d of %d known stations are inside the region", insideCount, totalCount))

	if len(inside) == 0 {
		return nil, nil
	}

	var argFragments []string
	args := make([]interface{}, len(inside))
	for i, name := range inside {
		argFragments = append(argFragments, fmt.Sprintf("?%d", i+1))
		args[i] = name
	}
	query := fmt.Sprintf(`SELECT station, train_id, destination, platform,
departure_time, delay_minutes, canceled, fetched_at
FROM train_departures WHERE destination IN (%s) ORDER BY departure_time`,
		strings.Join(argFragments, ", "))

	var out []Departure
	err = sqlitex.Exec(conn, query, func(stmt *sqlite.Stmt) error {
		out = append(out, departureFromRow(stmt))
		return nil
	}, args...)
	if err != nil {
		return nil, &PersistenceError{Op: "query region", Err: err}
	}
	return out, nil
}
