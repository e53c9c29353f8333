package liveboard2sqlite

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"crawshaw.io/sqlite"
	"crawshaw.io/sqlite/sqlitex"
)

// Store persists normalized departures to a SQLite database. A single Store
// is safe for concurrent ingestion calls; connections come from a pool and
// all DDL is idempotent.
type Store struct {
	pool *sqlitex.Pool
}

func OpenStore(path string, poolSize int) (*Store, error) {
	if path == "" {
		panic("Missing path")
	}
	if poolSize <= 0 {
		poolSize = 4
	}

	pool, err := sqlitex.Open(path, 0, poolSize)
	if err != nil {
		return nil, &PersistenceError{Op: "open database", Err: err}
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() error {
	return s.pool.Close()
}

func (s *Store) conn(ctx context.Context) (*sqlite.Conn, error) {
	conn := s.pool.Get(ctx)
	if conn == nil {
		err := ctx.Err()
		if err == nil {
			err = errors.New("connection pool closed")
		}
		return nil, err
	}
	return conn, nil
}

// EnsureSchema creates the departure tables and indexes if absent. It is
// safe to invoke repeatedly and safe to race with another ingestion.
func (s *Store) EnsureSchema(ctx context.Context) error {
	conn, err := s.conn(ctx)
	if err != nil {
		return &PersistenceError{Op: "ensure schema", Err: err}
	}
	defer s.pool.Put(conn)

	for table, schema := range boardSchema {
		if err := sqlitex.ExecTransient(conn, createTableSQL(table, schema), sqlitexNoop); err != nil {
			return &PersistenceError{Op: "ensure schema", Err: err}
		}
		for _, index := range schema.Indexes {
			if err := sqlitex.ExecTransient(conn, createIndexSQL(table, index), sqlitexNoop); err != nil {
				return &PersistenceError{Op: "ensure schema", Err: err}
			}
		}
	}
	return nil
}

const insertDepartureSQL = `INSERT INTO train_departures
(station, train_id, destination, platform, departure_time, delay_minutes, canceled, fetched_at)
VALUES (?1, ?2, ?3, ?4, ?5, ?6, ?7, ?8)`

// InsertDepartures writes a deduplicated batch as one unit of work and
// returns the number of rows submitted. The count is deliberately the
// submitted count, not a server-reported affected-row count. An empty batch
// is a no-op and never touches a connection.
func (s *Store) InsertDepartures(ctx context.Context, batch []Departure) (int, error) {
	if len(batch) == 0 {
		slog.Info("no departures to store")
		return 0, nil
	}

	conn, err := s.conn(ctx)
	if err != nil {
		return 0, &PersistenceError{Op: "insert departures", Err: err}
	}
	defer s.pool.Put(conn)

	if err := insertAll(conn, batch); err != nil {
		return 0, &PersistenceError{Op: "insert departures", Err: err}
	}
	return len(batch), nil
}

func insertAll(conn *sqlite.Conn, batch []Departure) (err error) {
	defer sqlitex.Save(conn)(&err)

	stmt, err := conn.Prepare(insertDepartureSQL)
	if err != nil {
		return err
	}

	for _, d := range batch {
		if err := stmt.Reset(); err != nil {
			return err
		}
		if err := stmt.ClearBindings(); err != nil {
			return err
		}

		stmt.BindText(1, d.Station)
		stmt.BindText(2, d.TrainID)
		stmt.BindText(3, d.Destination)
		stmt.BindText(4, d.Platform)
		stmt.BindInt64(5, d.DepartureTime.Unix())
		stmt.BindInt64(6, int64(d.DelayMinutes))
		stmt.BindBool(7, d.Canceled)
		stmt.BindInt64(8, d.FetchedAt.Unix())

		if _, err := stmt.Step(); err != nil {
			return err
		}
	}
	return nil
}

// StationPoint is a destination station's coordinates as reported upstream.
type StationPoint struct {
	Name     string
	Lon      float64
	Lat      float64
	LastSeen time.Time
}

const upsertStationSQL = `INSERT INTO stations (name, lon, lat, last_seen) VALUES (?1, ?2, ?3, ?4)
ON CONFLICT(name) DO UPDATE SET lon = excluded.lon, lat = excluded.lat, last_seen = excluded.last_seen`

// UpsertStations records the coordinates of stations seen as destinations.
func (s *Store) UpsertStations(ctx context.Context, points []StationPoint) error {
	if len(points) == 0 {
		return nil
	}

	conn, err := s.conn(ctx)
	if err != nil {
		return &PersistenceError{Op: "upsert stations", Err: err}
	}
	defer s.pool.Put(conn)

	for _, p := range points {
		err := sqlitex.Exec(conn, upsertStationSQL, sqlitexNoop, p.Name, p.Lon, p.Lat, p.LastSeen.Unix())
		if err != nil {
			return &PersistenceError{Op: "upsert stations", Err: err}
		}
	}
	return nil
}

const selectDeparturesSQL = `SELECT station, train_id, destination, platform,
departure_time, delay_minutes, canceled, fetched_at
FROM train_departures WHERE station = ?1 AND departure_time >= ?2 AND departure_time < ?3
ORDER BY departure_time`

// DeparturesFor returns stored departures for one station within
// [from, to), in departure-time order.
func (s *Store) DeparturesFor(ctx context.Context, station string, from, to time.Time) ([]Departure, error) {
	conn, err := s.conn(ctx)
	if err != nil {
		return nil, &PersistenceError{Op: "query departures", Err: err}
	}
	defer s.pool.Put(conn)

	var out []Departure
	err = sqlitex.Exec(conn, selectDeparturesSQL, func(stmt *sqlite.Stmt) error {
		out = append(out, departureFromRow(stmt))
		return nil
	}, station, from.Unix(), to.Unix())
	if err != nil {
		return nil, &PersistenceError{Op: "query departures", Err: err}
	}
	return out, nil
}

func departureFromRow(stmt *sqlite.Stmt) Departure {
	return Departure{
		Station:       stmt.GetText("station"),
		TrainID:       stmt.GetText("train_id"),
		Destination:   stmt.GetText("destination"),
		Platform:      stmt.GetText("platform"),
		DepartureTime: time.Unix(stmt.GetInt64("departure_time"), 0).UTC(),
		DelayMinutes:  int(stmt.GetInt64("delay_minutes")),
		Canceled:      stmt.GetInt64("canceled") != 0,
		FetchedAt:     time.Unix(stmt.GetInt64("fetched_at"), 0).UTC(),
	}
}

func sqlitexNoop(stmt *sqlite.Stmt) error { return nil }
