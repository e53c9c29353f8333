package liveboard2sqlite

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"crawshaw.io/sqlite"
	"crawshaw.io/sqlite/sqlitex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTempdir(t *testing.T) string {
	dir, err := os.MkdirTemp("", "")
	require.NoError(t, err)
	t.Cleanup(func() {
		if t.Failed() {
			fmt.Println("Preserving tempdir after failed test", dir)
		} else {
			_ = os.RemoveAll(dir)
		}
	})
	return dir
}

func testStore(t *testing.T) *Store {
	store, err := OpenStore(testTempdir(t)+"/departures.db", 2)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.EnsureSchema(context.Background()))
	return store
}

func TestEnsureSchemaIdempotent(t *testing.T) {
	dbPath := testTempdir(t) + "/departures.db"
	store, err := OpenStore(dbPath, 1)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.EnsureSchema(ctx))
	require.NoError(t, store.EnsureSchema(ctx))
	require.NoError(t, store.Close())

	conn, err := sqlite.OpenConn(dbPath, sqlite.SQLITE_OPEN_READONLY)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	var count int
	err = sqlitex.Exec(conn,
		"SELECT count(*) AS count FROM sqlite_master WHERE type = 'table' AND name = 'train_departures'",
		func(stmt *sqlite.Stmt) error {
			count = int(stmt.GetInt64("count"))
			return nil
		})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestInsertDepartures(t *testing.T) {
	ctx := context.Background()

	t.Run("empty batch is a no-op", func(t *testing.T) {
		store := testStore(t)
		count, err := store.InsertDepartures(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, 0, count)
	})

	t.Run("returns submitted count and round-trips", func(t *testing.T) {
		store := testStore(t)
		batch := []Departure{
			{
				Station:       "Brussels-Central",
				TrainID:       "IC529",
				Destination:   "Leuven",
				Platform:      "5",
				DepartureTime: time.Unix(1700000000, 0).UTC(),
				DelayMinutes:  2,
				Canceled:      false,
				FetchedAt:     testFetchedAt,
			},
			{
				Station:       "Brussels-Central",
				TrainID:       "IC530",
				Destination:   "Antwerp-Central",
				Platform:      "Unknown",
				DepartureTime: time.Unix(1700000600, 0).UTC(),
				DelayMinutes:  0,
				Canceled:      true,
				FetchedAt:     testFetchedAt,
			},
		}

		count, err := store.InsertDepartures(ctx, batch)
		require.NoError(t, err)
		assert.Equal(t, 2, count)

		got, err := store.DeparturesFor(ctx, "Brussels-Central",
			time.Unix(1699999999, 0), time.Unix(1700001000, 0))
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, batch[0], got[0])
		assert.Equal(t, batch[1], got[1])
	})

	t.Run("range query excludes outside rows", func(t *testing.T) {
		store := testStore(t)
		batch := []Departure{
			dep("Brussels-Central", "IC1", 1700000000, "1"),
			dep("Brussels-Central", "IC2", 1700003600, "2"),
		}
		_, err := store.InsertDepartures(ctx, batch)
		require.NoError(t, err)

		got, err := store.DeparturesFor(ctx, "Brussels-Central",
			time.Unix(1700000000, 0), time.Unix(1700003600, 0))
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "IC1", got[0].TrainID)
	})

	t.Run("repeated inserts across calls are accepted", func(t *testing.T) {
		// Deduplication is local to one batch; equivalent rows from separate
		// ingestion calls both land.
		store := testStore(t)
		batch := []Departure{dep("Brussels-Central", "IC529", 1700000000, "5")}

		_, err := store.InsertDepartures(ctx, batch)
		require.NoError(t, err)
		_, err = store.InsertDepartures(ctx, batch)
		require.NoError(t, err)

		got, err := store.DeparturesFor(ctx, "Brussels-Central",
			time.Unix(1700000000, 0), time.Unix(1700000001, 0))
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})
}

func TestUpsertStations(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)

	first := []StationPoint{{Name: "Leuven", Lon: 4.7, Lat: 50.8, LastSeen: testFetchedAt}}
	require.NoError(t, store.UpsertStations(ctx, first))

	// Same station again with fresher data replaces the row.
	second := []StationPoint{{Name: "Leuven", Lon: 4.715866, Lat: 50.88228, LastSeen: testFetchedAt.Add(time.Hour)}}
	require.NoError(t, store.UpsertStations(ctx, second))

	conn, err := store.conn(ctx)
	require.NoError(t, err)
	defer store.pool.Put(conn)

	rows := 0
	err = sqlitex.Exec(conn, "SELECT name, lon FROM stations", func(stmt *sqlite.Stmt) error {
		rows++
		assert.Equal(t, "Leuven", stmt.GetText("name"))
		assert.InDelta(t, 4.715866, stmt.GetFloat("lon"), 1e-9)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, rows)
}
