package liveboard2sqlite

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"crawshaw.io/sqlite"
	"github.com/hexops/gotextdiff"
	"github.com/hexops/gotextdiff/myers"
	"github.com/hexops/gotextdiff/span"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const exportGolden = `station,train_id,destination,platform,departure_time,delay_minutes,canceled,fetched_at
Antwerp-Central,IC1832,Brussels-Central,12,2023-11-14T22:18:20Z,0,false,2023-11-14T22:00:00Z
Brussels-Central,IC529,Leuven,5,2023-11-14T22:13:20Z,2,false,2023-11-14T22:00:00Z
Brussels-Central,S23680,Ghent-Saint-Peter's,Unknown,2023-11-14T22:23:20Z,1,true,2023-11-14T22:00:00Z
`

func TestExportCSV(t *testing.T) {
	outDir := testTempdir(t)
	dbPath := outDir + "/departures.db"

	store, err := OpenStore(dbPath, 1)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.EnsureSchema(ctx))

	batch := []Departure{
		{
			Station: "Brussels-Central", TrainID: "IC529", Destination: "Leuven", Platform: "5",
			DepartureTime: time.Unix(1700000000, 0).UTC(), DelayMinutes: 2, FetchedAt: testFetchedAt,
		},
		{
			Station: "Antwerp-Central", TrainID: "IC1832", Destination: "Brussels-Central", Platform: "12",
			DepartureTime: time.Unix(1700000300, 0).UTC(), FetchedAt: testFetchedAt,
		},
		{
			Station: "Brussels-Central", TrainID: "S23680", Destination: "Ghent-Saint-Peter's", Platform: "Unknown",
			DepartureTime: time.Unix(1700000600, 0).UTC(), DelayMinutes: 1, Canceled: true, FetchedAt: testFetchedAt,
		},
	}
	_, err = store.InsertDepartures(ctx, batch)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	outputPath := outDir + "/departures.csv"
	require.NoError(t, ExportCSV(dbPath, outputPath))

	got, err := os.ReadFile(outputPath)
	require.NoError(t, err)

	edits := myers.ComputeEdits(span.URIFromPath("departures.csv"), exportGolden, string(got))
	if len(edits) > 0 {
		t.Fatal("export differs from golden:\n",
			fmt.Sprint(gotextdiff.ToUnified("golden", "actual", exportGolden, edits)))
	}
}

func TestExportCSVStable(t *testing.T) {
	outDir := testTempdir(t)
	dbPath := outDir + "/departures.db"

	store, err := OpenStore(dbPath, 1)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.EnsureSchema(ctx))
	_, err = store.InsertDepartures(ctx, []Departure{
		dep("Brussels-Central", "IC2", 1700000600, "2"),
		dep("Brussels-Central", "IC1", 1700000000, "1"),
	})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	require.NoError(t, ExportCSV(dbPath, outDir+"/a.csv"))
	require.NoError(t, ExportCSV(dbPath, outDir+"/b.csv"))

	a, err := os.ReadFile(outDir + "/a.csv")
	require.NoError(t, err)
	b, err := os.ReadFile(outDir + "/b.csv")
	require.NoError(t, err)
	require.Equal(t, string(a), string(b))
}

func TestWriteDeparturesCSVRowCount(t *testing.T) {
	dbPath := testTempdir(t) + "/departures.db"

	store, err := OpenStore(dbPath, 1)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.EnsureSchema(ctx))
	_, err = store.InsertDepartures(ctx, []Departure{
		dep("Brussels-Central", "IC1", 1700000000, "1"),
		dep("Brussels-Central", "IC2", 1700000600, "2"),
	})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	conn, err := sqlite.OpenConn(dbPath, sqlite.SQLITE_OPEN_READONLY)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	// The count covers data rows only, not the header line.
	var buf bytes.Buffer
	rowCount, err := writeDeparturesCSV(conn, &buf)
	require.NoError(t, err)
	assert.Equal(t, 2, rowCount)
	assert.Equal(t, 3, bytes.Count(buf.Bytes(), []byte("\n")))
}
