package liveboard2sqlite

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"

	"crawshaw.io/sqlite"
	"crawshaw.io/sqlite/sqlitex"
)

// ExportCSV dumps the departures table to a CSV file in a stable order so
// two exports of the same database are byte-identical.
func ExportCSV(inputPath string, outputPath string) error {
	if inputPath == "" {
		panic("Missing inputPath")
	}
	if outputPath == "" {
		panic("Missing outputPath")
	}

	slog.Info(fmt.Sprintf("Exporting %s to %s", inputPath, outputPath))

	db, err := sqlite.OpenConn(inputPath, sqlite.SQLITE_OPEN_READONLY)
	if err != nil {
		return err
	}
	defer func() {
		if db != nil {
			_ = db.Close()
		}
	}()

	outputF, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	defer func() { _ = outputF.Close() }()

	rowCount, err := writeDeparturesCSV(db, outputF)
	if err != nil {
		return err
	}
	slog.Info(fmt.Sprintf("Wrote %d rows", rowCount))

	if err := outputF.Close(); err != nil {
		return err
	}

	err = db.Close()
	db = nil
	if err != nil {
		return err
	}

	slog.Info(fmt.Sprintf("Wrote %s", outputPath))
	return nil
}

var exportHeader = []string{
	"station", "train_id", "destination", "platform",
	"departure_time", "delay_minutes", "canceled", "fetched_at",
}

// writeDeparturesCSV returns the number of data rows written, excluding the
// header.
func writeDeparturesCSV(db *sqlite.Conn, w io.Writer) (int, error) {
	outputCSV := csv.NewWriter(w)

	if err := outputCSV.Write(exportHeader); err != nil {
		return 0, err
	}
	rowCount := 0

	query := `SELECT station, train_id, destination, platform,
departure_time, delay_minutes, canceled, fetched_at
FROM train_departures ORDER BY station, departure_time, train_id, id`
	err := sqlitex.Exec(db, query, func(stmt *sqlite.Stmt) error {
		d := departureFromRow(stmt)
		row := []string{
			d.Station,
			d.TrainID,
			d.Destination,
			d.Platform,
			d.DepartureTime.Format(time.RFC3339),
			strconv.Itoa(d.DelayMinutes),
			strconv.FormatBool(d.Canceled),
			d.FetchedAt.Format(time.RFC3339),
		}
		if err := outputCSV.Write(row); err != nil {
			return err
		}
		rowCount++
		return nil
	})
	if err != nil {
		return 0, err
	}

	outputCSV.Flush()
	return rowCount, outputCSV.Error()
}
