package liveboard2sqlite

import (
	"fmt"
	"strings"
)

type tableSchema struct {
	Columns []columnSchema
	Indexes []indexSchema
}

type columnSchema struct {
	Name       string
	Definition string
}

type indexSchema struct {
	Name    string
	Columns []string
}

// boardSchema describes the persisted tables. DDL is generated with
// IF NOT EXISTS so ensuring the schema is safe to invoke repeatedly, and
// safe to race from concurrent ingestions.
var boardSchema = map[string]tableSchema{
	"train_departures": {
		Columns: []columnSchema{
			{"id", "INTEGER PRIMARY KEY AUTOINCREMENT"},
			{"station", "TEXT NOT NULL"},
			{"train_id", "TEXT NOT NULL"},
			{"destination", "TEXT NOT NULL"},
			{"platform", "TEXT"},
			{"departure_time", "INTEGER NOT NULL"},
			{"delay_minutes", "INTEGER NOT NULL DEFAULT 0"},
			{"canceled", "INTEGER NOT NULL DEFAULT 0"},
			{"fetched_at", "INTEGER NOT NULL"},
		},
		Indexes: []indexSchema{
			// Supports range queries over one station's board.
			{"ix_station_departure_time", []string{"station", "departure_time"}},
		},
	},

	"stations": {
		Columns: []columnSchema{
			{"name", "TEXT PRIMARY KEY"},
			{"lon", "REAL"},
			{"lat", "REAL"},
			{"last_seen", "INTEGER NOT NULL"},
		},
	},
}

func createTableSQL(table string, schema tableSchema) string {
	var columnFragments []string
	for _, column := range schema.Columns {
		columnFragments = append(columnFragments, column.Name+" "+column.Definition)
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", table, strings.Join(columnFragments, ", "))
}

func createIndexSQL(table string, index indexSchema) string {
	return fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)",
		index.Name, table, strings.Join(index.Columns, ", "))
}
