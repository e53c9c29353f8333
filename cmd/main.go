package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/dzfranklin/liveboard2sqlite"
	"github.com/spf13/pflag"
)

func usageAndDie() {
	fmt.Println("Example usage:\n" +
		"    liveboard2sqlite --serve\n" +
		"    liveboard2sqlite --station Brussels-Central\n" +
		"    liveboard2sqlite --export departures.csv\n" +
		"    liveboard2sqlite --region area_geojson.json")
	os.Exit(1)
}

func main() {
	serveMode := pflag.BoolP("serve", "s", false, "Run the HTTP server and periodic sweeper")
	station := pflag.String("station", "", "Ingest a single station once and print the result")
	exportPath := pflag.StringP("export", "e", "", "Export the departures table to a CSV file")
	regionPath := pflag.StringP("region", "r", "", "List departures toward stations inside the GeoJSON feature in the file specified")

	configPath := pflag.StringP("config", "c", "", "Path to the YAML config file")
	dbPath := pflag.String("db", "", "Override the database path from the config")

	pflag.Parse()

	primaryCount := 0
	if *serveMode {
		primaryCount++
	}
	for _, opt := range []*string{station, exportPath, regionPath} {
		if *opt != "" {
			primaryCount++
		}
	}
	if primaryCount != 1 {
		usageAndDie()
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Error: %s\n", err)
		os.Exit(1)
	}
	if *dbPath != "" {
		cfg.Database = *dbPath
	}

	setupLogging(cfg.Logging.Level)

	if *exportPath != "" {
		err = liveboard2sqlite.ExportCSV(cfg.Database, *exportPath)
	} else if *regionPath != "" {
		err = runRegion(cfg, *regionPath)
	} else if *station != "" {
		err = runOnce(cfg, *station)
	} else {
		err = serve(cfg)
	}

	if err != nil {
		fmt.Printf("Error: %s\n", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*liveboard2sqlite.Config, error) {
	if path == "" {
		cfg := liveboard2sqlite.DefaultConfig()
		return cfg, cfg.Validate()
	}
	return liveboard2sqlite.LoadConfig(path)
}

func setupLogging(level string) {
	lvl := new(slog.LevelVar)
	switch strings.ToLower(level) {
	case "debug":
		lvl.Set(slog.LevelDebug)
	case "warn":
		lvl.Set(slog.LevelWarn)
	case "error":
		lvl.Set(slog.LevelError)
	default:
		lvl.Set(slog.LevelInfo)
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}

func buildIngestor(cfg *liveboard2sqlite.Config) (*liveboard2sqlite.Ingestor, func(), error) {
	store, err := liveboard2sqlite.OpenStore(cfg.Database, 4)
	if err != nil {
		return nil, nil, err
	}

	var cache *liveboard2sqlite.BoardCache
	if cfg.Redis.Addr != "" {
		cache = liveboard2sqlite.NewBoardCache(cfg.Redis.Addr, cfg.RedisTTL())
	}

	ing := &liveboard2sqlite.Ingestor{
		Client: liveboard2sqlite.NewClient(cfg.IRail.BaseURL, cfg.IRailTimeout()),
		Store:  store,
		Cache:  cache,
	}

	cleanup := func() {
		if cache != nil {
			_ = cache.Close()
		}
		_ = store.Close()
	}
	return ing, cleanup, nil
}

func runOnce(cfg *liveboard2sqlite.Config, station string) error {
	ing, cleanup, err := buildIngestor(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := ing.IngestStation(context.Background(), station)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func runRegion(cfg *liveboard2sqlite.Config, featurePath string) error {
	feature, err := os.ReadFile(featurePath)
	if err != nil {
		return err
	}

	store, err := liveboard2sqlite.OpenStore(cfg.Database, 1)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	departures, err := liveboard2sqlite.DeparturesToward(context.Background(), store, string(feature))
	if err != nil {
		return err
	}

	for _, d := range departures {
		fmt.Printf("%s  %s -> %s  platform %s  +%dmin\n",
			d.DepartureTime.Format("2006-01-02 15:04"), d.Station, d.Destination, d.Platform, d.DelayMinutes)
	}
	fmt.Printf("%d departure(s)\n", len(departures))
	return nil
}

func serve(cfg *liveboard2sqlite.Config) error {
	ing, cleanup, err := buildIngestor(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	sweeper := &liveboard2sqlite.Sweeper{
		Ingestor: ing,
		Stations: cfg.Stations,
		Interval: cfg.SweepInterval(),
	}
	sweeper.Start()
	defer sweeper.Stop()

	server := &liveboard2sqlite.Server{
		Ingestor:       ing,
		DefaultStation: cfg.Stations[0],
	}

	slog.Info(fmt.Sprintf("Listening on %s", cfg.Listen))
	return http.ListenAndServe(cfg.Listen, server.Routes())
}
