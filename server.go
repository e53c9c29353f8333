package liveboard2sqlite

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// Server exposes the ingestion pipeline over HTTP: /trains triggers an
// ingestion, /latest serves the cached snapshot, /health is a liveness probe.
type Server struct {
	Ingestor       *Ingestor
	DefaultStation string
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/trains", s.handleTrains)
	mux.HandleFunc("/latest", s.handleLatest)
	mux.HandleFunc("/health", s.handleHealth)
	return recoverInternalErrors(mux)
}

func (s *Server) handleTrains(w http.ResponseWriter, r *http.Request) {
	station := r.URL.Query().Get("station")
	if station == "" {
		station = s.DefaultStation
	}

	result, err := s.Ingestor.IngestStation(r.Context(), station)
	status := http.StatusOK
	if err != nil {
		slog.Error("ingestion failed", "station", station, "error", err)
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, result)
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	station := r.URL.Query().Get("station")
	if station == "" {
		station = s.DefaultStation
	}

	cache := s.Ingestor.Cache
	if cache == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"status": "error", "message": "board cache not configured",
		})
		return
	}

	result, ok, err := cache.LatestBoard(station)
	if err != nil {
		slog.Error("cache read failed", "station", station, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"status": "error", "message": "internal server error",
		})
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"status": "error", "message": "no cached board for " + station,
		})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// recoverInternalErrors converts handler panics into a generic internal-error
// body instead of letting them escape.
func recoverInternalErrors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				slog.Error("panic serving request", "path", r.URL.Path, "panic", v)
				writeJSON(w, http.StatusInternalServerError, map[string]string{
					"status": "error", "message": "internal server error",
				})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}

// Sweeper periodically ingests a fixed list of stations. Per-station
// failures are logged and never stop the sweep.
type Sweeper struct {
	Ingestor *Ingestor
	Stations []string
	Interval time.Duration

	stop chan struct{}
	done chan struct{}
}

func (sw *Sweeper) Start() {
	if sw.stop != nil {
		panic("Sweeper already started")
	}
	sw.stop = make(chan struct{})
	sw.done = make(chan struct{})

	go func() {
		defer close(sw.done)
		ticker := time.NewTicker(sw.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				sw.sweep()
			case <-sw.stop:
				return
			}
		}
	}()
}

func (sw *Sweeper) Stop() {
	if sw.stop == nil {
		return
	}
	close(sw.stop)
	<-sw.done
	sw.stop = nil
}

func (sw *Sweeper) sweep() {
	for _, station := range sw.Stations {
		result, err := sw.Ingestor.IngestStation(context.Background(), station)
		if err != nil {
			slog.Error("sweep ingestion failed", "station", station, "error", err)
			continue
		}
		slog.Info("sweep processed station", "station", station, "message", result.Message)
	}
}
