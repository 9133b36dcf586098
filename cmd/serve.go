package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"sort"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/firwatch/notamwatch/internal/ledger"
	"github.com/firwatch/notamwatch/internal/model"
	"github.com/firwatch/notamwatch/internal/state"
)

var servePort int

// statusServer exposes a read-only view over the state file and run ledger.
// The state file is re-read per request; the monitor rewrites it atomically,
// so readers always see a consistent aggregate.
type statusServer struct {
	statePath string
	ledger    ledger.Store
}

// activeRecord is the API view of one tracked NOTAM.
type activeRecord struct {
	ID          model.Identity  `json:"id"`
	Number      string          `json:"number"`
	FIR         string          `json:"fir"`
	Text        string          `json:"text"`
	LastSeen    time.Time       `json:"last_seen"`
	Subject     string          `json:"subject,omitempty"`
	Condition   string          `json:"condition,omitempty"`
	Severity    model.Severity  `json:"severity,omitempty"`
	Explanation string          `json:"explanation,omitempty"`
	Pending     bool            `json:"pending,omitempty"`
}

func (s *statusServer) router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet},
	}))

	r.Get("/healthz", s.handleHealth)
	r.Get("/api/runs", s.handleRuns)
	r.Get("/api/active", s.handleActive)
	r.Get("/api/active.geojson", s.handleActiveGeoJSON)
	return r
}

func (s *statusServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *statusServer) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		limit = n
	}

	runs, err := s.ledger.List(r.Context(), limit)
	if err != nil {
		zap.L().Error("serve: list runs", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "ledger unavailable"})
		return
	}
	if runs == nil {
		runs = []model.RunStats{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *statusServer) loadActive() ([]activeRecord, *state.Aggregate, error) {
	agg, err := state.Load(s.statePath)
	if err != nil {
		return nil, nil, err
	}

	out := make([]activeRecord, 0, len(agg.Active.Raw))
	for id, raw := range agg.Active.Raw {
		rec := activeRecord{
			ID:       id,
			Number:   raw.Number,
			FIR:      raw.FIR,
			Text:     raw.Text,
			LastSeen: raw.LastSeen,
		}
		if dec, ok := agg.Active.Decoded[id]; ok && dec.OK() {
			rec.Subject = dec.Interp.Subject
			rec.Condition = dec.Interp.Condition
		}
		if exp, ok := agg.Active.Explained[id]; ok {
			rec.Severity = exp.Severity
			rec.Explanation = exp.Text
		}
		if _, ok := agg.Pending[id]; ok {
			rec.Pending = true
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, agg, nil
}

func (s *statusServer) handleActive(w http.ResponseWriter, r *http.Request) {
	records, _, err := s.loadActive()
	if err != nil {
		zap.L().Error("serve: load state", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "state unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// handleActiveGeoJSON renders the active set as a FeatureCollection. Records
// whose decode produced no coordinates are omitted.
func (s *statusServer) handleActiveGeoJSON(w http.ResponseWriter, r *http.Request) {
	records, agg, err := s.loadActive()
	if err != nil {
		zap.L().Error("serve: load state", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "state unavailable"})
		return
	}

	fc := geojson.FeatureCollection{Features: []*geojson.Feature{}}
	for _, rec := range records {
		dec, ok := agg.Active.Decoded[rec.ID]
		if !ok {
			continue
		}
		centre := dec.Interp.Centre()
		if centre == nil {
			continue
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:       string(rec.ID),
			Geometry: centre,
			Properties: map[string]any{
				"number":    rec.Number,
				"subject":   rec.Subject,
				"condition": rec.Condition,
				"severity":  string(rec.Severity),
				"radius_nm": dec.Interp.RadiusNM,
			},
		})
	}

	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(&fc); err != nil {
		zap.L().Error("serve: encode geojson", zap.Error(err))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("serve: encode response", zap.Error(err))
	}
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the read-only status server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		led, err := initLedger(ctx)
		if err != nil {
			return err
		}
		defer led.Close()

		s := &statusServer{statePath: cfg.State.Path, ledger: led}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: s.router(),
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting status server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
