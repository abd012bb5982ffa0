// Package api serves the runs recorded by the command line tools over HTTP.
package api

import (
	"database/sql"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/sensorbelief/internal/belief"
	"github.com/banshee-data/sensorbelief/internal/constraints"
	"github.com/banshee-data/sensorbelief/internal/db"
	"github.com/banshee-data/sensorbelief/internal/httputil"
	"github.com/banshee-data/sensorbelief/internal/network"
	"github.com/banshee-data/sensorbelief/internal/report"
)

type Server struct {
	db *db.DB
}

func NewServer(store *db.DB) *Server {
	return &Server{db: store}
}

// ServeMux routes:
//
//	GET /runs
//	GET /runs/{id}
//	GET /runs/{id}/constraints   tagged lines, text/plain
//	GET /runs/{id}/decisions?cluster=N
//	GET /runs/{id}/chart         HTML
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /runs", s.listRuns)
	mux.HandleFunc("GET /runs/{id}", s.showRun)
	mux.HandleFunc("GET /runs/{id}/constraints", s.listConstraints)
	mux.HandleFunc("GET /runs/{id}/decisions", s.listDecisions)
	mux.HandleFunc("GET /runs/{id}/chart", s.showChart)
	return mux
}

// LoggingMiddleware logs method, path, status and duration.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sr := &httputil.StatusRecorder{ResponseWriter: w, Status: http.StatusOK}
		next.ServeHTTP(sr, r)
		log.Printf("[%d] %s %s %.2fms", sr.Status, r.Method, r.RequestURI,
			float64(time.Since(start).Nanoseconds())/1e6)
	})
}

type runSummary struct {
	db.Run
	Stats  *belief.Stats  `json:"stats,omitempty"`
	Counts map[string]int `json:"constraint_counts,omitempty"`
}

type decisionJSON struct {
	Epoch      int   `json:"epoch"`
	Suppressed bool  `json:"suppressed"`
	Nodes      []int `json:"nodes"`
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.db.Runs()
	if err != nil {
		httputil.InternalServerError(w, "list runs", err)
		return
	}
	if runs == nil {
		runs = []db.Run{}
	}
	httputil.WriteJSON(w, http.StatusOK, runs)
}

// lookupRun writes a 404 or 500 and returns nil when the run cannot be read.
func (s *Server) lookupRun(w http.ResponseWriter, r *http.Request) *db.Run {
	run, err := s.db.GetRun(r.PathValue("id"))
	if errors.Is(err, sql.ErrNoRows) {
		httputil.NotFound(w, "run not found")
		return nil
	}
	if err != nil {
		httputil.InternalServerError(w, "get run", err)
		return nil
	}
	return run
}

func (s *Server) showRun(w http.ResponseWriter, r *http.Request) {
	run := s.lookupRun(w, r)
	if run == nil {
		return
	}
	out := runSummary{Run: *run}
	switch run.Kind {
	case db.RunSuppress:
		st, err := s.db.DecisionStats(run.ID)
		if err != nil {
			httputil.InternalServerError(w, "decision stats", err)
			return
		}
		out.Stats = &st
	case db.RunConstraints:
		counts, err := s.db.ConstraintCounts(run.ID)
		if err != nil {
			httputil.InternalServerError(w, "constraint counts", err)
			return
		}
		out.Counts = make(map[string]int, len(counts))
		for k, n := range counts {
			out.Counts[k.String()] = n
		}
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (s *Server) listConstraints(w http.ResponseWriter, r *http.Request) {
	run := s.lookupRun(w, r)
	if run == nil {
		return
	}
	stored, err := s.db.Constraints(run.ID)
	if err != nil {
		httputil.InternalServerError(w, "list constraints", err)
		return
	}
	cs := make([]constraints.Constraint, len(stored))
	for i, sc := range stored {
		cs[i] = sc.Constraint
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if err := constraints.NewEncoder(w).Encode(cs...); err != nil {
		log.Printf("failed to write constraints: %v", err)
	}
}

func (s *Server) listDecisions(w http.ResponseWriter, r *http.Request) {
	run := s.lookupRun(w, r)
	if run == nil {
		return
	}
	cluster := 0
	if v := r.URL.Query().Get("cluster"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			httputil.WriteJSONError(w, http.StatusBadRequest, "cluster must be a non-negative integer")
			return
		}
		cluster = n
	}
	decisions, err := s.db.Decisions(run.ID, cluster)
	if err != nil {
		httputil.InternalServerError(w, "list decisions", err)
		return
	}
	out := make([]decisionJSON, len(decisions))
	for i, d := range decisions {
		out[i] = decisionJSON{Epoch: d.Epoch, Suppressed: d.Suppressed, Nodes: d.Nodes}
		if out[i].Nodes == nil {
			out[i].Nodes = []int{}
		}
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (s *Server) showChart(w http.ResponseWriter, r *http.Request) {
	run := s.lookupRun(w, r)
	if run == nil {
		return
	}

	var series []report.Series
	var counts map[constraints.Kind]int
	switch run.Kind {
	case db.RunSuppress:
		clusters, err := s.db.DecisionClusters(run.ID)
		if err != nil {
			httputil.InternalServerError(w, "list clusters", err)
			return
		}
		results := make([]network.SuppressResult, 0, len(clusters))
		for _, c := range clusters {
			ds, err := s.db.Decisions(run.ID, c)
			if err != nil {
				httputil.InternalServerError(w, "list decisions", err)
				return
			}
			results = append(results, network.SuppressResult{Cluster: c, Decisions: ds})
		}
		series = report.TransmissionSeries(results)
	default:
		var err error
		counts, err = s.db.ConstraintCounts(run.ID)
		if err != nil {
			httputil.InternalServerError(w, "constraint counts", err)
			return
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := report.RenderHTML(w, run.Kind+" "+run.ID, series, counts); err != nil {
		log.Printf("failed to render chart: %v", err)
	}
}
