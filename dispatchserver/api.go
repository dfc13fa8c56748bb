package dispatchserver

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"
)

// installHTTPAPI wires the REST surface: triggering solves, reading back
// results, and browsing the audit trail.
func (s *Server) installHTTPAPI(mux *http.ServeMux) {
	mux.HandleFunc("/api/network", s.serveNetwork)
	mux.HandleFunc("/api/solve", s.serveSolveCommand)
	mux.HandleFunc("/api/solution", s.serveSolution)
	mux.HandleFunc("/api/solution/trains/", s.serveTrainTrajectory)
	mux.HandleFunc("/api/audit", serveAudit)
	mux.HandleFunc("/api/metrics/snapshot", serveMetricsSnapshot)
}

// GET /api/network
func (s *Server) serveNetwork(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	net := s.inst.Network()
	type vertexOut struct {
		Index int    `json:"index"`
		Name  string `json:"name"`
		Type  string `json:"type"`
	}
	type edgeOut struct {
		Index    int     `json:"index"`
		Source   int     `json:"source"`
		Target   int     `json:"target"`
		Length   float64 `json:"length"`
		MaxSpeed float64 `json:"maxSpeed"`
	}
	vertices := make([]vertexOut, 0, net.NumVertices())
	for i := 0; i < net.NumVertices(); i++ {
		v, err := net.Vertex(i)
		if err != nil {
			continue
		}
		vertices = append(vertices, vertexOut{Index: i, Name: v.Name, Type: v.Type.String()})
	}
	edges := make([]edgeOut, 0, net.NumEdges())
	for i := 0; i < net.NumEdges(); i++ {
		e, err := net.Edge(i)
		if err != nil {
			continue
		}
		edges = append(edges, edgeOut{Index: i, Source: e.Source, Target: e.Target, Length: e.Length, MaxSpeed: e.MaxSpeed})
	}
	writeJSONResponse(w, map[string]interface{}{
		"trains":   s.inst.NumTrains(),
		"vertices": vertices,
		"edges":    edges,
	})
}

// POST /api/solve
func (s *Server) serveSolveCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	workers := 4
	if v := r.URL.Query().Get("workers"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			workers = n
		}
	}
	s.TriggerSolve(context.Background(), workers)
	w.WriteHeader(http.StatusAccepted)
	writeJSONResponse(w, map[string]string{"status": "solve started"})
}

// GET /api/solution
func (s *Server) serveSolution(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	sol, ok := s.Solution()
	if !ok {
		http.Error(w, "no solution available", http.StatusNotFound)
		return
	}
	writeJSONResponse(w, map[string]interface{}{
		"status":    sol.Stat.String(),
		"objective": sol.Obj,
		"trains":    sol.TrainRouted,
	})
}

// GET /api/solution/trains/{index}?t=<seconds>
func (s *Server) serveTrainTrajectory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	sol, ok := s.Solution()
	if !ok {
		http.Error(w, "no solution available", http.StatusNotFound)
		return
	}
	idxStr := r.URL.Path[len("/api/solution/trains/"):]
	idx, err := strconv.Atoi(idxStr)
	if err != nil {
		http.Error(w, "invalid train index", http.StatusBadRequest)
		return
	}
	tSeconds, _ := strconv.ParseFloat(r.URL.Query().Get("t"), 64)
	pt, ok := sol.TrainState(idx, time.Duration(tSeconds*float64(time.Second)))
	if !ok {
		http.Error(w, "no trajectory sample at that time", http.StatusNotFound)
		return
	}
	writeJSONResponse(w, pt)
}

// GET /api/audit?since=<id>&limit=<n>
func serveAudit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	since, _ := strconv.ParseInt(r.URL.Query().Get("since"), 10, 64)
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = 100
	}
	writeJSONResponse(w, audits.getSince(since, limit))
}

// GET /api/metrics/snapshot
func serveMetricsSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSONResponse(w, latestSnapshot())
}

func writeJSONResponse(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(v)
}
