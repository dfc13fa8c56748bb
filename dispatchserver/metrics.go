package dispatchserver

import (
	"sync"
	"time"
)

// kpiSnapshot is a point-in-time rollup of solver KPIs.
type kpiSnapshot struct {
	Timestamp      time.Time `json:"timestamp"`
	SolvesRunning  bool      `json:"solvesRunning"`
	LastSolveState string    `json:"lastSolveState"`
}

var snapshotMu sync.RWMutex
var snapshot kpiSnapshot

func latestSnapshot() kpiSnapshot {
	snapshotMu.RLock()
	defer snapshotMu.RUnlock()
	return snapshot
}

// startMetricsTicker samples srv's solve state once per interval.
func startMetricsTicker(srv *Server) {
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			takeSnapshot(srv)
		}
	}()
}

func takeSnapshot(srv *Server) {
	srv.mu.RLock()
	running := srv.solving
	state := "none"
	if srv.lastSol != nil {
		state = srv.lastSol.Stat.String()
	}
	srv.mu.RUnlock()

	snapshotMu.Lock()
	snapshot = kpiSnapshot{Timestamp: time.Now().UTC(), SolvesRunning: running, LastSolveState: state}
	snapshotMu.Unlock()
}
