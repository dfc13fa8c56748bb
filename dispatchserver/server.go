package dispatchserver

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "gopkg.in/inconshreveable/log15.v2"

	"github.com/ts2/mbsolve/astar"
	"github.com/ts2/mbsolve/instance"
	"github.com/ts2/mbsolve/partialstate"
	"github.com/ts2/mbsolve/solution"
	"github.com/ts2/mbsolve/telemetry"
)

// MaxHubStartupTime bounds how long Run waits for the Hub's event loop to
// come up before giving up.
const MaxHubStartupTime = 3 * time.Second

var logger log.Logger = log.New()

// InitializeLogger creates the logger for the dispatchserver module.
func InitializeLogger(parentLogger log.Logger) {
	logger = telemetry.InitializeLogger(parentLogger, "dispatchserver")
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func errUnknownObject(name string) error {
	return fmt.Errorf("unknown object %q", name)
}

func errUnknownAction(object, action string) error {
	return fmt.Errorf("unknown action %s/%s", object, action)
}

// Server holds the mutable solve/solution state a running dispatch server
// exposes: the fixed Instance, the Solver configured over it, and the most
// recent Solution, guarded by a single mutex since solves are infrequent and
// comparatively expensive relative to lock contention.
type Server struct {
	mu      sync.RWMutex
	inst    *instance.Instance
	solver  *astar.Solver
	lastSol *solution.Solution
	solving bool
	hub     *Hub
}

// New returns a Server over inst, with a Solver configured by opts.
func New(inst *instance.Instance, opts astar.Options) *Server {
	hub := NewHub()
	s := &Server{inst: inst, solver: astar.New(inst, opts), hub: hub}
	hub.RegisterObject("solve", &solveObject{srv: s})
	hub.RegisterObject("suggestions", &suggestionsObject{srv: s})
	return s
}

// Solution returns the most recently computed solution, if any.
func (s *Server) Solution() (*solution.Solution, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSol, s.lastSol != nil
}

// TriggerSolve runs a solve in the background, parallel across workers, and
// broadcasts the outcome to every connected websocket client when done. It
// is a no-op if a solve is already in flight.
func (s *Server) TriggerSolve(ctx context.Context, workers int) {
	s.mu.Lock()
	if s.solving {
		s.mu.Unlock()
		return
	}
	s.solving = true
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			s.solving = false
			s.mu.Unlock()
		}()

		start := time.Now()
		ps := partialstate.New(s.inst.NumTrains(), len(s.inst.Network().UnbreakableSections()), s.inst.Network().NumVertices())
		res, err := s.solver.SolveParallel(ctx, ps, workers)
		outcome := "infeasible"
		if err == nil && res.Feasible {
			outcome = "feasible"
		} else if res != nil && res.TimedOut {
			outcome = "timeout"
		}
		if res != nil {
			telemetry.RecordSolve(outcome, res.NodesExpanded, res.SimulatorInvocations, time.Since(start))
		}

		if err != nil {
			logger.Error("solve failed", "error", err)
			s.hub.Broadcast(NewErrorResponse("", err))
			return
		}

		sol := solution.New(*res.Goal, nil, 0, solution.Feasible)
		s.mu.Lock()
		s.lastSol = sol
		s.mu.Unlock()
		s.hub.Broadcast(NewOkResponse("", "solve completed"))
	}()
}

// Run starts the websocket hub and HTTP server on addr:port. It blocks until
// the HTTP server exits.
func (s *Server) Run(addr, port string) error {
	logger.Info("starting dispatch server")
	startMetricsTicker(s)

	hubUp := make(chan bool)
	timer := time.After(MaxHubStartupTime)
	go s.hub.run(hubUp)
	select {
	case <-hubUp:
	case <-timer:
		return fmt.Errorf("hub did not start")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.serveHome)
	mux.HandleFunc("/ws", s.serveWs)
	s.installHTTPAPI(mux)

	serverAddress := fmt.Sprintf("%s:%s", addr, port)
	logger.Info("listening", "address", serverAddress)
	return http.ListenAndServe(serverAddress, mux)
}

func (s *Server) serveWs(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("websocket upgrade failed", "error", err)
		return
	}
	c := &connection{ws: ws, pushChan: make(chan Response, 32)}
	s.hub.register <- c
	go c.writePump()
	c.readPump(s.hub)
}
