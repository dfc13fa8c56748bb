package dispatchserver

import (
	"context"
	"encoding/json"
)

// solveObject handles websocket requests addressed to the "solve" object:
// start/status, the websocket analogue of POST /api/solve and GET
// /api/solution.
type solveObject struct {
	srv *Server
}

func (o *solveObject) dispatch(h *Hub, req Request, conn *connection) {
	ch := conn.pushChan
	logger.Debug("request received", "object", req.Object, "action", req.Action)
	switch req.Action {
	case "start":
		var p struct {
			Workers int `json:"workers"`
		}
		if len(req.Params) > 0 {
			_ = json.Unmarshal(req.Params, &p)
		}
		if p.Workers <= 0 {
			p.Workers = 4
		}
		o.srv.TriggerSolve(context.Background(), p.Workers)
		audits.record("SOLVE_STARTED", "solve", "INFO", map[string]interface{}{"workers": p.Workers})
		ch <- NewOkResponse(req.ID, "solve started")
	case "status":
		sol, ok := o.srv.Solution()
		if !ok {
			ch <- NewOkResponse(req.ID, "no solution yet")
			return
		}
		data, err := json.Marshal(map[string]interface{}{"status": sol.Stat.String(), "objective": sol.Obj})
		if err != nil {
			ch <- NewErrorResponse(req.ID, err)
			return
		}
		ch <- NewResponse(req.ID, data)
	default:
		ch <- NewErrorResponse(req.ID, errUnknownAction(req.Object, req.Action))
	}
}

var _ hubObject = (*solveObject)(nil)

// suggestionsObject handles websocket requests against the "suggestions"
// object, backed by the Server's Suggestion engine.
type suggestionsObject struct {
	srv *Server
}

func (o *suggestionsObject) dispatch(h *Hub, req Request, conn *connection) {
	ch := conn.pushChan
	switch req.Action {
	case "list":
		sol, ok := o.srv.Solution()
		if !ok {
			ch <- NewResponse(req.ID, []byte(`{"items":[]}`))
			return
		}
		sug := ComputeSuggestions(o.srv.inst, sol)
		data, err := json.Marshal(sug)
		if err != nil {
			ch <- NewErrorResponse(req.ID, err)
			return
		}
		ch <- NewResponse(req.ID, data)
	default:
		ch <- NewErrorResponse(req.ID, errUnknownAction(req.Object, req.Action))
	}
}

var _ hubObject = (*suggestionsObject)(nil)
