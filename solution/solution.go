// Package solution implements the solved-schedule object: per-train
// routing decisions, sampled position/speed trajectories, and the
// consistency check every end-to-end scenario test runs against.
package solution

import (
	"sort"
	"time"

	"github.com/ts2/mbsolve/apperr"
	"github.com/ts2/mbsolve/instance"
	"github.com/ts2/mbsolve/kinematics"
	"github.com/ts2/mbsolve/partialstate"
)

// Status classifies whether and how a solve concluded.
type Status int

const (
	Unknown Status = iota
	Feasible
	Infeasible
	Optimal
)

func (s Status) String() string {
	switch s {
	case Feasible:
		return "Feasible"
	case Infeasible:
		return "Infeasible"
	case Optimal:
		return "Optimal"
	default:
		return "Unknown"
	}
}

// Sample is one point of a train's piecewise-linear trajectory.
type Sample struct {
	T     time.Duration
	Pos   float64
	Speed float64
	Edge  int
}

// EdgeTrajectoryPoint describes a train's state at one instant: which edge
// it occupies, its normalized position along that edge, and its direction
// of travel (always forward in this model — orientation is carried for
// parity with the original's bidirectional edges).
type EdgeTrajectoryPoint struct {
	Edge        int
	NormPos     float64 // 0..1 along the edge
	Orientation int     // +1 forward
	Speed       float64
}

// Solution is the result of a solve: per-train routing outcome, final
// state, objective, status, and sampled trajectories.
type Solution struct {
	Final       partialstate.PartialState
	TrainRouted []bool
	Obj         float64
	Stat        Status
	Trajectory  [][]Sample // Trajectory[train] = time-ordered samples
}

// New builds a Solution from a terminal PartialState, per-train routed
// flags, the objective value, and status.
func New(final partialstate.PartialState, routed []bool, obj float64, stat Status) *Solution {
	return &Solution{Final: final, TrainRouted: routed, Obj: obj, Stat: stat}
}

// SetTrajectory records the sampled position/speed trajectory for a train.
func (s *Solution) SetTrajectory(train int, samples []Sample) {
	for len(s.Trajectory) <= train {
		s.Trajectory = append(s.Trajectory, nil)
	}
	s.Trajectory[train] = samples
}

// TrainState returns the edge, normalized position, orientation and speed
// of train at time t, found by binary search over its sampled trajectory.
// The second return value is false if train has no trajectory or t falls
// outside its sampled range.
func (s *Solution) TrainState(train int, t time.Duration) (EdgeTrajectoryPoint, bool) {
	if train < 0 || train >= len(s.Trajectory) {
		return EdgeTrajectoryPoint{}, false
	}
	samples := s.Trajectory[train]
	if len(samples) == 0 {
		return EdgeTrajectoryPoint{}, false
	}
	if t < samples[0].T || t > samples[len(samples)-1].T {
		return EdgeTrajectoryPoint{}, false
	}

	idx := sort.Search(len(samples), func(i int) bool { return samples[i].T >= t })
	if idx < len(samples) && samples[idx].T == t {
		sm := samples[idx]
		return EdgeTrajectoryPoint{Edge: sm.Edge, NormPos: sm.Pos, Orientation: 1, Speed: sm.Speed}, true
	}
	if idx == 0 {
		sm := samples[0]
		return EdgeTrajectoryPoint{Edge: sm.Edge, NormPos: sm.Pos, Orientation: 1, Speed: sm.Speed}, true
	}
	prev, next := samples[idx-1], samples[idx]
	if prev.Edge != next.Edge {
		// Edge boundary crossed between samples: report the later edge's
		// sample rather than interpolate across a discontinuity.
		return EdgeTrajectoryPoint{Edge: next.Edge, NormPos: next.Pos, Orientation: 1, Speed: next.Speed}, true
	}
	frac := float64(t-prev.T) / float64(next.T-prev.T)
	pos := prev.Pos + frac*(next.Pos-prev.Pos)
	speed := prev.Speed + frac*(next.Speed-prev.Speed)
	return EdgeTrajectoryPoint{Edge: prev.Edge, NormPos: pos, Orientation: 1, Speed: speed}, true
}

// CheckConsistency replays the kinematics kernel over adjacent sample pairs
// of every train's trajectory, verifying that no train exceeds its edge's
// speed limit, that consecutive samples are kinematically reachable within
// the instance's acceleration/deceleration bounds, and that routed trains
// have a non-empty trajectory.
func (s *Solution) CheckConsistency(inst *instance.Instance) error {
	net := inst.Network()
	tt := inst.Timetable()

	for train, routed := range s.TrainRouted {
		if !routed {
			continue
		}
		if train >= len(s.Trajectory) || len(s.Trajectory[train]) == 0 {
			return apperr.InfeasibleSchedule(train, "routed train has no trajectory")
		}
		samples := s.Trajectory[train]
		tr := tt.Trains[train]

		for i := 1; i < len(samples); i++ {
			prev, cur := samples[i-1], samples[i]
			if cur.T < prev.T {
				return apperr.InfeasibleSchedule(train, "trajectory time goes backwards")
			}
			edge, err := net.Edge(prev.Edge)
			if err != nil {
				return err
			}
			if prev.Speed > edge.MaxSpeed+kinematics.EPS {
				return apperr.Overspeed(train, prev.Edge)
			}
			if prev.Speed > tr.MaxSpeed+kinematics.EPS {
				return apperr.Overspeed(train, prev.Edge)
			}
			dt := cur.T - prev.T
			if dt <= 0 {
				continue
			}
			maxReach := kinematics.MaxBrakingPosAfterLinearMovement(prev.Speed, edge.MaxSpeed, tr.Accel, tr.Decel, dt)
			tol := kinematics.KinematicTolerance(edge.Length)
			if cur.Edge == prev.Edge && cur.Pos > maxReach+tol {
				return apperr.InfeasibleSchedule(train, "trajectory advances faster than kinematically possible")
			}
		}
	}
	return nil
}
