// Package timetable implements the train, station and schedule model:
// the service obligations a train must satisfy as it crosses the network.
package timetable

import (
	"time"

	"github.com/ts2/mbsolve/apperr"
	"github.com/ts2/mbsolve/network"
)

// ScheduleSlack is the minimum window, over and above the shortest
// unconstrained travel time, a schedule is allowed between consecutive
// stops before it is rejected as infeasible at construction time.
const ScheduleSlack = time.Hour

// Station groups one or more vertices that represent the same physical
// stopping place (e.g. both platform edges of a station).
type Station struct {
	Name     string
	Vertices []int
}

// Stop is a single scheduled stop at a station within a time window.
type Stop struct {
	Station       int // index into Timetable.Stations
	EarliestEntry time.Duration
	LatestEntry   time.Duration
	MinDwell      time.Duration
}

// Train is a single vehicle's static properties and its entry/exit
// schedule obligations.
type Train struct {
	Name      string
	Length    float64
	MaxSpeed  float64
	Accel     float64
	Decel     float64
	EntryEdge int
	ExitEdge  int

	// Bidirectional trains may legally occupy the reverse edge of a section
	// another train already holds, so long as no other train is physically
	// inside that section — the reverse-edge safety exception. Trains that
	// are not bidirectional never get that exception.
	Bidirectional bool

	// EntrySpeed/ExitSpeed are the speeds v0/vn the train must be entering
	// and leaving the network at, clamped to [0, MaxSpeed].
	EntrySpeed float64
	ExitSpeed  float64

	// EntryTimeLo/EntryTimeHi bound the window within which the train may
	// enter; EntryTimeLo == EntryTimeHi models a fixed departure instant.
	EntryTimeLo time.Duration
	EntryTimeHi time.Duration

	// ExitTimeLo/ExitTimeHi bound the window the train's exit time must
	// fall within for the schedule to be honored (spec testable property:
	// exit time in [tn_lo, tn_hi]). Zero-valued (both fields zero) means no
	// exit window is enforced.
	ExitTimeLo time.Duration
	ExitTimeHi time.Duration
}

// EntryWindowOpen reports whether now has reached the start of the train's
// entry-time window (now >= EntryTimeLo); EntryTimeHi is not checked here.
func (tr Train) EntryWindowOpen(now time.Duration) bool {
	return now >= tr.EntryTimeLo
}

// ExitWindowSatisfied reports whether exitTime falls within the train's
// exit-time window, or true if no window was configured.
func (tr Train) ExitWindowSatisfied(exitTime time.Duration) bool {
	if tr.ExitTimeLo == 0 && tr.ExitTimeHi == 0 {
		return true
	}
	return exitTime >= tr.ExitTimeLo && exitTime <= tr.ExitTimeHi
}

// Schedule is the ordered sequence of stops a train must honor, keyed by
// train index.
type Schedule struct {
	Train int
	Stops []Stop
}

// Timetable is the full set of trains, stations, and schedules for an
// instance.
type Timetable struct {
	Trains    []Train
	Stations  []Station
	Schedules []Schedule
}

// New returns an empty, mutable Timetable.
func New() *Timetable {
	return &Timetable{}
}

// AddTrain appends a train and returns its index.
func (tt *Timetable) AddTrain(tr Train) int {
	tt.Trains = append(tt.Trains, tr)
	return len(tt.Trains) - 1
}

// AddStation appends a station and returns its index.
func (tt *Timetable) AddStation(s Station) int {
	tt.Stations = append(tt.Stations, s)
	return len(tt.Stations) - 1
}

// AddSchedule appends a schedule for a train.
func (tt *Timetable) AddSchedule(s Schedule) {
	tt.Schedules = append(tt.Schedules, s)
}

// ScheduleFor returns the schedule for the given train index, if any.
func (tt *Timetable) ScheduleFor(train int) (Schedule, bool) {
	for _, s := range tt.Schedules {
		if s.Train == train {
			return s, true
		}
	}
	return Schedule{}, false
}

// CheckConsistency validates that every schedule references existing
// trains/stations, stops are chronologically ordered, and that the window
// between consecutive stops is not tighter than the shortest possible
// travel time between them (minus ScheduleSlack).
func (tt *Timetable) CheckConsistency(net *network.Network) error {
	for si, s := range tt.Schedules {
		if s.Train < 0 || s.Train >= len(tt.Trains) {
			return apperr.InvalidInput("timetable", "schedule references unknown train")
		}
		for i, stop := range s.Stops {
			if stop.Station < 0 || stop.Station >= len(tt.Stations) {
				return apperr.InvalidInput("timetable", "stop references unknown station")
			}
			if stop.LatestEntry < stop.EarliestEntry {
				return apperr.InconsistentSchedule("timetable", "stop window inverted")
			}
			if i > 0 {
				prev := s.Stops[i-1]
				if stop.EarliestEntry < prev.EarliestEntry {
					return apperr.InconsistentSchedule("timetable", "stops out of order")
				}
				fromVerts := tt.Stations[prev.Station].Vertices
				toVerts := tt.Stations[stop.Station].Vertices
				fromEdges := edgesOutOf(net, fromVerts)
				toEdges := edgesInto(net, toVerts)
				if travel, ok := net.ShortestPathBetweenSets(fromEdges, toEdges); ok {
					window := stop.EarliestEntry - (prev.EarliestEntry + prev.MinDwell)
					minNeeded := time.Duration(travel*float64(time.Second)) - ScheduleSlack
					if window < minNeeded {
						return apperr.InconsistentSchedule("timetable", "window too tight for shortest path")
					}
				}
			}
			_ = si
		}
	}
	return nil
}

func edgesInto(net *network.Network, vertices []int) []int {
	var out []int
	for _, v := range vertices {
		out = append(out, net.InEdges(v)...)
	}
	return out
}

func edgesOutOf(net *network.Network, vertices []int) []int {
	var out []int
	for _, v := range vertices {
		out = append(out, net.OutEdges(v)...)
	}
	return out
}
