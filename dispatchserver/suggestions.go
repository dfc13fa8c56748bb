package dispatchserver

import (
	"fmt"

	"github.com/ts2/mbsolve/instance"
	"github.com/ts2/mbsolve/solution"
)

// SuggestionKind classifies the advisory raised by ComputeSuggestions.
type SuggestionKind string

const (
	// SuggestionHeadwayMargin flags a train pair whose potential routes share
	// an unbreakable (TTD) section (instance.OverlapTTD).
	SuggestionHeadwayMargin SuggestionKind = "HEADWAY_MARGIN"
	// SuggestionOverlapMargin flags a train pair whose potential routes meet
	// at a shared vertex (instance.OverlapCrossing).
	SuggestionOverlapMargin SuggestionKind = "OVERLAP_MARGIN"
)

// Suggestion is an advisory about a train pair: not a conflict (the
// simulator already rejects those), but a structural overlap of their
// potential routes worth a dispatcher's attention before the next resolve.
type Suggestion struct {
	ID     string         `json:"id"`
	Kind   SuggestionKind `json:"kind"`
	Title  string         `json:"title"`
	Reason string         `json:"reason"`
	Score  float64        `json:"score"`
	Trains []int          `json:"trains"`
}

// ComputeSuggestions scans inst's precomputed overlap table for train pairs,
// adapted from the original's predictive conflict detector: instead of
// walking a live simulation's active routes looking ahead for conflicts, it
// reports every pair flagged OverlapTTD or OverlapCrossing. No timing from
// a solved state is considered; sol is read only so that pairs where either
// train was dropped from it are skipped, since a dropped train raises
// nothing worth a dispatcher's attention.
func ComputeSuggestions(inst *instance.Instance, sol *solution.Solution) []Suggestion {
	var out []Suggestion
	n := inst.NumTrains()
	routed := func(t int) bool {
		if sol == nil || sol.TrainRouted == nil {
			return true
		}
		return t < len(sol.TrainRouted) && sol.TrainRouted[t]
	}
	for t1 := 0; t1 < n; t1++ {
		for t2 := t1 + 1; t2 < n; t2++ {
			if !routed(t1) || !routed(t2) {
				continue
			}
			if inst.Overlap(t1, t2, instance.OverlapTTD) {
				out = append(out, Suggestion{
					ID:     fmt.Sprintf("%s:%d:%d", SuggestionHeadwayMargin, t1, t2),
					Kind:   SuggestionHeadwayMargin,
					Title:  fmt.Sprintf("Trains %d/%d share a TTD handoff", t1, t2),
					Reason: "potential routes share an unbreakable (TTD) section",
					Score:  1.0,
					Trains: []int{t1, t2},
				})
			}
			if inst.Overlap(t1, t2, instance.OverlapCrossing) {
				out = append(out, Suggestion{
					ID:     fmt.Sprintf("%s:%d:%d", SuggestionOverlapMargin, t1, t2),
					Kind:   SuggestionOverlapMargin,
					Title:  fmt.Sprintf("Trains %d/%d cross paths", t1, t2),
					Reason: "potential routes meet at a shared vertex",
					Score:  0.75,
					Trains: []int{t1, t2},
				})
			}
		}
	}
	return out
}
