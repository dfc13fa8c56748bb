// Package ioadapter reads and writes the on-disk layout an Instance and
// Solution are exchanged in: a directory of JSON files for timetable/problem
// data, a GraphML file for the network, and JSON/CSV for solutions.
package ioadapter

import (
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/ts2/mbsolve/apperr"
	"github.com/ts2/mbsolve/instance"
	"github.com/ts2/mbsolve/network"
	"github.com/ts2/mbsolve/solution"
	"github.com/ts2/mbsolve/timetable"
)

// --- GraphML ---

type graphmlKey struct {
	ID   string `xml:"id,attr"`
	For  string `xml:"for,attr"`
	Name string `xml:"attr.name,attr"`
	Type string `xml:"attr.type,attr"`
}

type graphmlData struct {
	Key   string `xml:"key,attr"`
	Value string `xml:",chardata"`
}

type graphmlNode struct {
	ID   string        `xml:"id,attr"`
	Data []graphmlData `xml:"data"`
}

type graphmlEdge struct {
	Source string        `xml:"source,attr"`
	Target string        `xml:"target,attr"`
	Data   []graphmlData `xml:"data"`
}

type graphmlGraph struct {
	Nodes []graphmlNode `xml:"node"`
	Edges []graphmlEdge `xml:"edge"`
}

type graphmlDoc struct {
	XMLName xml.Name     `xml:"graphml"`
	Keys    []graphmlKey `xml:"key"`
	Graph   graphmlGraph `xml:"graph"`
}

// loadGraphML reads the track network from a GraphML file: node attribute
// "type" gives the VertexType (by name), edge attributes "length",
// "max_speed", "breakable", "min_block_length" give the Edge fields.
func loadGraphML(path string) (*network.Network, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var doc graphmlDoc
	if err := xml.NewDecoder(f).Decode(&doc); err != nil {
		return nil, apperr.InvalidGraph("ioadapter", fmt.Sprintf("parsing graphml: %v", err))
	}

	keyNameByID := make(map[string]string, len(doc.Keys))
	for _, k := range doc.Keys {
		keyNameByID[k.ID] = k.Name
	}
	lookup := func(data []graphmlData, name string) (string, bool) {
		for _, d := range data {
			if keyNameByID[d.Key] == name {
				return d.Value, true
			}
		}
		return "", false
	}

	net := network.New()
	idToIndex := make(map[string]int, len(doc.Graph.Nodes))
	for _, node := range doc.Graph.Nodes {
		vtype := network.VertexNoBorder
		if tv, ok := lookup(node.Data, "type"); ok {
			vtype = parseVertexType(tv)
		}
		idx := net.AddVertex(node.ID, vtype)
		idToIndex[node.ID] = idx
	}
	for _, edge := range doc.Graph.Edges {
		src, okS := idToIndex[edge.Source]
		tgt, okT := idToIndex[edge.Target]
		if !okS || !okT {
			return nil, apperr.InvalidGraph("ioadapter", "edge references unknown vertex")
		}
		length := parseFloat(edge.Data, keyNameByID, "length")
		maxSpeed := parseFloat(edge.Data, keyNameByID, "max_speed")
		minBlock := parseFloat(edge.Data, keyNameByID, "min_block_length")
		breakable := true
		if bv, ok := lookup(edge.Data, "breakable"); ok {
			breakable = bv == "true" || bv == "1"
		}
		if _, err := net.AddEdge(src, tgt, length, maxSpeed, breakable, minBlock); err != nil {
			return nil, err
		}
	}
	return net, nil
}

func parseFloat(data []graphmlData, keyNameByID map[string]string, name string) float64 {
	for _, d := range data {
		if keyNameByID[d.Key] == name {
			v, err := strconv.ParseFloat(d.Value, 64)
			if err == nil {
				return v
			}
		}
	}
	return 0
}

func parseVertexType(s string) network.VertexType {
	switch s {
	case "VSS":
		return network.VertexVSS
	case "TTD":
		return network.VertexTTD
	case "NoBorderVSS":
		return network.VertexNoBorderVSS
	default:
		return network.VertexNoBorder
	}
}

// successorsFile is the JSON shape read for the network's successor
// relation: {"successors": {"<edge index>": [<successor edge index>, ...]}}.
// Keys that are not integer edge indices are skipped, so a file keyed by
// vertex-name pairs adds no successors.
type successorsFile struct {
	Successors map[string][]int `json:"successors"`
}

func loadSuccessors(net *network.Network, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var sf successorsFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return apperr.InvalidInput("ioadapter", fmt.Sprintf("parsing successors: %v", err))
	}
	for edgeStr, succs := range sf.Successors {
		edge, err := strconv.Atoi(edgeStr)
		if err != nil {
			continue
		}
		for _, s := range succs {
			if err := net.AddSuccessor(edge, s); err != nil {
				return err
			}
		}
	}
	return nil
}

// --- Timetable JSON ---

type stationsFile struct {
	Stations []struct {
		Name     string `json:"name"`
		Vertices []int  `json:"vertices"`
	} `json:"stations"`
}

type trainsFile struct {
	Trains []struct {
		Name          string  `json:"name"`
		Length        float64 `json:"length"`
		MaxSpeed      float64 `json:"maxSpeed"`
		Accel         float64 `json:"accel"`
		Decel         float64 `json:"decel"`
		EntryEdge     int     `json:"entryEdge"`
		ExitEdge      int     `json:"exitEdge"`
		Bidirectional bool    `json:"bidirectional"`
		EntrySpeed    float64 `json:"entrySpeed"`
		ExitSpeed     float64 `json:"exitSpeed"`
		EntryTime     float64 `json:"entryTime"`   // seconds; fixed-instant shorthand for entryTimeLo==entryTimeHi
		EntryTimeLo   float64 `json:"entryTimeLo"` // seconds
		EntryTimeHi   float64 `json:"entryTimeHi"` // seconds
		ExitTimeLo    float64 `json:"exitTimeLo"`  // seconds
		ExitTimeHi    float64 `json:"exitTimeHi"`  // seconds
	} `json:"trains"`
}

type schedulesFile struct {
	Schedules []struct {
		Train int `json:"train"`
		Stops []struct {
			Station       int     `json:"station"`
			EarliestEntry float64 `json:"earliestEntry"`
			LatestEntry   float64 `json:"latestEntry"`
			MinDwell      float64 `json:"minDwell"`
		} `json:"stops"`
	} `json:"schedules"`
}

type problemDataFile struct {
	TrainWeights  map[string]float64 `json:"train_weights"`
	TrainOptional map[string]bool    `json:"train_optional"`
	Lambda        float64            `json:"lambda"`
}

func loadTimetable(dir string) (*timetable.Timetable, error) {
	tt := timetable.New()

	var sf stationsFile
	if err := readJSON(filepath.Join(dir, "timetable", "stations.json"), &sf); err != nil {
		return nil, err
	}
	for _, s := range sf.Stations {
		tt.AddStation(timetable.Station{Name: s.Name, Vertices: s.Vertices})
	}

	var tf trainsFile
	if err := readJSON(filepath.Join(dir, "timetable", "trains.json"), &tf); err != nil {
		return nil, err
	}
	for _, tr := range tf.Trains {
		entryLo := tr.EntryTimeLo
		entryHi := tr.EntryTimeHi
		if entryLo == 0 && entryHi == 0 {
			// Shorthand: a single entryTime means a fixed-instant window.
			entryLo, entryHi = tr.EntryTime, tr.EntryTime
		}
		tt.AddTrain(timetable.Train{
			Name:          tr.Name,
			Length:        tr.Length,
			MaxSpeed:      tr.MaxSpeed,
			Accel:         tr.Accel,
			Decel:         tr.Decel,
			EntryEdge:     tr.EntryEdge,
			ExitEdge:      tr.ExitEdge,
			Bidirectional: tr.Bidirectional,
			EntrySpeed:    tr.EntrySpeed,
			ExitSpeed:     tr.ExitSpeed,
			EntryTimeLo:   secondsToDuration(entryLo),
			EntryTimeHi:   secondsToDuration(entryHi),
			ExitTimeLo:    secondsToDuration(tr.ExitTimeLo),
			ExitTimeHi:    secondsToDuration(tr.ExitTimeHi),
		})
	}

	var sched schedulesFile
	schedPath := filepath.Join(dir, "timetable", "schedules.json")
	if _, err := os.Stat(schedPath); err == nil {
		if err := readJSON(schedPath, &sched); err != nil {
			return nil, err
		}
		for _, s := range sched.Schedules {
			stops := make([]timetable.Stop, len(s.Stops))
			for i, st := range s.Stops {
				stops[i] = timetable.Stop{
					Station:       st.Station,
					EarliestEntry: secondsToDuration(st.EarliestEntry),
					LatestEntry:   secondsToDuration(st.LatestEntry),
					MinDwell:      secondsToDuration(st.MinDwell),
				}
			}
			tt.AddSchedule(timetable.Schedule{Train: s.Train, Stops: stops})
		}
	}

	return tt, nil
}

// LoadInstance reads the layered directory format (network/tracks.graphml,
// network/successors_cpp.json, timetable/{stations,trains,schedules}.json,
// optional problem_data.json) and composes an *instance.Instance.
func LoadInstance(dir string) (*instance.Instance, error) {
	net, err := loadGraphML(filepath.Join(dir, "network", "tracks.graphml"))
	if err != nil {
		return nil, err
	}
	if err := loadSuccessors(net, filepath.Join(dir, "network", "successors_cpp.json")); err != nil {
		return nil, err
	}

	tt, err := loadTimetable(dir)
	if err != nil {
		return nil, err
	}

	lambda := 1.0
	opts := instance.DefaultOptions()
	problemPath := filepath.Join(dir, "problem_data.json")
	var pd problemDataFile
	if _, statErr := os.Stat(problemPath); statErr == nil {
		if err := readJSON(problemPath, &pd); err != nil {
			return nil, err
		}
		lambda = pd.Lambda
	}

	inst, err := instance.New(net, tt, lambda, opts)
	if err != nil {
		return nil, err
	}

	for i, tr := range tt.Trains {
		if w, ok := pd.TrainWeights[tr.Name]; ok {
			inst.SetWeight(i, w)
		}
		if opt, ok := pd.TrainOptional[tr.Name]; ok {
			inst.SetOptional(i, opt)
		}
	}

	return inst, nil
}

// --- Solution export ---

// WriteOptions tunes WriteSolution's optional outputs. Net is required when
// IncludeVSSPositions is set, since VSS crossings are derived from the
// network's vertex types.
type WriteOptions struct {
	IncludeVSSPositions bool
	Net                 *network.Network
}

// vssCrossing records the instant a train's trajectory passes a VSS-border
// vertex, found by scanning its sampled trajectory for edge transitions into
// an edge whose source vertex borders a virtual sub-section.
type vssCrossing struct {
	Train  int           `json:"train"`
	Time   time.Duration `json:"time"`
	Vertex int           `json:"vertex"`
}

// WriteSolution writes a Solution to dir as solution/data.json,
// train_pos.json, train_speed.json, train_routed.json, and (when
// opts.IncludeVSSPositions is set) vss_pos.json.
func WriteSolution(dir string, sol *solution.Solution, opts WriteOptions) error {
	if err := os.MkdirAll(filepath.Join(dir, "solution"), 0o755); err != nil {
		return err
	}

	data := map[string]interface{}{
		"objective": sol.Obj,
		"status":    sol.Stat.String(),
	}
	if err := writeJSON(filepath.Join(dir, "solution", "data.json"), data); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(dir, "solution", "train_routed.json"), sol.TrainRouted); err != nil {
		return err
	}

	pos := make([][]float64, len(sol.Trajectory))
	speed := make([][]float64, len(sol.Trajectory))
	for t, samples := range sol.Trajectory {
		for _, sm := range samples {
			pos[t] = append(pos[t], sm.Pos)
			speed[t] = append(speed[t], sm.Speed)
		}
	}
	if err := writeJSON(filepath.Join(dir, "solution", "train_pos.json"), pos); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(dir, "solution", "train_speed.json"), speed); err != nil {
		return err
	}

	if opts.IncludeVSSPositions && opts.Net != nil {
		crossings := vssCrossings(opts.Net, sol)
		if err := writeJSON(filepath.Join(dir, "solution", "vss_pos.json"), crossings); err != nil {
			return err
		}
	}

	return nil
}

// vssCrossings scans every train's trajectory for transitions onto an edge
// whose source vertex is a VSS border, recording the time of each crossing.
func vssCrossings(net *network.Network, sol *solution.Solution) []vssCrossing {
	var out []vssCrossing
	for t, samples := range sol.Trajectory {
		prevEdge := -1
		for _, sm := range samples {
			if sm.Edge == prevEdge {
				continue
			}
			prevEdge = sm.Edge
			e, err := net.Edge(sm.Edge)
			if err != nil {
				continue
			}
			v, err := net.Vertex(e.Source)
			if err != nil {
				continue
			}
			if v.Type == network.VertexVSS || v.Type == network.VertexNoBorderVSS {
				out = append(out, vssCrossing{Train: t, Time: sm.T, Vertex: e.Source})
			}
		}
	}
	return out
}

// WriteTrajectoriesCSV writes every train's sampled trajectory to w as CSV
// rows (train, t_seconds, edge, pos, speed), mirroring the original apps'
// CSV export step.
func WriteTrajectoriesCSV(w io.Writer, sol *solution.Solution) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write([]string{"train", "t_seconds", "edge", "pos", "speed"}); err != nil {
		return err
	}
	for train, samples := range sol.Trajectory {
		for _, sm := range samples {
			row := []string{
				strconv.Itoa(train),
				strconv.FormatFloat(sm.T.Seconds(), 'f', -1, 64),
				strconv.Itoa(sm.Edge),
				strconv.FormatFloat(sm.Pos, 'f', -1, 64),
				strconv.FormatFloat(sm.Speed, 'f', -1, 64),
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
	}
	return cw.Error()
}

func readJSON(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return apperr.InvalidInput("ioadapter", fmt.Sprintf("parsing %s: %v", path, err))
	}
	return nil
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
