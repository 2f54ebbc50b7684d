// Package snapshot persists built worlds to compressed files, so a large
// generated world can be saved once and reused across runs. The format is
// a zstd stream holding one JSON header line followed by a gob body; the
// header line lets tools identify a snapshot without decoding the world.
package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"github.com/sirupsen/logrus"

	"github.com/epidemic-sim/epidemic-sim/sim"
)

// Version identifies the snapshot layout.
const Version = 1

type Header struct {
	Version int    `json:"version"`
	World   string `json:"world"`
	Agents  int    `json:"agents"`
}

// WorldV1 is the serialized form of a world. Label sets are stored as name
// lists; tokens are implied by position, exactly like scenario declaration
// order.
type WorldV1 struct {
	Header Header

	Name         string
	Activities   []string
	HealthStates []string

	Locations []LocationV1
	Agents    []AgentV1

	// Matrices holds each distinct matrix once; MatrixTable maps every
	// (class, tick-of-week) slot to its index.
	TicksInWeek int64
	Matrices    []MatrixV1
	MatrixTable [][]int
}

type LocationV1 struct {
	Kind string
	X, Y float64
}

type AgentV1 struct {
	Class    int32
	Age      int
	Health   int32
	Activity int32
	Location int32
	Allowed  [][]int32
}

type MatrixV1 struct {
	Weights [][]float64
}

// Save writes the world to path, creating parent directories as needed.
func Save(path string, w *sim.World) error {
	v, err := capture(w)
	if err != nil {
		return err
	}
	if err := write(path, v); err != nil {
		return err
	}
	logrus.Infof("[snapshot] %q: %d agents, %d locations to %s",
		w.Name, w.AgentCount(), w.LocationCount(), path)
	return nil
}

// Load reads a saved world and revalidates it.
func Load(path string) (*sim.World, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	// Skip the header line; the gob body carries the header too.
	if _, err := br.ReadBytes('\n'); err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	var v WorldV1
	if err := gob.NewDecoder(br).Decode(&v); err != nil {
		return nil, fmt.Errorf("gob decode: %w", err)
	}
	return restore(&v)
}

// ReadHeader returns the header without decoding the body, for quick
// inspection of a snapshot file.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()

	line, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("reading header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("parsing header: %w", err)
	}
	return h, nil
}

func write(path string, v *WorldV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	defer enc.Close()

	bw := bufio.NewWriterSize(enc, 256*1024)
	defer bw.Flush()

	hb, _ := json.Marshal(v.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}

	if err := gob.NewEncoder(bw).Encode(v); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	return nil
}

func capture(w *sim.World) (*WorldV1, error) {
	v := &WorldV1{
		Header:       Header{Version: Version, World: w.Name, Agents: w.AgentCount()},
		Name:         w.Name,
		Activities:   w.Activities.Names(),
		HealthStates: w.HealthStates.Names(),
	}

	for _, l := range w.Locations() {
		v.Locations = append(v.Locations, LocationV1{Kind: l.Kind, X: l.Coord.X, Y: l.Coord.Y})
	}
	for _, a := range w.Agents() {
		av := AgentV1{
			Class:    int32(a.Class),
			Age:      a.Age,
			Health:   int32(a.Health),
			Activity: int32(a.Activity),
			Location: int32(a.Location),
			Allowed:  make([][]int32, len(a.AllowedLocations)),
		}
		for act, ids := range a.AllowedLocations {
			av.Allowed[act] = make([]int32, len(ids))
			for i, id := range ids {
				av.Allowed[act][i] = int32(id)
			}
		}
		v.Agents = append(v.Agents, av)
	}

	ms := w.Matrices
	if ms == nil {
		return v, nil
	}
	v.TicksInWeek = ms.TicksInWeek()
	seen := make(map[*sim.SplitTransitionMatrix]int)
	v.MatrixTable = make([][]int, ms.Classes())
	for class := 0; class < ms.Classes(); class++ {
		row := make([]int, ms.TicksInWeek())
		for slot := int64(0); slot < ms.TicksInWeek(); slot++ {
			m := ms.At(sim.AgentClass(class), slot)
			if m == nil {
				return nil, fmt.Errorf("class %d has no matrix for slot %d", class, slot)
			}
			idx, ok := seen[m]
			if !ok {
				idx = len(v.Matrices)
				seen[m] = idx
				v.Matrices = append(v.Matrices, captureMatrix(m, w.Activities.Count()))
			}
			row[slot] = idx
		}
		v.MatrixTable[class] = row
	}
	return v, nil
}

func captureMatrix(m *sim.SplitTransitionMatrix, n int) MatrixV1 {
	weights := make([][]float64, n)
	for from := 0; from < n; from++ {
		weights[from] = make([]float64, n)
		for to := 0; to < n; to++ {
			weights[from][to] = m.Weight(sim.Activity(from), sim.Activity(to))
		}
	}
	return MatrixV1{Weights: weights}
}

func restore(v *WorldV1) (*sim.World, error) {
	if v.Header.Version != Version {
		return nil, fmt.Errorf("unsupported snapshot version %d", v.Header.Version)
	}
	acts, err := sim.NewActivitySet(v.Activities)
	if err != nil {
		return nil, fmt.Errorf("restoring activities: %w", err)
	}
	states, err := sim.NewHealthStateSet(v.HealthStates)
	if err != nil {
		return nil, fmt.Errorf("restoring health states: %w", err)
	}

	w := sim.NewWorld(v.Name, acts, states)
	for _, l := range v.Locations {
		w.AddLocation(&sim.Location{Kind: l.Kind, Coord: sim.Coord{X: l.X, Y: l.Y}})
	}
	for _, av := range v.Agents {
		allowed := make([][]sim.LocationID, len(av.Allowed))
		for act, ids := range av.Allowed {
			allowed[act] = make([]sim.LocationID, len(ids))
			for i, id := range ids {
				allowed[act][i] = sim.LocationID(id)
			}
		}
		w.AddAgent(&sim.Agent{
			Class:            sim.AgentClass(av.Class),
			Age:              av.Age,
			Health:           sim.HealthState(av.Health),
			Activity:         sim.Activity(av.Activity),
			Location:         sim.LocationID(av.Location),
			AllowedLocations: allowed,
		})
	}

	if len(v.MatrixTable) > 0 {
		built := make([]*sim.SplitTransitionMatrix, len(v.Matrices))
		for i, mv := range v.Matrices {
			m := sim.NewSplitTransitionMatrix(acts)
			for from, row := range mv.Weights {
				for to, wgt := range row {
					if wgt == 0 {
						continue
					}
					if err := m.SetWeight(sim.Activity(from), sim.Activity(to), wgt); err != nil {
						return nil, fmt.Errorf("matrix %d: %w", i, err)
					}
				}
			}
			built[i] = m
		}
		ms := sim.NewMatrixSet(len(v.MatrixTable), v.TicksInWeek)
		for class, row := range v.MatrixTable {
			for slot, idx := range row {
				if idx < 0 || idx >= len(built) {
					return nil, fmt.Errorf("matrix table entry (%d, %d) out of range", class, slot)
				}
				ms.Set(sim.AgentClass(class), int64(slot), built[idx])
			}
		}
		w.Matrices = ms
	}

	if err := w.Validate(); err != nil {
		return nil, fmt.Errorf("restored world failed validation: %w", err)
	}
	return w, nil
}
