package report

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/epidemic-sim/epidemic-sim/sim"
)

func TestCSV_WritesOneRowPerTick(t *testing.T) {
	// GIVEN a 2-day run at 6-hour ticks: 8 rows. Two agents fall sick at
	// tick 2 and one of them recovers at tick 5.
	w, rules, clock := smallWorld(t, 4, 2, 6*time.Hour)
	path := filepath.Join(t.TempDir(), "totals.csv")
	r, err := NewCSV(sim.ReporterConfig{Type: "csv", Path: path})
	if err != nil {
		t.Fatal(err)
	}
	disease := &scriptedIllness{script: map[int64][]sim.HealthChange{
		2: {{Agent: 0, Health: stSick}, {Agent: 1, Health: stSick}},
		5: {{Agent: 0, Health: stImmune}},
	}}

	runSmall(t, w, rules, clock, disease, []sim.Reporter{r}, 11)

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}

	assert.Equal(t, []string{"tick", "time", "well", "sick", "immune"}, records[0])
	assert.Len(t, records, 9)

	// Ticks count up from zero and the times follow the tick length.
	for i, rec := range records[1:] {
		assert.Equal(t, strconv.Itoa(i), rec[0])
	}
	assert.Equal(t, "2020-07-06T00:00:00Z", records[1][1])
	assert.Equal(t, "2020-07-06T12:00:00Z", records[3][1])

	assert.Equal(t, []string{"4", "0", "0"}, records[1][2:])
	assert.Equal(t, []string{"2", "2", "0"}, records[3][2:])
	assert.Equal(t, []string{"2", "1", "1"}, records[6][2:])
	assert.Equal(t, []string{"2", "1", "1"}, records[8][2:])

	// Population is conserved in every row.
	for _, rec := range records[1:] {
		total := 0
		for _, cell := range rec[2:] {
			n, err := strconv.Atoi(cell)
			if err != nil {
				t.Fatalf("bad count %q: %v", cell, err)
			}
			total += n
		}
		assert.Equal(t, 4, total)
	}
}

func TestCSV_StartFailureAbortsRun(t *testing.T) {
	w, rules, clock := smallWorld(t, 2, 1, 6*time.Hour)
	r, err := NewCSV(sim.ReporterConfig{
		Type: "csv",
		Path: filepath.Join(t.TempDir(), "no-such-dir", "out.csv"),
	})
	if err != nil {
		t.Fatal(err)
	}

	s := buildSmall(t, w, rules, clock, nil, []sim.Reporter{r}, 1)
	err = s.Run()
	assert.ErrorContains(t, err, `starting reporter "csv"`)
}
