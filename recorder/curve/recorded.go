package curve

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/esrecorder/esrecorder/recorder"
	"github.com/esrecorder/esrecorder/recorder/dyno"
)

const (
	csvExt    = ".csv"
	engineExt = ".engine"
)

// RecordedCurve is a persisted engine loaded back from disk. Dyno0 and
// Dyno100 are sorted by RPM.
type RecordedCurve struct {
	Name         string
	FileName     string // file stem in the engines directory
	Displacement float64
	Redline      int
	RPMs         []int
	Throttles    []int
	Rows         []Row
	Dyno0        []dyno.Sample
	Dyno100      []dyno.Sample
	// MinRPM and MaxRPM span every row; MinTorque and MaxTorque span the
	// 100% throttle bucket only.
	MinRPM    int
	MaxRPM    int
	MinTorque float64
	MaxTorque float64
}

// Usable reports whether both the 0% and the 100% bucket hold samples.
func (c *RecordedCurve) Usable() bool {
	return len(c.Dyno0) > 0 && len(c.Dyno100) > 0
}

// Torque100 returns the full-throttle torque at rpm.
func (c *RecordedCurve) Torque100(rpm int) (float64, bool) {
	i := sort.Search(len(c.Dyno100), func(i int) bool { return c.Dyno100[i].RPM >= rpm })
	if i < len(c.Dyno100) && c.Dyno100[i].RPM == rpm {
		return c.Dyno100[i].Torque, true
	}
	return 0, false
}

// RowsFromSnapshot lists the recorded points of grid in grid order,
// RPM-major. Points absent from the snapshot are skipped.
func RowsFromSnapshot(snap dyno.Snapshot, grid recorder.Grid) []Row {
	rows := make([]Row, 0, grid.Size())
	for _, r := range grid.RPMs {
		for _, throttle := range grid.Throttles {
			p, ok := snap.Get(throttle, r.RPM)
			if !ok {
				continue
			}
			rows = append(rows, Row{RPM: r.RPM, Throttle: throttle, Power: p.Power, Torque: p.Torque})
		}
	}
	return rows
}

// Save writes <dir>/<stem>.csv and <dir>/<stem>.engine, where stem is the
// sanitised engine name, and returns the stem.
func Save(dir string, header EngineHeader, rows []Row) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating engines dir: %w", err)
	}
	stem := recorder.SanitizeFileName(header.Name)

	var csvBuf bytes.Buffer
	if err := WriteCSV(&csvBuf, rows); err != nil {
		return "", fmt.Errorf("encoding curve: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, stem+csvExt), csvBuf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("writing curve: %w", err)
	}

	var engBuf bytes.Buffer
	if err := WriteEngine(&engBuf, header); err != nil {
		return "", fmt.Errorf("encoding engine record: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, stem+engineExt), engBuf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("writing engine record: %w", err)
	}
	logrus.Infof("saved %d samples of %q to %s", len(rows), header.Name, filepath.Join(dir, stem))
	return stem, nil
}

// Load reads the curve stored under stem in dir. A curve without both a 0%
// and a 100% bucket is returned together with ErrUnusable.
func Load(dir, stem string) (*RecordedCurve, error) {
	engFile, err := os.Open(filepath.Join(dir, stem+engineExt))
	if err != nil {
		return nil, err
	}
	defer engFile.Close()
	header, err := ReadEngine(engFile)
	if err != nil {
		return nil, fmt.Errorf("%s%s: %w", stem, engineExt, err)
	}

	csvFile, err := os.Open(filepath.Join(dir, stem+csvExt))
	if err != nil {
		return nil, err
	}
	defer csvFile.Close()
	rows, err := ReadCSV(csvFile)
	if err != nil {
		return nil, fmt.Errorf("%s%s: %w", stem, csvExt, err)
	}

	c := build(header, rows)
	c.FileName = stem
	if !c.Usable() {
		return c, fmt.Errorf("%s: %w", stem, ErrUnusable)
	}
	return c, nil
}

func build(header EngineHeader, rows []Row) *RecordedCurve {
	c := &RecordedCurve{
		Name:         header.Name,
		Displacement: header.Displacement,
		Redline:      header.Redline,
		RPMs:         header.RPMs,
		Throttles:    header.Throttles,
		Rows:         rows,
		MinRPM:       math.MaxInt,
		MaxRPM:       math.MinInt,
		MinTorque:    math.Inf(1),
		MaxTorque:    math.Inf(-1),
	}
	seen0 := make(map[int]bool)
	seen100 := make(map[int]bool)
	for _, r := range rows {
		c.MinRPM = min(c.MinRPM, r.RPM)
		c.MaxRPM = max(c.MaxRPM, r.RPM)
		s := dyno.Sample{RPM: r.RPM, Point: dyno.Point{Power: r.Power, Torque: r.Torque}}
		switch r.Throttle {
		case 0:
			if seen0[r.RPM] {
				logrus.Warnf("%s: duplicate row %d/0 ignored", header.Name, r.RPM)
				continue
			}
			seen0[r.RPM] = true
			c.Dyno0 = append(c.Dyno0, s)
		case 100:
			if seen100[r.RPM] {
				logrus.Warnf("%s: duplicate row %d/100 ignored", header.Name, r.RPM)
				continue
			}
			seen100[r.RPM] = true
			c.MinTorque = math.Min(c.MinTorque, r.Torque)
			c.MaxTorque = math.Max(c.MaxTorque, r.Torque)
			c.Dyno100 = append(c.Dyno100, s)
		}
	}
	byRPM := func(s []dyno.Sample) func(i, j int) bool {
		return func(i, j int) bool { return s[i].RPM < s[j].RPM }
	}
	sort.SliceStable(c.Dyno0, byRPM(c.Dyno0))
	sort.SliceStable(c.Dyno100, byRPM(c.Dyno100))
	if len(rows) == 0 {
		c.MinRPM, c.MaxRPM = 0, 0
	}
	if len(c.Dyno100) == 0 {
		c.MinTorque, c.MaxTorque = 0, 0
	}
	return c
}

// LoadAvailable lists the usable engines in dir, ordered by file name.
// Engine files without a matching .csv, malformed files and unusable
// curves are skipped with a warning. A missing dir yields no engines.
func LoadAvailable(dir string) ([]*RecordedCurve, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing engines: %w", err)
	}
	var curves []*RecordedCurve
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), engineExt) {
			continue
		}
		stem := strings.TrimSuffix(e.Name(), engineExt)
		if _, err := os.Stat(filepath.Join(dir, stem+csvExt)); err != nil {
			logrus.Debugf("skipping %s: no %s", e.Name(), csvExt)
			continue
		}
		c, err := Load(dir, stem)
		if err != nil {
			logrus.Warnf("skipping engine %s: %v", stem, err)
			continue
		}
		curves = append(curves, c)
	}
	return curves, nil
}

// Find returns the usable engine whose name or file stem equals name.
func Find(curves []*RecordedCurve, name string) (*RecordedCurve, bool) {
	for _, c := range curves {
		if c.Name == name || c.FileName == name {
			return c, true
		}
	}
	return nil, false
}

// Dyno0RPMs returns the RPMs of the 0% bucket in ascending order.
func (c *RecordedCurve) Dyno0RPMs() []int { return sampleRPMs(c.Dyno0) }

// Dyno100RPMs returns the RPMs of the 100% bucket in ascending order.
func (c *RecordedCurve) Dyno100RPMs() []int { return sampleRPMs(c.Dyno100) }

func sampleRPMs(samples []dyno.Sample) []int {
	out := make([]int, len(samples))
	for i, s := range samples {
		out[i] = s.RPM
	}
	return out
}
