package recorder

import (
	"fmt"
	"path/filepath"
)

// RPMPoint is one row of the RPM grid: the engine speed to hold and the
// audio sample rate to record it at.
type RPMPoint struct {
	RPM       int `yaml:"rpm" json:"rpm"`
	Frequency int `yaml:"frequency" json:"frequency"`
}

// GenerateRPMs builds an evenly spaced RPM grid from min to max inclusive.
// Returns an empty grid when step is not positive or min > max.
func GenerateRPMs(min, max, step, frequency int) []RPMPoint {
	if step <= 0 || min > max {
		return []RPMPoint{}
	}
	points := make([]RPMPoint, 0, (max-min)/step+1)
	for rpm := min; rpm <= max; rpm += step {
		points = append(points, RPMPoint{RPM: rpm, Frequency: frequency})
	}
	return points
}

// SamplePoint identifies one sweep coordinate and the recording parameters
// for it. Treat as immutable once built by Grid.Points.
type SamplePoint struct {
	RPM              int    `json:"rpm"`
	Throttle         int    `json:"throttle"`
	Frequency        int    `json:"frequency"`
	Length           int    `json:"length"`
	PrerunCount      int    `json:"prerun_count"`
	OverrideRevlimit bool   `json:"override_revlimit"`
	OutputPath       string `json:"output"`
}

// Key returns the (throttle, rpm) coordinate used by the dyno store.
func (p SamplePoint) Key() (throttle, rpm int) {
	return p.Throttle, p.RPM
}

func (p SamplePoint) String() string {
	return fmt.Sprintf("%d/%d", p.RPM, p.Throttle)
}

// SampleOutcome is the result of recording one SamplePoint.
type SampleOutcome struct {
	Success       bool    `json:"success"`
	Power         float64 `json:"power"`
	Torque        float64 `json:"torque"`
	Ratio         float64 `json:"ratio"`
	ElapsedMillis int64   `json:"millis"`
}

// Grid is the Cartesian product of an RPM list and a throttle list.
type Grid struct {
	RPMs      []RPMPoint
	Throttles []int
}

// Size returns the number of points in the grid.
func (g Grid) Size() int {
	return len(g.RPMs) * len(g.Throttles)
}

// RPMValues returns the RPMs in grid order.
func (g Grid) RPMValues() []int {
	out := make([]int, len(g.RPMs))
	for i, r := range g.RPMs {
		out[i] = r.RPM
	}
	return out
}

// Points enumerates the grid RPM-major, throttle-minor. Each point records
// into <dir>/<name>_<rpm>_<throttle>.wav where name is the sanitised engine
// name; an empty dir leaves OutputPath unset.
func (g Grid) Points(prerunCount, length int, dir, engineName string) []SamplePoint {
	points := make([]SamplePoint, 0, g.Size())
	for _, r := range g.RPMs {
		for _, throttle := range g.Throttles {
			p := SamplePoint{
				RPM:              r.RPM,
				Throttle:         throttle,
				Frequency:        r.Frequency,
				Length:           length,
				PrerunCount:      prerunCount,
				OverrideRevlimit: true,
			}
			if dir != "" {
				p.OutputPath = SamplePath(dir, engineName, r.RPM, throttle)
			}
			points = append(points, p)
		}
	}
	return points
}

// SamplePath returns the .wav path of a recorded point for an engine.
func SamplePath(dir, engineName string, rpm, throttle int) string {
	name := SanitizeFileName(engineName)
	return filepath.Join(dir, name, fmt.Sprintf("%s_%d_%d.wav", name, rpm, throttle))
}
