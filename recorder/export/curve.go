// Package export turns a recorded full-throttle torque curve into game
// assets: an extended, friction-corrected torque table (.jbeam) and a
// sound blend definition (.sfxBlend2D.json) with its samples.
package export

import (
	"fmt"
	"math"
	"sort"

	"github.com/esrecorder/esrecorder/recorder/config"
	"github.com/esrecorder/esrecorder/recorder/curve"
)

const (
	// stallRPM is the lowest extrapolated point, low enough for the starter.
	stallRPM = 200
	// rpmStep is the spacing of extrapolated points.
	rpmStep = 500
	// lowEndSnap is the gap below which extrapolation jumps straight to stallRPM.
	lowEndSnap = 600
	// radPerSecToRPM converts angular velocity to RPM in the friction model.
	radPerSecToRPM = 9.55
)

// Parameters are the operator-supplied export inputs.
type Parameters struct {
	IdleRPM         int
	MaxRPM          int
	StaticFriction  float64
	DynamicFriction float64
	// StarterSound is the sound event identifier of the starter and shutoff
	// samples.
	StarterSound string
}

// Validate rejects parameters before any file is touched.
func (p Parameters) Validate() error {
	if p.IdleRPM <= 0 {
		return &config.FieldError{Field: "idle-rpm", Value: p.IdleRPM, Reason: "must be > 0"}
	}
	if p.MaxRPM <= p.IdleRPM {
		return &config.FieldError{Field: "max-rpm", Value: p.MaxRPM, Reason: "must exceed idle-rpm"}
	}
	if p.StaticFriction < 0 || math.IsNaN(p.StaticFriction) || math.IsInf(p.StaticFriction, 0) {
		return &config.FieldError{Field: "static-friction", Value: p.StaticFriction, Reason: "must be a finite value >= 0"}
	}
	if p.DynamicFriction < 0 || math.IsNaN(p.DynamicFriction) || math.IsInf(p.DynamicFriction, 0) {
		return &config.FieldError{Field: "dynamic-friction", Value: p.DynamicFriction, Reason: "must be a finite value >= 0"}
	}
	if p.StarterSound == "" {
		return &config.FieldError{Field: "starter-sound", Value: `""`, Reason: "must name a sound event"}
	}
	return nil
}

// TorquePoint is one row of the exported torque table.
type TorquePoint struct {
	RPM    int
	Torque float64
}

// TorqueMap is the working RPM -> torque table.
type TorqueMap map[int]float64

// Points returns the table sorted by RPM.
func (m TorqueMap) Points() []TorquePoint {
	points := make([]TorquePoint, 0, len(m))
	for rpm, t := range m {
		points = append(points, TorquePoint{RPM: rpm, Torque: t})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].RPM < points[j].RPM })
	return points
}

// Seed copies the 100% throttle torque of c into a new map.
func Seed(c *curve.RecordedCurve) TorqueMap {
	m := make(TorqueMap, len(c.Dyno100)+8)
	for _, s := range c.Dyno100 {
		m[s.RPM] = s.Torque
	}
	return m
}

// ExtendLow extrapolates down to stallRPM from minRPM, decaying minTorque
// by 1.0, 1.1, 1.2, ... per step. Points are 500 RPM apart until the
// remaining gap is under 600, which lands the last point on stallRPM.
// Returns the number of points added.
//
// Terminates: each pass either sets the gap to zero or shrinks it by 500.
func ExtendLow(m TorqueMap, minRPM int, minTorque float64) int {
	added := 0
	gap := minRPM - stallRPM
	divisor := 1.0
	for gap > 0 {
		t := minTorque / divisor
		if gap < lowEndSnap {
			m[stallRPM] = t
			minRPM = stallRPM
		} else {
			minRPM -= rpmStep
			m[minRPM] = t
		}
		added++
		divisor += 0.1
		gap = minRPM - stallRPM
	}
	return added
}

// ExtendHigh guarantees headroom above requestedMax. It runs only when
// requestedMax - maxRPM >= -500, then appends points every 500 RPM past
// maxRPM while the gap stays above -500, decaying the torque at maxRPM by
// 1.1, 1.2, ... per step. Returns the number of points added.
//
// Terminates: each pass grows maxRPM by 500, shrinking the gap by 500.
func ExtendHigh(m TorqueMap, maxRPM, requestedMax int) int {
	gap := requestedMax - maxRPM
	if gap < -rpmStep {
		return 0
	}
	base, ok := m[maxRPM]
	if !ok {
		base = topTorque(m)
	}
	added := 0
	divisor := 1.1
	for gap > -rpmStep {
		maxRPM += rpmStep
		m[maxRPM] = base / divisor
		added++
		divisor += 0.1
		gap = requestedMax - maxRPM
	}
	return added
}

// topTorque is the torque at the highest RPM in m, or 0 for an empty map.
func topTorque(m TorqueMap) float64 {
	top, t := math.MinInt, 0.0
	for rpm, v := range m {
		if rpm > top {
			top, t = rpm, v
		}
	}
	return t
}

// FrictionLoss is the torque lost to friction at rpm.
func FrictionLoss(rpm int, static, dynamic float64) float64 {
	return static + (float64(rpm)/radPerSecToRPM)*dynamic
}

// ApplyFriction subtracts FrictionLoss from every point of m.
func ApplyFriction(m TorqueMap, static, dynamic float64) {
	for rpm, t := range m {
		m[rpm] = t - FrictionLoss(rpm, static, dynamic)
	}
}

// BuildTorqueCurve runs seed, low-end and high-end extrapolation and
// friction correction on c and returns the corrected table.
func BuildTorqueCurve(c *curve.RecordedCurve, p Parameters) ([]TorquePoint, error) {
	if !c.Usable() {
		return nil, fmt.Errorf("%s: %w", c.Name, curve.ErrUnusable)
	}
	m := Seed(c)
	ExtendLow(m, c.MinRPM, c.MinTorque)
	ExtendHigh(m, c.MaxRPM, p.MaxRPM)
	ApplyFriction(m, p.StaticFriction, p.DynamicFriction)
	return m.Points(), nil
}
