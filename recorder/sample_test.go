package recorder

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGrid_Points_RPMMajorThrottleMinor(t *testing.T) {
	// GIVEN a 2x3 grid
	g := Grid{
		RPMs:      []RPMPoint{{RPM: 1000, Frequency: 10000}, {RPM: 1500, Frequency: 12000}},
		Throttles: []int{0, 50, 100},
	}

	// WHEN enumerated
	points := g.Points(100, 5, "", "engine")

	// THEN the outer loop walks RPMs and the inner loop walks throttles
	require.Len(t, points, 6)
	want := [][2]int{{1000, 0}, {1000, 50}, {1000, 100}, {1500, 0}, {1500, 50}, {1500, 100}}
	for i, p := range points {
		assert.Equal(t, want[i][0], p.RPM, "point %d rpm", i)
		assert.Equal(t, want[i][1], p.Throttle, "point %d throttle", i)
		assert.Equal(t, 100, p.PrerunCount)
		assert.Equal(t, 5, p.Length)
		assert.True(t, p.OverrideRevlimit)
		assert.Empty(t, p.OutputPath)
	}
	assert.Equal(t, 12000, points[4].Frequency)
}

func TestGrid_Points_OutputPathUsesSanitisedName(t *testing.T) {
	g := Grid{RPMs: []RPMPoint{{RPM: 800, Frequency: 8000}}, Throttles: []int{100}}

	points := g.Points(10, 3, "engines", "V8: Big/Block")

	require.Len(t, points, 1)
	assert.Equal(t, filepath.Join("engines", "V8_ Big_Block", "V8_ Big_Block_800_100.wav"), points[0].OutputPath)
}

func TestGenerateRPMs(t *testing.T) {
	points := GenerateRPMs(1000, 2000, 500, 10000)
	assert.Equal(t, []RPMPoint{{1000, 10000}, {1500, 10000}, {2000, 10000}}, points)

	assert.Empty(t, GenerateRPMs(1000, 2000, 0, 10000))
	assert.Empty(t, GenerateRPMs(3000, 2000, 500, 10000))
}

func TestGrid_SizeAndRPMValues(t *testing.T) {
	g := Grid{RPMs: GenerateRPMs(1000, 3000, 1000, 1), Throttles: []int{0, 100}}
	assert.Equal(t, 6, g.Size())
	assert.Equal(t, []int{1000, 2000, 3000}, g.RPMValues())
}
