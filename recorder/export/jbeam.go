package export

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
)

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// WriteJBeam writes the engine block fragment: the torque table, the
// scalar engine fields and the starter and shutoff sound events.
func WriteJBeam(w io.Writer, points []TorquePoint, p Parameters) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, `"torque": [`)
	fmt.Fprintln(bw, `    ["rpm", "torque"],`)
	for _, pt := range points {
		fmt.Fprintf(bw, "    [%d, %s],\n", pt.RPM, formatNumber(pt.Torque))
	}
	fmt.Fprintln(bw, "],")
	fmt.Fprintf(bw, "\"idleRPM\": %d,\n", p.IdleRPM)
	fmt.Fprintf(bw, "\"maxRPM\": %d,\n", p.MaxRPM)
	fmt.Fprintf(bw, "\"friction\": %s,\n", formatNumber(p.StaticFriction))
	fmt.Fprintf(bw, "\"dynamicFriction\": %s,\n", formatNumber(p.DynamicFriction))
	fmt.Fprintln(bw)
	fmt.Fprintln(bw)
	fmt.Fprintf(bw, "\"starterSample\": \"event:>Engine>Starter>%s_eng\",\n", p.StarterSound)
	fmt.Fprintf(bw, "\"starterSampleExhaust\": \"event:>Engine>Starter>%s_exh\",\n", p.StarterSound)
	fmt.Fprintf(bw, "\"shutOffSampleEngine\": \"event:>Engine>Shutoff>%s_eng\",\n", p.StarterSound)
	fmt.Fprintf(bw, "\"shutOffSampleExhaust\": \"event:>Engine>Shutoff>%s_exh\",\n", p.StarterSound)
	return bw.Flush()
}
