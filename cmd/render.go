package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/esrecorder/esrecorder/recorder/cluster"
	"github.com/esrecorder/esrecorder/recorder/curve"
	"github.com/esrecorder/esrecorder/recorder/export"
	"github.com/esrecorder/esrecorder/recorder/history"
	"github.com/esrecorder/esrecorder/recorder/sound"
	"github.com/esrecorder/esrecorder/recorder/sweep"
)

var (
	colorPrimary   = lipgloss.Color("#7D56F4")
	colorSecondary = lipgloss.Color("#04B575")
	colorError     = lipgloss.Color("#FF5F87")
	colorWarning   = lipgloss.Color("#FFAF00")
	colorSubtle    = lipgloss.Color("#767676")
	colorBorder    = lipgloss.Color("#3C3C3C")

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1)
	titleStyle   = lipgloss.NewStyle().Foreground(colorPrimary).Bold(true)
	headerStyle  = lipgloss.NewStyle().Foreground(colorSubtle).Bold(true)
	subtleStyle  = lipgloss.NewStyle().Foreground(colorSubtle)
	valueStyle   = lipgloss.NewStyle().Foreground(colorSecondary).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(colorError)
	warnStyle    = lipgloss.NewStyle().Foreground(colorWarning)
	busyStyle    = lipgloss.NewStyle().Foreground(colorPrimary).Bold(true)
	cellStyle    = lipgloss.NewStyle().PaddingRight(2)
	successStyle = lipgloss.NewStyle().Foreground(colorSecondary).Bold(true)
)

// table lays rows out in left-aligned columns under a header.
func table(header []string, rows [][]string) string {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = lipgloss.Width(h)
	}
	for _, r := range rows {
		for i, c := range r {
			widths[i] = max(widths[i], lipgloss.Width(c))
		}
	}
	line := func(cells []string, style lipgloss.Style) string {
		out := make([]string, len(cells))
		for i, c := range cells {
			out[i] = cellStyle.Width(widths[i] + 2).Render(style.Render(c))
		}
		return lipgloss.JoinHorizontal(lipgloss.Top, out...)
	}
	lines := []string{line(header, headerStyle)}
	for _, r := range rows {
		lines = append(lines, line(r, lipgloss.NewStyle()))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func statusStyle(s cluster.Status) lipgloss.Style {
	switch s {
	case cluster.StatusBusy:
		return busyStyle
	case cluster.StatusError:
		return errorStyle
	}
	return valueStyle
}

// renderInstances draws the instance status panel.
func renderInstances(views []cluster.InstanceView) string {
	rows := make([][]string, 0, len(views))
	for _, v := range views {
		id := fmt.Sprintf("#%d", v.ID)
		if !v.Usable {
			rows = append(rows, []string{subtleStyle.Render(id), subtleStyle.Render(v.PhaseName), subtleStyle.Render("unused"), "", ""})
			continue
		}
		rows = append(rows, []string{
			id,
			v.PhaseName,
			statusStyle(v.Status).Render(v.StatusName),
			v.StateName,
			fmt.Sprintf("%d%%", v.Progress),
		})
	}
	body := table([]string{"INSTANCE", "PHASE", "STATUS", "ENGINE", "PROGRESS"}, rows)
	return panelStyle.Render(lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render("Instances"), body))
}

// renderResult summarises a sweep.
func renderResult(res *sweep.Result) string {
	state := successStyle.Render("complete")
	if res.Aborted {
		state = warnStyle.Render("aborted")
	}
	lines := []string{
		titleStyle.Render(fmt.Sprintf("Sweep %s", res.RunID)) + "  " + state,
		fmt.Sprintf("engine     %s", valueStyle.Render(res.Engine.Name)),
		fmt.Sprintf("recorded   %d/%d on %d instances in %s", res.Recorded, res.GridSize, res.Instances, res.Elapsed.Round(time.Millisecond)),
		fmt.Sprintf("timing     p50 %dms  p90 %dms  p99 %dms  max %dms",
			res.Timing.P50Ms, res.Timing.P90Ms, res.Timing.P99Ms, res.Timing.MaxMs),
	}
	if n := len(res.Missed); n > 0 {
		missed := make([]string, 0, n)
		for _, m := range res.Missed {
			missed = append(missed, fmt.Sprintf("%d/%d", m.RPM, m.Throttle))
		}
		lines = append(lines, warnStyle.Render(fmt.Sprintf("missed     %d: %s", n, strings.Join(missed, " "))))
	}
	if n := len(res.Duplicates); n > 0 {
		lines = append(lines, warnStyle.Render(fmt.Sprintf("duplicates %d", n)))
	}
	if res.Failed > 0 {
		lines = append(lines, warnStyle.Render(fmt.Sprintf("failed     %d", res.Failed)))
	}
	for _, f := range res.LoadFailures {
		lines = append(lines, errorStyle.Render(fmt.Sprintf("instance %d failed to load: %s", f.InstanceID, f.Detail)))
	}
	if res.Saved != "" {
		lines = append(lines, fmt.Sprintf("saved      %s", res.Saved))
	}
	return panelStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

// renderEngines lists recorded engines.
func renderEngines(curves []*curve.RecordedCurve) string {
	if len(curves) == 0 {
		return subtleStyle.Render("no recorded engines")
	}
	rows := make([][]string, 0, len(curves))
	for _, c := range curves {
		span := "-"
		if rpms := c.Dyno100RPMs(); len(rpms) > 0 {
			span = fmt.Sprintf("%d-%d", rpms[0], rpms[len(rpms)-1])
		}
		rows = append(rows, []string{
			c.Name,
			c.FileName,
			fmt.Sprintf("%.1fL", c.Displacement),
			fmt.Sprintf("%d", c.Redline),
			span,
			fmt.Sprintf("%.1f", c.MaxTorque),
		})
	}
	return table([]string{"NAME", "FILE", "DISPLACEMENT", "REDLINE", "RPM @100%", "PEAK TORQUE"}, rows)
}

// renderSounds lists the sound catalog with its indices.
func renderSounds(c sound.Catalog) string {
	rows := make([][]string, 0, len(c))
	for i, s := range c {
		rows = append(rows, []string{fmt.Sprintf("%d", i), s.EventName, s.PrettyName})
	}
	return table([]string{"#", "EVENT", "NAME"}, rows)
}

// renderHistory lists stored sweeps.
func renderHistory(entries []history.Entry) string {
	if len(entries) == 0 {
		return subtleStyle.Render("no sweeps recorded")
	}
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		state := "complete"
		if e.Aborted {
			state = "aborted"
		}
		rows = append(rows, []string{
			e.ID,
			e.Started.Local().Format("2006-01-02 15:04"),
			e.Engine,
			fmt.Sprintf("%d/%d", e.Recorded, e.GridSize),
			fmt.Sprintf("%d", e.Missed),
			e.Elapsed.Round(time.Second).String(),
			state,
		})
	}
	return table([]string{"RUN", "STARTED", "ENGINE", "RECORDED", "MISSED", "ELAPSED", "STATE"}, rows)
}

// renderExport summarises an export.
func renderExport(res *export.Result) string {
	lines := []string{
		titleStyle.Render("Exported " + res.Blend),
		fmt.Sprintf("jbeam      %s (%d torque points)", res.JBeam, len(res.Torque)),
		fmt.Sprintf("blend      %s", res.Blend2D),
		fmt.Sprintf("samples    %d in %s", res.Copied, res.SampleDir),
	}
	for _, m := range res.Missing {
		lines = append(lines, warnStyle.Render("missing    "+m))
	}
	lines = append(lines, subtleStyle.Render(fmt.Sprintf("copy %s/ to art/sound/engine/%s/ in the game", res.SampleDir, res.Blend)))
	return panelStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}
