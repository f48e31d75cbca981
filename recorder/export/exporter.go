package export

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/esrecorder/esrecorder/recorder"
	"github.com/esrecorder/esrecorder/recorder/curve"
)

// Exporter writes export artifacts for recorded engines.
type Exporter struct {
	// EnginesDir holds the recorded curves and their sample directories.
	EnginesDir string
	// ExportsDir receives <blend>.jbeam, <blend>.sfxBlend2D.json and
	// <blend>/ with the renamed samples.
	ExportsDir string
}

// Result describes one export.
type Result struct {
	Blend     string
	JBeam     string
	Blend2D   string
	SampleDir string
	Torque    []TorquePoint
	// Copied counts samples placed in SampleDir; Missing lists recorded
	// points whose .wav was not found and that were left out of the blend.
	Copied  int
	Missing []string
}

// Export validates p, builds the corrected torque curve of c and writes
// both artifacts plus the 0% and 100% samples. Nothing is written when p
// is invalid or c is unusable.
func (e *Exporter) Export(c *curve.RecordedCurve, p Parameters) (*Result, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	points, err := BuildTorqueCurve(c, p)
	if err != nil {
		return nil, err
	}
	blend := recorder.Blendify(c.Name)
	if blend == "" {
		return nil, fmt.Errorf("engine name %q has no exportable characters", c.Name)
	}
	res := &Result{
		Blend:     blend,
		JBeam:     filepath.Join(e.ExportsDir, blend+".jbeam"),
		Blend2D:   filepath.Join(e.ExportsDir, blend+".sfxBlend2D.json"),
		SampleDir: filepath.Join(e.ExportsDir, blend),
		Torque:    points,
	}
	if err := os.MkdirAll(e.ExportsDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating exports dir: %w", err)
	}

	var jb bytes.Buffer
	if err := WriteJBeam(&jb, points, p); err != nil {
		return nil, err
	}
	if err := os.WriteFile(res.JBeam, jb.Bytes(), 0o644); err != nil {
		return nil, fmt.Errorf("writing jbeam: %w", err)
	}

	if err := prepareSampleDir(res.SampleDir); err != nil {
		return nil, err
	}
	rpms0 := e.copySamples(c, c.Dyno0RPMs(), 0, res)
	rpms100 := e.copySamples(c, c.Dyno100RPMs(), 100, res)

	var bl bytes.Buffer
	if err := WriteBlend2D(&bl, NewBlend2D(blend, rpms0, rpms100)); err != nil {
		return nil, err
	}
	if err := os.WriteFile(res.Blend2D, bl.Bytes(), 0o644); err != nil {
		return nil, fmt.Errorf("writing sfxBlend2D: %w", err)
	}

	logrus.Infof("exported %q as %s: %d torque points, %d samples", c.Name, blend, len(points), res.Copied)
	if len(res.Missing) > 0 {
		logrus.Warnf("%d recorded samples of %q were not found and are left out of the blend", len(res.Missing), c.Name)
	}
	return res, nil
}

// copySamples copies the samples of one throttle set and returns the RPMs
// that made it.
func (e *Exporter) copySamples(c *curve.RecordedCurve, rpms []int, throttle int, res *Result) []int {
	var copied []int
	for _, rpm := range rpms {
		src := recorder.SamplePath(e.EnginesDir, c.Name, rpm, throttle)
		dst := filepath.Join(res.SampleDir, SampleFileName(res.Blend, rpm, throttle))
		if err := copyFile(src, dst); err != nil {
			logrus.Warnf("sample %d/%d: %v", rpm, throttle, err)
			res.Missing = append(res.Missing, src)
			continue
		}
		res.Copied++
		copied = append(copied, rpm)
	}
	return copied
}

// prepareSampleDir creates dir, or removes the files already in it.
func prepareSampleDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return os.MkdirAll(dir, 0o755)
	}
	if err != nil {
		return fmt.Errorf("reading sample dir: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil {
			return fmt.Errorf("emptying sample dir: %w", err)
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
