// Package logging configures logrus for the recorder commands.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// DefaultFile is the log file the commands write when --log-file is not set.
func DefaultFile() string {
	return filepath.Join(os.TempDir(), "esrecord.log")
}

// RotatedName returns the name the previous log is moved to:
// esrecord.log becomes esrecord.0.log.
func RotatedName(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + ".0" + ext
}

// Rotate moves an existing log at path to RotatedName(path), replacing
// any earlier rotation, then creates a fresh file at path.
func Rotate(path string) (*os.File, error) {
	if _, err := os.Stat(path); err == nil {
		old := RotatedName(path)
		if err := os.Remove(old); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("removing %s: %w", old, err)
		}
		if err := os.Rename(path, old); err != nil {
			return nil, fmt.Errorf("rotating %s: %w", path, err)
		}
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
}

// Setup sets the level and, when file is non-empty, tees output to a
// freshly rotated log file. The returned closer releases the file.
func Setup(level, file string, stderr io.Writer) (io.Closer, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	logrus.SetLevel(lvl)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if file == "" {
		logrus.SetOutput(stderr)
		return io.NopCloser(nil), nil
	}
	f, err := Rotate(file)
	if err != nil {
		logrus.SetOutput(stderr)
		return io.NopCloser(nil), err
	}
	logrus.SetOutput(io.MultiWriter(stderr, f))
	return f, nil
}
