package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRotatedName(t *testing.T) {
	assert.Equal(t, filepath.Join("tmp", "esrecord.0.log"), RotatedName(filepath.Join("tmp", "esrecord.log")))
}

func TestRotate_MovesPreviousLog(t *testing.T) {
	// GIVEN an existing log and an older rotation
	dir := t.TempDir()
	path := filepath.Join(dir, "esrecord.log")
	require.NoError(t, os.WriteFile(path, []byte("previous run"), 0o644))
	require.NoError(t, os.WriteFile(RotatedName(path), []byte("older run"), 0o644))

	// WHEN rotated
	f, err := Rotate(path)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	// THEN the previous log replaces the older rotation and a fresh file exists
	old, err := os.ReadFile(RotatedName(path))
	require.NoError(t, err)
	assert.Equal(t, "previous run", string(old))
	fresh, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, fresh)
}

func TestSetup_TeesToFile(t *testing.T) {
	defer logrus.SetOutput(os.Stderr)
	defer logrus.SetLevel(logrus.InfoLevel)

	path := filepath.Join(t.TempDir(), "esrecord.log")
	var stderr bytes.Buffer
	closer, err := Setup("debug", path, &stderr)
	require.NoError(t, err)

	logrus.Debugf("instance %d loaded", 3)
	require.NoError(t, closer.Close())

	assert.Contains(t, stderr.String(), "instance 3 loaded")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "instance 3 loaded")
}

func TestSetup_RejectsUnknownLevel(t *testing.T) {
	_, err := Setup("loud", "", &bytes.Buffer{})
	assert.Error(t, err)
}
