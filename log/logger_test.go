package log

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerWritesToFile(t *testing.T) {
	outputFile := filepath.Join(t.TempDir(), "billreview-test.log")

	logger := Logger(logrus.New(), outputFile, "api", "unit-test")
	logger.Info("hello from the bill review portal")

	data, err := os.ReadFile(outputFile)
	require.NoError(t, err)

	assert.Contains(t, string(data), "hello from the bill review portal")
	assert.Contains(t, string(data), "application=api")
	assert.Contains(t, string(data), "environment=unit-test")
}

func TestLoggerBadOutputFileFallsBackToStderr(t *testing.T) {
	logger := Logger(logrus.New(), "/this/path/does/not/exist/out.log", "ingest", "unit-test")
	assert.NotNil(t, logger)
	assert.NotPanics(t, func() { logger.Info("still logs") })
}

func TestPackageLoggersInitialized(t *testing.T) {
	assert.NotNil(t, API)
	assert.NotNil(t, Ingest)
	assert.NotNil(t, Request)
}
