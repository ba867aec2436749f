package utils

import (
	"testing"

	"github.com/chrscato/cdx-billreview/conf"
	"github.com/stretchr/testify/assert"
)

func TestGetEnvInt(t *testing.T) {
	const key = "BILLREVIEW_UTILS_INT_TEST"
	defer func() {
		assert.NoError(t, conf.UnsetEnv(t, key))
	}()

	assert.Equal(t, 42, GetEnvInt(key, 42))

	assert.NoError(t, conf.SetEnv(t, key, "7"))
	assert.Equal(t, 7, GetEnvInt(key, 42))

	assert.NoError(t, conf.SetEnv(t, key, "not-a-number"))
	assert.Equal(t, 42, GetEnvInt(key, 42))
}

func TestFromEnv(t *testing.T) {
	const key = "BILLREVIEW_UTILS_FROMENV_TEST"
	defer func() {
		assert.NoError(t, conf.UnsetEnv(t, key))
	}()

	assert.Equal(t, "fallback", FromEnv(key, "fallback"))

	assert.NoError(t, conf.SetEnv(t, key, "configured"))
	assert.Equal(t, "configured", FromEnv(key, "fallback"))
}
