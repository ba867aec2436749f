package utils

import (
	"strconv"

	"github.com/chrscato/cdx-billreview/conf"
)

func GetEnvInt(varName string, defaultVal int) int {
	v := conf.GetEnv(varName)
	if v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return defaultVal
}

func FromEnv(key, otherwise string) string {
	if value, ok := conf.LookupEnv(key); ok && value != "" {
		return value
	}
	return otherwise
}
