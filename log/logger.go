package log

import (
	"os"
	"path/filepath"

	"github.com/chrscato/cdx-billreview/conf"
	"github.com/sirupsen/logrus"
)

var (
	API     logrus.FieldLogger
	Ingest  logrus.FieldLogger
	Request logrus.FieldLogger
)

func init() {
	API = Logger(logrus.New(), conf.GetEnv("BILLREVIEW_ERROR_LOG"),
		"api", conf.GetEnv("ENVIRONMENT"))
	Ingest = Logger(logrus.New(), conf.GetEnv("BILLREVIEW_INGEST_LOG"),
		"ingest", conf.GetEnv("ENVIRONMENT"))
	Request = Logger(logrus.New(), conf.GetEnv("BILLREVIEW_REQUEST_LOG"),
		"api", conf.GetEnv("ENVIRONMENT"))
}

func Logger(logger *logrus.Logger, outputFile string,
	application, environment string) logrus.FieldLogger {

	if outputFile != "" {
		if file, err := os.OpenFile(filepath.Clean(outputFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0640); err == nil {
			logger.SetOutput(file)
		} else {
			logger.Infof("Failed to open output file %s. Will use stderr. %s",
				outputFile, err.Error())
		}
	}

	return logger.WithFields(logrus.Fields{
		"application": application,
		"environment": environment})
}
