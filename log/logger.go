package log

import (
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/Fadil369/brainsait-rcm-sub002/conf"
)

var (
	API     logrus.FieldLogger
	Audit   logrus.FieldLogger
	Extract logrus.FieldLogger
	Notify  logrus.FieldLogger
	Session logrus.FieldLogger
	Sync    logrus.FieldLogger
)

func init() {
	env := conf.GetEnv("ENVIRONMENT")

	API = Logger(logrus.New(), conf.GetEnv("RCM_API_LOG"), "api", env)
	Audit = Logger(logrus.New(), conf.GetEnv("RCM_AUDIT_LOG"), "audit", env)
	Extract = Logger(logrus.New(), conf.GetEnv("RCM_SYNC_LOG"), "extract", env)
	Notify = Logger(logrus.New(), conf.GetEnv("RCM_SYNC_LOG"), "notify", env)
	Session = Logger(logrus.New(), conf.GetEnv("RCM_SYNC_LOG"), "session", env)
	Sync = Logger(logrus.New(), conf.GetEnv("RCM_SYNC_LOG"), "sync", env)
}

// Logger configures a logrus logger with JSON output and standard fields.
// When outputFile cannot be opened the logger falls back to stderr.
func Logger(logger *logrus.Logger, outputFile string,
	subsystem, environment string) logrus.FieldLogger {

	logger.SetFormatter(&logrus.JSONFormatter{})

	if outputFile != "" {
		if file, err := os.OpenFile(filepath.Clean(outputFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0640); err == nil {
			logger.SetOutput(file)
		} else {
			logger.Infof("Failed to open output file %s. Will use stderr. %s",
				outputFile, err.Error())
		}
	}

	return logger.WithFields(logrus.Fields{
		"application": "rcm-sync",
		"subsystem":   subsystem,
		"environment": environment})
}
