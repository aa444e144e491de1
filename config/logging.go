package config

import (
	"io"
	"log"
	"os"
	"path/filepath"
)

const logFileName = "route-feedback.log"

// LogWriter is shared by the standard logger, gin and gorm.
var LogWriter io.Writer = os.Stdout

var logDir = "logs"

// LogFilePath returns the file the application log is appended to.
func LogFilePath() string {
	return filepath.Join(logDir, logFileName)
}

// InitLogging tees the standard logger into dir/route-feedback.log. It never
// fails: when the file cannot be opened logging stays on stdout and the
// returned closer is a no-op.
func InitLogging(dir string) io.Closer {
	if dir != "" {
		logDir = dir
	}
	log.SetFlags(log.LstdFlags | log.LUTC)

	if err := os.MkdirAll(logDir, 0o755); err != nil {
		log.Printf("logging: cannot create %s: %v", logDir, err)
		return io.NopCloser(nil)
	}

	logFile, err := os.OpenFile(LogFilePath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		log.Printf("logging: cannot open %s, staying on stdout: %v", LogFilePath(), err)
		return io.NopCloser(nil)
	}

	LogWriter = io.MultiWriter(os.Stdout, logFile)
	log.SetOutput(LogWriter)
	return logFile
}
