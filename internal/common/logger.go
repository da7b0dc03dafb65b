package common

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/arbor/models"
)

// LogFileName is the log file written under LogDir when file output is on.
const LogFileName = "modernizer.log"

var (
	globalLogger arbor.ILogger
	loggerMutex  sync.Mutex
)

// GetLogger returns the logger set by InitLogger, or a console logger when
// the configuration has not been loaded.
func GetLogger() arbor.ILogger {
	loggerMutex.Lock()
	defer loggerMutex.Unlock()
	if globalLogger == nil {
		globalLogger = arbor.NewLogger().WithConsoleWriter(consoleWriter())
	}
	return globalLogger
}

// LogDir is where log files and crash reports go.
func LogDir(config *Config) string {
	if config.Logging.Dir != "" {
		return config.Logging.Dir
	}
	return "./logs"
}

func consoleWriter() models.WriterConfiguration {
	return models.WriterConfiguration{
		Type:       models.LogWriterTypeConsole,
		TimeFormat: "15:04:05",
	}
}

// logOutputs reports which of the configured outputs are enabled.
func logOutputs(config *Config) (console, file bool) {
	for _, output := range config.Logging.Output {
		switch output {
		case "stdout", "console":
			console = true
		case "file":
			file = true
		}
	}
	return console, file
}

// InitLogger builds the process logger from the logging section and makes
// it the one GetLogger returns. Plugin work logs through it with a
// run/plugin correlation id.
func InitLogger(config *Config) arbor.ILogger {
	loggerMutex.Lock()
	defer loggerMutex.Unlock()

	logger := arbor.NewLogger()
	console, file := logOutputs(config)

	if file {
		dir := LogDir(config)
		if err := os.MkdirAll(dir, 0755); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: Failed to create logs directory: %v\n", err)
		} else {
			logger = logger.WithFileWriter(models.WriterConfiguration{
				Type:       models.LogWriterTypeFile,
				FileName:   filepath.Join(dir, LogFileName),
				TimeFormat: "15:04:05",
				MaxSize:    100 * 1024 * 1024,
				MaxBackups: 3,
			})
		}
	}
	if console {
		logger = logger.WithConsoleWriter(consoleWriter())
	}

	logger = logger.WithLevelFromString(config.Logging.Level)
	globalLogger = logger
	return logger
}

// GetLogFilePath returns the file the logger writes to, if any.
func GetLogFilePath(logger arbor.ILogger) string {
	if logger == nil {
		return ""
	}
	return logger.GetLogFilePath()
}
