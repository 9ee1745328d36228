// Package logging configures the process-wide logrus logger.
package logging

import (
	"io"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// SetupParams describes where and how logs are written.
type SetupParams struct {
	Level      string
	FormatJSON bool
	FileName   string
	ToStdout   bool
}

// Setup applies params to the standard logrus logger.
func Setup(params SetupParams) {
	if params.FormatJSON {
		log.SetFormatter(&log.JSONFormatter{})
	}
	log.SetLevel(ParseLevel(params.Level))
	log.SetOutput(Output(params))
}

// Output builds the writer for params: stdout only, a rotating file, or both.
func Output(params SetupParams) io.Writer {
	if params.FileName == "" {
		return os.Stdout
	}

	fileName := params.FileName
	if !strings.HasSuffix(fileName, ".log") {
		fileName += ".log"
	}
	rotating := &lumberjack.Logger{
		Filename:   fileName,
		MaxSize:    50, // megabytes
		MaxBackups: 10,
		Compress:   true,
	}

	if params.ToStdout {
		return io.MultiWriter(os.Stdout, rotating)
	}
	return rotating
}

// ParseLevel maps a level name to a logrus level, defaulting to info.
func ParseLevel(level string) log.Level {
	parsed, err := log.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		return log.InfoLevel
	}
	return parsed
}
