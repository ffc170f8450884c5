package config

import (
	"io"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// LogWriter builds the writer described by the logging configuration.
// File output is rotated by lumberjack; "both" tees stdout and the rotated file.
func (c LoggingConfig) LogWriter() (io.Writer, io.Closer, error) {
	switch c.Output {
	case "file", "both":
		if dir := filepath.Dir(c.FilePath); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, nil, err
			}
		}
		rotator := &lumberjack.Logger{
			Filename:   c.FilePath,
			MaxSize:    c.MaxSize,
			MaxBackups: c.MaxBackups,
			MaxAge:     c.MaxAge,
			Compress:   c.Compress,
			LocalTime:  false,
		}
		if c.Output == "both" {
			return io.MultiWriter(os.Stdout, rotator), rotator, nil
		}
		return rotator, rotator, nil
	default:
		return os.Stdout, nopCloser{}, nil
	}
}

// ApplyLogging points the standard logger at the configured writer
func ApplyLogging(c LoggingConfig) (io.Writer, io.Closer, error) {
	w, closer, err := c.LogWriter()
	if err != nil {
		return nil, nil, err
	}
	log.SetOutput(w)
	flags := log.LstdFlags | log.LUTC
	if c.EnableCaller {
		flags |= log.Lshortfile
	}
	log.SetFlags(flags)
	return w, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
