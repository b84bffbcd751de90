package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Options configures a logger.
type Options struct {
	// Level is a logrus level name. Default: info
	Level string

	// Format is "text" or "json". Default: text
	Format string

	// Output receives log lines. Default: os.Stderr
	Output io.Writer
}

// New builds a logger from opts.
func New(opts Options) (*logrus.Logger, error) {
	log := logrus.New()

	log.Out = opts.Output
	if log.Out == nil {
		log.Out = os.Stderr
	}

	level := logrus.InfoLevel
	if opts.Level != "" {
		l, err := logrus.ParseLevel(opts.Level)
		if err != nil {
			return nil, fmt.Errorf("logging: %w", err)
		}
		level = l
	}
	log.SetLevel(level)

	switch strings.ToLower(opts.Format) {
	case "", "text":
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, fmt.Errorf("logging: unknown format %q", opts.Format)
	}

	return log, nil
}
