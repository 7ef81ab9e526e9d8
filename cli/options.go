package cli

import (
	"io"
	"os"

	"github.com/gruntwork-io/releasekit/pkg/log"
)

const (
	AppName = "releasekit"

	// EnvPrefix prefixes the environment variable of every flag.
	EnvPrefix = "RELEASEKIT_"

	defaultLogLevel = "info"
)

// Version is set at build time with -ldflags.
var Version = "dev"

// Options are the settings shared by every command.
type Options struct {
	Logger    log.Logger
	Writer    io.Writer
	ErrWriter io.Writer

	ConfigPath   string
	WorkingDir   string
	LogLevel     string
	Group        string
	ManifestPath string
	// ReportFile receives a CSV export of the phase results.
	ReportFile  string
	Concurrency int
	DryRun      bool
	FailFast    bool
	NoColor     bool
}

// NewOptions returns the defaults, logging to stderr.
func NewOptions() *Options {
	return &Options{
		Logger:    log.New(log.WithOutput(os.Stderr), log.WithLevel(log.InfoLevel)),
		Writer:    os.Stdout,
		ErrWriter: os.Stderr,
		LogLevel:  defaultLogLevel,
	}
}
