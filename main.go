package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gruntwork-io/releasekit/cli"
	"github.com/gruntwork-io/releasekit/internal/errors"
	"github.com/gruntwork-io/releasekit/internal/report"
	"github.com/gruntwork-io/releasekit/internal/telemetry"
	"github.com/gruntwork-io/releasekit/pkg/log"
)

// The main entrypoint for releasekit
func main() {
	opts := cli.NewOptions()

	defer errors.Recover(checkForErrorsAndExit(opts.Logger))

	app := cli.NewApp(opts)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	shutdown, err := telemetry.Setup(ctx, telemetry.OptionsFromEnv(cli.AppName, cli.Version, os.Getenv))
	if err == nil {
		err = app.RunContext(log.ContextWithLogger(ctx, opts.Logger), os.Args)

		if shutdownErr := shutdown(context.Background()); shutdownErr != nil {
			opts.Logger.Debugf("Error flushing traces: %v", shutdownErr)
		}
	}

	stop()
	checkForErrorsAndExit(opts.Logger)(err)
}

// If there is an error, display it in the console and exit with a non-zero exit code. Otherwise, exit 0.
func checkForErrorsAndExit(logger log.Logger) func(error) {
	return func(err error) {
		if err == nil {
			os.Exit(report.ExitOK)
		}

		logger.Error(err.Error())

		if errStack := errors.ErrorStack(err); errStack != "" {
			logger.Trace(errStack)
		}

		if hint := errors.Hint(err); hint != "" {
			logger.Errorf("Suggested fix: %s", hint)
		}

		var exitCodeErr errors.ErrorWithExitCode
		if errors.As(err, &exitCodeErr) {
			os.Exit(exitCodeErr.ExitCode)
		}

		os.Exit(report.ExitError)
	}
}
