package main

import (
	"os"

	"github.com/condatools/recipebump/cli"
	"github.com/condatools/recipebump/internal/errors"
	"github.com/condatools/recipebump/options"
)

// The main entrypoint for recipebump
func main() {
	opts := options.NewOptions()

	defer errors.Recover(checkForErrorsAndExit(opts))

	app := cli.NewApp(opts)

	checkForErrorsAndExit(opts)(app.Run(os.Args))
}

// If there is an error, display it in the console and exit with a non-zero exit code.
// Otherwise, exit 0.
func checkForErrorsAndExit(opts *options.Options) func(error) {
	return func(err error) {
		if err == nil {
			os.Exit(0)
		}

		opts.Logger.Error(err.Error())

		if errStack := errors.ErrorStack(err); errStack != "" {
			opts.Logger.Trace(errStack)
		}

		os.Exit(1)
	}
}
