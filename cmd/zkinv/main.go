package main

import (
	"fmt"
	"os"

	"github.com/go-errors/errors"
	"github.com/lightninglabs/zkinv"
	"github.com/lightninglabs/zkinv/invcfg"
	"github.com/lightningnetwork/lnd/signal"
	"github.com/urfave/cli"
)

const (
	// Environment variables names that can be used to set the global flags.
	envVarZkinvDir   = "ZKINV_DIR"
	envVarConfigFile = "ZKINV_CONFIGFILE"
	envVarDebugLevel = "ZKINV_DEBUGLEVEL"
)

var (
	// shutdownInterceptor is set up once before any command runs.
	shutdownInterceptor signal.Interceptor

	// printStack is set by the global --debug flag.
	printStack bool
)

// newApp creates the zkinv app with all the available commands.
func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "zkinv"
	app.Version = zkinv.Version()
	app.Usage = "manage private inventories committed on chain"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:      "zkinvdir",
			Value:     invcfg.DefaultZkinvDir,
			Usage:     "The path to zkinv's base directory.",
			TakesFile: true,
			EnvVar:    envVarZkinvDir,
		},
		cli.StringFlag{
			Name:      "configfile",
			Usage:     "The path to zkinv's configuration file.",
			TakesFile: true,
			EnvVar:    envVarConfigFile,
		},
		cli.StringFlag{
			Name: "debuglevel",
			Usage: "Logging level for all subsystems, overrides " +
				"the config file.",
			EnvVar: envVarDebugLevel,
		},
		cli.BoolFlag{
			Name:  "debug",
			Usage: "Print a stack trace along with errors.",
		},
	}
	app.Before = func(ctx *cli.Context) error {
		printStack = ctx.GlobalBool("debug")

		var err error
		shutdownInterceptor, err = signal.Intercept()
		return err
	}

	app.Commands = []cli.Command{
		newKeyCommand,
	}
	app.Commands = append(app.Commands, inventoryCommands...)
	app.Commands = append(app.Commands, attestCommands...)
	app.Commands = append(app.Commands, registryCommands...)

	return app
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fatal(err)
	}
}

// fatal prints the error and exits.
func fatal(err error) {
	if printStack {
		_, _ = fmt.Fprintf(os.Stderr, "[zkinv] %s\n",
			errors.Wrap(err, 1).ErrorStack())
		os.Exit(1)
	}

	_, _ = fmt.Fprintf(os.Stderr, "[zkinv] %v\n", err)
	os.Exit(1)
}
