package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/btcsuite/btclog"
	"github.com/go-errors/errors"
	"github.com/lightninglabs/zkinv"
	"github.com/lightninglabs/zkinv/invcfg"
	"github.com/urfave/cli"
)

// wrapAction attaches a stack trace to any error the action returns.
func wrapAction(action func(ctx *cli.Context) error) func(*cli.Context) error {
	return func(ctx *cli.Context) error {
		if err := action(ctx); err != nil {
			return errors.Wrap(err, 1)
		}

		return nil
	}
}

// getContext returns a context that is canceled once a shutdown signal is
// received.
func getContext() context.Context {
	ctxc, cancel := context.WithCancel(context.Background())
	go func() {
		<-shutdownInterceptor.ShutdownChannel()
		cancel()
	}()

	return ctxc
}

// loadConfig loads the client config, applying the global flags.
func loadConfig(ctx *cli.Context) (*invcfg.Config, btclog.Logger, error) {
	var overrides []func(*invcfg.Config)
	if ctx.GlobalIsSet("debuglevel") {
		level := ctx.GlobalString("debuglevel")
		overrides = append(overrides, func(cfg *invcfg.Config) {
			cfg.DebugLevel = level
		})
	}

	cfg, cfgLogger, err := invcfg.LoadConfig(
		ctx.GlobalString("zkinvdir"), ctx.GlobalString("configfile"),
		shutdownInterceptor, overrides...,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, cfgLogger, nil
}

// getClient creates and starts a client. The returned cleanup function
// stops it again.
func getClient(ctx *cli.Context) (*zkinv.Client, func(), error) {
	cfg, cfgLogger, err := loadConfig(ctx)
	if err != nil {
		return nil, nil, err
	}

	errChan := make(chan error, 1)
	client, err := invcfg.CreateClientFromConfig(
		cfg, cfgLogger, shutdownInterceptor, errChan,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("error creating client: %w", err)
	}

	if err := client.Start(getContext()); err != nil {
		_ = client.Stop()
		return nil, nil, err
	}

	cleanUp := func() {
		select {
		case err := <-errChan:
			cfgLogger.Errorf("Background error: %v", err)
		default:
		}

		if err := client.Stop(); err != nil {
			cfgLogger.Errorf("Unable to stop client: %v", err)
		}
	}

	return client, cleanUp, nil
}

func printJSON(resp interface{}) {
	b, err := json.Marshal(resp)
	if err != nil {
		fatal(err)
	}

	var out bytes.Buffer
	_ = json.Indent(&out, b, "", "\t")
	out.WriteString("\n")
	_, _ = out.WriteTo(os.Stdout)
}
