// Command relayd runs the credential relay: a single process that serves
// the websocket wire protocol, persists events, and verifies credential
// grant chains.
package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/jmhodges/clock"
	"github.com/spf13/cobra"

	"github.com/chainrelay/chainrelay/config"
	"github.com/chainrelay/chainrelay/eventvalidator"
	"github.com/chainrelay/chainrelay/relaywire"
	"github.com/chainrelay/chainrelay/sa"
	"github.com/chainrelay/chainrelay/verifier"
)

func main() {
	var configPath string

	root := &cobra.Command{
		Use:   "relayd",
		Short: "credential relay server",
		RunE: func(_ *cobra.Command, _ []string) error {
			return run(configPath)
		},
	}
	root.Flags().StringVar(&configPath, "config", "", "path to a YAML config file")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	scope, log := statsAndLogging(cfg.Logging.Level, cfg.Logging.JSON)

	dbMap, err := sa.NewDbMap(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		failOnError(log, err, "opening database")
	}
	if err := sa.CreateTablesIfNotExists(dbMap); err != nil {
		failOnError(log, err, "creating tables")
	}

	clk := clock.New()
	store := sa.New(dbMap, clk, scope, log, cfg.Kinds, cfg.DefaultLimit)
	v := verifier.New(store, store, cfg.Kinds, cfg.MaxChainDepth, scope)

	limits := eventvalidator.DefaultLimits
	dispatcher := verifier.NewDispatcher(store, v, cfg.Kinds, clk, limits, log, scope)

	wireServer := relaywire.NewServer(dispatcher, store, log, scope, cfg.MaxMessageBytes)

	go debugServer(log, cfg.DebugAddr)

	httpServer := &http.Server{
		Addr:    cfg.Listen,
		Handler: wireServer,
	}
	go func() {
		log.Info().Str("addr", cfg.Listen).Msg("relay listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("relay server exited")
		}
	}()

	catchSignals(log, func() {
		_ = httpServer.Close()
	})
	return nil
}
