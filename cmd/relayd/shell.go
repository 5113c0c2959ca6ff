package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/chainrelay/chainrelay/metrics"
)

// statsAndLogging constructs the process-wide metrics.Scope and
// zerolog.Logger from the logging configuration.
func statsAndLogging(level string, jsonOutput bool) (metrics.Scope, zerolog.Logger) {
	scope := metrics.NewPromScope(prometheus.DefaultRegisterer)

	zerolog.SetGlobalLevel(parseLevel(level))
	var logger zerolog.Logger
	if jsonOutput {
		logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return scope, logger
}

func parseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}

// failOnError logs and exits the process if err is non-nil.
func failOnError(log zerolog.Logger, err error, msg string) {
	if err != nil {
		log.Fatal().Err(err).Msg(msg)
	}
}

// debugServer starts the Prometheus /metrics endpoint. Typical usage is to
// start it in a goroutine with the address from Config.DebugAddr.
func debugServer(log zerolog.Logger, addr string) {
	if addr == "" {
		log.Fatal().Msg("unable to boot debug server because no address was given for it")
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	log.Info().Str("addr", addr).Msg("starting debug server")
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatal().Err(err).Msg("debug server exited")
	}
}

// catchSignals blocks until SIGTERM, SIGINT, or SIGHUP arrives, then runs
// callback before returning control to main for a clean exit.
func catchSignals(log zerolog.Logger, callback func()) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)

	sig := <-sigChan
	log.Info().Str("signal", fmt.Sprint(sig)).Msg("caught signal")

	if callback != nil {
		callback()
	}
	log.Info().Msg("exiting")
}
