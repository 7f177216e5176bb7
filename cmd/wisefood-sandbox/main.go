// Command wisefood-sandbox serves an in-memory WiseFood API for local
// development. Point the SDK at it with WISEFOOD_MODE=http.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/wisefood/wisefood_sdk_go/internal/sandbox"
)

const envPrefix = "WISEFOOD_SANDBOX"

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "wisefood-sandbox",
		Short:         "Serve an in-memory WiseFood API",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), v)
		},
	}

	flags := cmd.Flags()
	flags.String("addr", ":8787", "listen address")
	flags.String("prefix", sandbox.DefaultPrefix, "API prefix")
	flags.String("seed", "", "path to a YAML seed (default: built-in demo data)")
	flags.Bool("watch", false, "reload the seed file when it changes")
	flags.Duration("latency", 0, "artificial latency to inject per request")
	flags.String("fail", "", "failure injection (rate=<float>,code=<httpStatus>)")
	flags.Duration("token-ttl", time.Hour, "lifetime of issued tokens")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	_ = v.BindPFlags(flags)
	return cmd
}

func run(ctx context.Context, v *viper.Viper) error {
	level, err := zerolog.ParseLevel(v.GetString("log-level"))
	if err != nil {
		return fmt.Errorf("parse log level: %w", err)
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(level).With().Timestamp().Logger()

	failCfg, err := sandbox.ParseFailConfig(v.GetString("fail"))
	if err != nil {
		return fmt.Errorf("parse fail flag: %w", err)
	}

	store := sandbox.NewStore()
	seedPath := v.GetString("seed")
	switch {
	case seedPath != "" && v.GetBool("watch"):
		w, err := sandbox.WatchSeed(seedPath, store, logger)
		if err != nil {
			return fmt.Errorf("watch seed: %w", err)
		}
		defer w.Close()
	case seedPath != "":
		seed, err := sandbox.LoadSeed(seedPath)
		if err != nil {
			return fmt.Errorf("load seed: %w", err)
		}
		store.Apply(seed)
	default:
		store.Apply(sandbox.DefaultSeed())
	}

	prefix := v.GetString("prefix")
	srv := sandbox.New(store,
		sandbox.WithLogger(logger),
		sandbox.WithPrefix(prefix),
		sandbox.WithLatency(v.GetDuration("latency")),
		sandbox.WithFailures(failCfg),
		sandbox.WithTokenTTL(v.GetDuration("token-ttl")),
	)

	addr := v.GetString("addr")
	server := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info().Str("addr", addr).Interface("records", store.Counts()).Msg("wisefood-sandbox listening")
	host := addr
	if strings.HasPrefix(host, ":") {
		host = "localhost" + host
	}
	fmt.Println()
	fmt.Println("export WISEFOOD_MODE=http")
	fmt.Printf("export WISEFOOD_BASE_URL=http://%s\n", host)
	fmt.Printf("export WISEFOOD_API_PREFIX=%s\n", prefix)
	if seedPath == "" {
		fmt.Printf("export WISEFOOD_USERNAME=%s\n", sandbox.DemoUsername)
		fmt.Printf("export WISEFOOD_PASSWORD=%s\n", sandbox.DemoPassword)
	}
	fmt.Println()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}
