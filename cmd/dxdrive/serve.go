package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"dxdrive/internal/server"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve compilations over HTTP and websocket",
		Long: `Serve POST /api/compile and the /api/ws websocket. Each request is one
driver call; clients are rate limited per address.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
	flags := cmd.Flags()
	flags.String("addr", ":8080", "listen address")
	flags.Float64("rate", 2, "compilations per second per client (0 disables limiting)")
	flags.Int("burst", 5, "burst size per client")
	flags.Int64("max-source", server.DefaultMaxSource, "maximum request size in bytes")
	flags.Bool("trust-proxy", false, "key rate limits by X-Forwarded-For (only behind a proxy that sets it)")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	addr, err := flags.GetString("addr")
	if err != nil {
		return err
	}
	rate, err := flags.GetFloat64("rate")
	if err != nil {
		return err
	}
	burst, err := flags.GetInt("burst")
	if err != nil {
		return err
	}
	maxSource, err := flags.GetInt64("max-source")
	if err != nil {
		return err
	}
	trustProxy, err := flags.GetBool("trust-proxy")
	if err != nil {
		return err
	}

	cfg, err := resolveConfig(cmd, nil)
	if err != nil {
		return err
	}
	log, err := newLogger(cmd, cfg)
	if err != nil {
		return err
	}
	drv, cleanup, err := newDriver(cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(server.Options{
		Driver:         drv,
		Logger:         log.WithField("backend", drv.BackendName()),
		RatePerSecond:  rate,
		Burst:          burst,
		TrustProxy:     trustProxy,
		MaxSource:      maxSource,
		MaxDiagnostics: cfg.DiagnosticLimit(),
	})
	return srv.ListenAndServe(ctx, addr)
}
