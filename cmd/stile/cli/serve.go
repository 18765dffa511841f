package cli

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/stilehq/stile/internal/server"
	"github.com/stilehq/stile/internal/service"
)

const banner = `
      _   _ _
  ___| |_(_) | ___
 / __| __| | |/ _ \
 \__ \ |_| | |  __/
 |___/\__|_|_|\___|
`

func newServeCmd() *cobra.Command {
	var (
		port int
		host string
		dev  bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the gateway HTTP server",
		Long:  "Start the HTTP server exposing the read-only resource gateway and the step-up verification endpoints.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(host, port, dev)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8080, "HTTP listen port")
	cmd.Flags().StringVar(&host, "host", "0.0.0.0", "HTTP listen host")
	cmd.Flags().BoolVar(&dev, "dev", false, "Enable development mode (verbose logging)")

	viper.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	viper.BindPFlag("server.host", cmd.Flags().Lookup("host"))

	return cmd
}

func runServe(host string, port int, dev bool) error {
	// Banner only when a human is watching.
	if term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Print(banner)
		fmt.Println()
	}

	logger := newLogger(dev)

	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()
	logger.Info("store initialized", "driver", st.Driver())

	identitySecret := viper.GetString("auth.identity_secret")
	if identitySecret == "" {
		identitySecret = "stile-dev-secret-change-me"
		logger.Warn("auth.identity_secret not set, using development default")
	}
	authSvc := service.NewAuthService(st, identitySecret, logger)
	stepupSvc := service.NewStepUpService(st, logger)

	srvCfg := server.DefaultConfig()
	srvCfg.Host = host
	srvCfg.Port = port
	if origins := viper.GetStringSlice("server.cors_origins"); len(origins) > 0 {
		srvCfg.CORSOrigins = origins
	}
	if rate := viper.GetInt("auth.step_up_rate_per_minute"); rate > 0 {
		srvCfg.StepUpRatePerMinute = rate
	}
	if d := viper.GetString("server.shutdown_timeout"); d != "" {
		if parsed, err := time.ParseDuration(d); err == nil {
			srvCfg.ShutdownTimeout = parsed
		}
	}

	srv := server.New(srvCfg, st, authSvc, stepupSvc, logger)

	logger.Info("gateway ready",
		"addr", fmt.Sprintf("%s:%d", host, port),
		"openapi", "/openapi.json",
		"health", "/healthz",
	)

	return srv.ListenAndServe()
}

// newLogger builds the process logger from config. Dev mode forces debug
// level text output.
func newLogger(dev bool) *slog.Logger {
	level := slog.LevelInfo
	switch viper.GetString("logging.level") {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if dev {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	if !dev && viper.GetString("logging.format") == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
