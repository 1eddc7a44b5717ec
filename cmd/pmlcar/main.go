package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lmxia/pmlcar/internal/cmd/tubcmd"
	cfgpkg "github.com/lmxia/pmlcar/internal/config"
	"github.com/lmxia/pmlcar/internal/runtime"
	logpkg "github.com/lmxia/pmlcar/pkg/log"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "pmlcar",
		Short:         "pmlcar datastore CLI",
		Long:          "pmlcar records driving sessions into tubs and prepares them for training. This CLI inspects, repairs and exports tubs.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().String("config", os.Getenv("PMLCAR_CONFIG"), "Config file (.json, .yaml or .yml)")
	rootCmd.PersistentFlags().String("data-path", "", "Data root holding session tubs (default from config)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug|info|warn|error")
	rootCmd.PersistentFlags().String("log-format", "", "Log format: text|json")
	rootCmd.PersistentFlags().Bool("no-index-cache", false, "Never open the index cache")

	rootCmd.AddCommand(tubcmd.NewTubCommand(openRuntime))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		cancel()
		os.Exit(1)
	}
}

// openRuntime loads the config file, overlays PMLCAR_* variables and flags,
// and opens the runtime with a logger built from the result.
func openRuntime(cmd *cobra.Command) (*runtime.Runtime, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := cfgpkg.Load(path)
	if err != nil {
		return nil, err
	}
	cfgpkg.FromEnv(&cfg)
	if v, _ := cmd.Flags().GetString("data-path"); v != "" {
		cfg.DataPath = v
	}
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		cfg.Log.Level = v
	}
	if v, _ := cmd.Flags().GetString("log-format"); v != "" {
		cfg.Log.Format = v
	}
	noCache, _ := cmd.Flags().GetBool("no-index-cache")

	logger, err := logpkg.ApplyConfig(&logpkg.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return nil, err
	}
	// Redirect standard library logs (used by Pebble) to our logger
	logpkg.RedirectStdLog(logger)

	return runtime.Open(runtime.Options{Config: cfg, Logger: logger, DisableCache: noCache})
}
