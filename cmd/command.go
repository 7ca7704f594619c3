// Package cmd implements the entrysync command line.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/isometry/entrysync/internal/config"
	"github.com/isometry/entrysync/internal/ldap"
)

var rootCmd = &cobra.Command{
	Use:   "entrysync",
	Short: "entrysync - reconcile directory entries with domain objects",
	Long: `entrysync maps Active Directory users, groups and organizational units to
typed objects and applies only the attribute changes needed to bring an entry
in line with its object.

Connection settings come from --config and ENTRYSYNC_* environment variables.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML, JSON or TOML configuration file")
	rootCmd.PersistentFlags().String("log_level", "", "Log level (trace, debug, info, warn, error); overrides the configuration")
	rootCmd.PersistentFlags().Bool("metrics", false, "Print collected metrics in Prometheus text format on exit")
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// env is everything a command needs to talk to the directory.
type env struct {
	ctx      context.Context
	cfg      *config.Config
	client   ldap.Client
	session  *ldap.Session
	registry *prometheus.Registry
}

// newEnv loads configuration, sets up logging and opens a client. The
// caller closes it.
func newEnv(cmd *cobra.Command) (*env, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("log_level") {
		cfg.LogLevel, _ = cmd.Flags().GetString("log_level")
	}

	ctx := cfg.LoggingContext(cmd.Context())

	registry := prometheus.NewRegistry()
	metrics, err := ldap.NewMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	client, err := config.NewClient(ctx, cfg, nil)
	if err != nil {
		return nil, err
	}

	return &env{
		ctx:      ctx,
		cfg:      cfg,
		client:   client,
		session:  ldap.NewSession(client, ldap.WithMetrics(metrics)),
		registry: registry,
	}, nil
}

// close releases the client and prints metrics when --metrics is set.
func (e *env) close(cmd *cobra.Command) error {
	if printMetrics, _ := cmd.Flags().GetBool("metrics"); printMetrics {
		if err := writeMetrics(cmd.ErrOrStderr(), e.registry); err != nil {
			return err
		}
	}
	return e.client.Close()
}
