package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-devialet/internal/devialet"
	"github.com/nerrad567/gray-logic-devialet/internal/infrastructure/config"
)

// statusTimeout bounds the one-shot status command.
const statusTimeout = 15 * time.Second

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "devialetbridge",
		Short: "Bridge a Devialet speaker to MQTT and HTTP",
		Long: `devialetbridge polls a Devialet speaker through its IP Control API,
publishes its state over MQTT, serves a REST and WebSocket API, and accepts
commands on both.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), configPath)
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", getConfigPath(), "path to the YAML configuration file")

	root.AddCommand(newStatusCmd(&configPath), newVersionCmd())
	return root
}

func newStatusCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Fetch the speaker's identity and state once and print them as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), statusTimeout)
			defer cancel()

			report, err := fetchStatus(ctx, cfg)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "devialetbridge %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}

// statusReport is what the status command prints.
type statusReport struct {
	Info  devialet.DeviceInfo  `json:"info"`
	State devialet.DeviceState `json:"state"`
}

func fetchStatus(ctx context.Context, cfg *config.Config) (statusReport, error) {
	client, err := devialet.NewClient(devialet.Options{
		Host:    cfg.Device.IP,
		Timeout: cfg.GetRequestTimeout(),
		InfoTTL: cfg.GetInfoTTL(),
	})
	if err != nil {
		return statusReport{}, fmt.Errorf("creating device client: %w", err)
	}
	defer client.Close()

	info, err := client.Info(ctx)
	if err != nil {
		return statusReport{}, fmt.Errorf("fetching device info: %w", err)
	}
	state, err := client.Poll(ctx)
	if err != nil {
		return statusReport{}, fmt.Errorf("polling device: %w", err)
	}
	return statusReport{Info: info, State: state}, nil
}

// getConfigPath returns the configuration file path.
// Uses DEVIALET_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("DEVIALET_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
