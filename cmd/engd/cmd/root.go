package cmd

import (
	"os"
	"path/filepath"

	"cosmossdk.io/log"
	"github.com/spf13/cobra"

	"encryptednumbers/internal/config"
)

const (
	flagHome      = "home"
	flagLogLevel  = "log-level"
	flagLogFormat = "log-format"
	flagNode      = "node"
	flagFrom      = "from"
)

func defaultHome() string {
	dir, err := os.UserHomeDir()
	if err != nil {
		return config.DefaultHome
	}
	return filepath.Join(dir, config.DefaultHome)
}

// NewRootCmd creates the engd command tree. It is called once in main.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "engd",
		Short:         "Encrypted numbers ledger, decryption relay and client",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			cmd.SetOut(cmd.OutOrStdout())
			cmd.SetErr(cmd.ErrOrStderr())
		},
	}
	rootCmd.PersistentFlags().String(flagHome, defaultHome(), "directory for config and data")
	rootCmd.PersistentFlags().String(flagLogLevel, "info", "log level (trace|debug|info|warn|error)")
	rootCmd.PersistentFlags().String(flagLogFormat, "plain", "log format (plain|json)")

	rootCmd.AddCommand(
		StartCmd(),
		RelayCmd(),
		KeysCmd(),
		GenesisCmd(),
		EntropyCmd(),
		TxCmd(),
		QueryCmd(),
		RevealCmd(),
	)
	return rootCmd
}

// loadConfig reads the config for cmd, honoring any flags set on it.
func loadConfig(cmd *cobra.Command) (config.Config, log.Logger, error) {
	home, err := cmd.Flags().GetString(flagHome)
	if err != nil {
		return config.Config{}, nil, err
	}
	cfg, err := config.Load(home, cmd.Flags())
	if err != nil {
		return config.Config{}, nil, err
	}
	logger, err := cfg.NewLogger(cmd.ErrOrStderr())
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

func addNodeFlag(cmd *cobra.Command) {
	cmd.Flags().String(flagNode, "tcp://127.0.0.1:26657", "CometBFT RPC endpoint")
}

func addFromFlag(cmd *cobra.Command) {
	cmd.Flags().String(flagFrom, "", "name of the signing key under <home>/keys")
	_ = cmd.MarkFlagRequired(flagFrom)
}
