package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"encryptednumbers/internal/app"
	"encryptednumbers/internal/engcrypto"
	"encryptednumbers/internal/state"
)

func GenesisCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "genesis",
		Short: "Print the app_state document for the CometBFT genesis file",
		Long: `Print the app_state document for the CometBFT genesis file. The network
public key is taken from --network-key or derived from the relay key file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			networkKey, _ := cmd.Flags().GetString("network-key")
			if networkKey == "" {
				x, err := readNetworkSecret(cfg.Relay.KeyFile)
				if err != nil {
					return fmt.Errorf("no --network-key given: %w", err)
				}
				networkKey = engcrypto.BytesToHex(engcrypto.MulBase(x).Bytes())
			}
			providers, _ := cmd.Flags().GetStringSlice("provider")
			low, _ := cmd.Flags().GetUint32("number-low")
			high, _ := cmd.Flags().GetUint32("number-high")

			g := app.Genesis{
				NetworkKey:       networkKey,
				EntropyProviders: providers,
				Params:           &state.Params{NumberLow: low, NumberHigh: high},
			}
			if err := g.Validate(); err != nil {
				return err
			}
			out, err := json.MarshalIndent(g, "", "  ")
			if err != nil {
				return err
			}
			cmd.Println(string(out))
			return nil
		},
	}
	cmd.Flags().String("network-key", "", "hex encoded network public key")
	cmd.Flags().String("relay-key-file", "", "network secret key file used when --network-key is empty")
	cmd.Flags().StringSlice("provider", nil, "address of an entropy provider (repeatable)")
	cmd.Flags().Uint32("number-low", state.DefaultNumberLow, "smallest drawable number")
	cmd.Flags().Uint32("number-high", state.DefaultNumberHigh, "largest drawable number")
	_ = cmd.MarkFlagRequired("provider")
	return cmd
}
