package cmd

import (
	"crypto/rand"
	"fmt"

	"github.com/spf13/cobra"

	"encryptednumbers/internal/codec"
	"encryptednumbers/internal/engcrypto"
	"encryptednumbers/internal/relay"
	"encryptednumbers/internal/rng"
)

func EntropyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "entropy",
		Short: "Entropy provider tools",
	}
	cmd.AddCommand(entropyFillCmd())
	return cmd
}

func entropyFillCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fill",
		Short: "Encrypt fresh random numbers under the network key and submit them with range proofs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			count, _ := cmd.Flags().GetInt("count")
			if count <= 0 {
				return fmt.Errorf("--count must be positive")
			}
			s, err := newSigner(cmd)
			if err != nil {
				return err
			}
			node, _ := cmd.Flags().GetString(flagNode)
			ledger, err := relay.NewRPCLedger(node)
			if err != nil {
				return err
			}
			params, err := ledger.Params(cmd.Context())
			if err != nil {
				return err
			}
			raw, err := engcrypto.HexToBytes(params.NetworkKey)
			if err != nil {
				return fmt.Errorf("ledger network key: %w", err)
			}
			pk, err := engcrypto.PointFromBytesCanonical(raw)
			if err != nil {
				return fmt.Errorf("ledger network key: %w", err)
			}

			perTx, err := rng.TicketsPerSubmit(params.NumberLow, params.NumberHigh)
			if err != nil {
				return err
			}
			for count > 0 {
				batch := min(count, perTx)
				tickets := make([]codec.EntropyTicket, 0, batch)
				for i := 0; i < batch; i++ {
					t, _, err := rng.NewTicket(pk, s.addr, params.NumberLow, params.NumberHigh, rand.Reader)
					if err != nil {
						return err
					}
					tickets = append(tickets, t.ToCodec())
				}
				if err := s.broadcast(cmd, codec.TxEntropySubmit, codec.EntropySubmitTx{
					Provider: s.addr,
					Tickets:  tickets,
				}); err != nil {
					return err
				}
				count -= batch
			}
			return nil
		},
	}
	addTxFlags(cmd)
	cmd.Flags().Int("count", rng.MaxTicketsPerSubmit, "number of tickets to submit; large counts are split across txs")
	return cmd
}
