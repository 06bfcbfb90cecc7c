package cmd

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"encryptednumbers/internal/app"
	"encryptednumbers/internal/engcrypto"
	"encryptednumbers/internal/relay"
)

func RevealCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reveal [handle...]",
		Short: "Decrypt handles through the relay",
		Long: `Decrypt handles through the relay. Without arguments the --from account's
own numbers and score are revealed. Every share is checked against the
ledger's network key and ciphertext before it is opened.`,
		RunE: runReveal,
	}
	addNodeFlag(cmd)
	addFromFlag(cmd)
	cmd.Flags().String("relay", "http://127.0.0.1:8788", "relay base URL")
	cmd.Flags().Int("days", 1, "validity of the signed request in days")
	cmd.Flags().Uint64("bound", 1<<16, "largest plaintext the decoder searches for")
	return cmd
}

func runReveal(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := newSigner(cmd)
	if err != nil {
		return err
	}
	node, _ := cmd.Flags().GetString(flagNode)
	ledger, err := relay.NewRPCLedger(node)
	if err != nil {
		return err
	}
	params, err := ledger.Params(ctx)
	if err != nil {
		return err
	}
	raw, err := engcrypto.HexToBytes(params.NetworkKey)
	if err != nil {
		return fmt.Errorf("ledger network key: %w", err)
	}
	networkKey, err := engcrypto.PointFromBytesCanonical(raw)
	if err != nil {
		return fmt.Errorf("ledger network key: %w", err)
	}

	handles := args
	if len(handles) == 0 {
		if handles, err = ownHandles(cmd, s.addr); err != nil {
			return err
		}
	}

	bound, _ := cmd.Flags().GetUint64("bound")
	dec, err := engcrypto.NewDecoder(bound)
	if err != nil {
		return err
	}
	user, err := relay.NewUserKeyPair(rand.Reader)
	if err != nil {
		return err
	}
	days, _ := cmd.Flags().GetInt("days")
	req := relay.NewDecryptRequest(s.priv, s.addr, params.ChainID, handles, user, time.Now(), days)

	base, _ := cmd.Flags().GetString("relay")
	values, err := relay.NewClient(base, nil).Reveal(ctx, req, user, networkKey, dec, ledger)
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(values))
	for h := range values {
		keys = append(keys, h)
	}
	sort.Strings(keys)
	for _, h := range keys {
		cmd.Printf("%s\t%d\n", h, values[h])
	}
	return nil
}

// ownHandles returns the number and score handles of a joined player.
func ownHandles(cmd *cobra.Command, addr string) ([]string, error) {
	c, err := newRPC(cmd)
	if err != nil {
		return nil, err
	}
	res, err := c.ABCIQuery(cmd.Context(), "/numbers/"+addr, nil)
	if err != nil {
		return nil, err
	}
	var numbers app.NumbersResponse
	if err := json.Unmarshal(res.Response.Value, &numbers); err != nil {
		return nil, err
	}
	res, err = c.ABCIQuery(cmd.Context(), "/score/"+addr, nil)
	if err != nil {
		return nil, err
	}
	var score app.ScoreResponse
	if err := json.Unmarshal(res.Response.Value, &score); err != nil {
		return nil, err
	}
	if score.Score == "" {
		return nil, fmt.Errorf("%s has not joined", addr)
	}
	return append(numbers.Numbers[:], score.Score), nil
}
