package cmd

import (
	"encoding/json"
	"fmt"
	"strconv"

	rpchttp "github.com/cometbft/cometbft/rpc/client/http"
	cmttypes "github.com/cometbft/cometbft/types"
	"github.com/spf13/cobra"

	"encryptednumbers/internal/codec"
)

func TxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tx",
		Short: "Sign and broadcast transactions",
	}
	cmd.AddCommand(txRegisterCmd(), txJoinCmd(), txClaimCmd())
	return cmd
}

func addTxFlags(cmd *cobra.Command) {
	addNodeFlag(cmd)
	addFromFlag(cmd)
	cmd.Flags().Uint64("nonce", 0, "tx nonce; defaults to the current unix time in nanoseconds")
}

func txRegisterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Bind the --from key to its address on the ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := newSigner(cmd)
			if err != nil {
				return err
			}
			return s.broadcast(cmd, codec.TxRegisterAccount, codec.AuthRegisterAccountTx{
				Account: s.addr,
				PubKey:  s.pub(),
			})
		},
	}
	addTxFlags(cmd)
	return cmd
}

func txJoinCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "join",
		Short: "Join the game and receive three encrypted numbers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := newSigner(cmd)
			if err != nil {
				return err
			}
			return s.broadcast(cmd, codec.TxJoin, codec.GameJoinTx{Player: s.addr})
		},
	}
	addTxFlags(cmd)
	return cmd
}

func txClaimCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "claim <index>",
		Short: "Add the number at index (0-2) to the encrypted score",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("index: %w", err)
			}
			s, err := newSigner(cmd)
			if err != nil {
				return err
			}
			return s.broadcast(cmd, codec.TxClaimPoints, codec.GameClaimPointsTx{Player: s.addr, Index: uint32(idx)})
		},
	}
	addTxFlags(cmd)
	return cmd
}

func newRPC(cmd *cobra.Command) (*rpchttp.HTTP, error) {
	node, _ := cmd.Flags().GetString(flagNode)
	return rpchttp.New(node)
}

// txResult is what tx commands print.
type txResult struct {
	Hash      string          `json:"hash"`
	Height    int64           `json:"height"`
	Code      uint32          `json:"code"`
	Codespace string          `json:"codespace,omitempty"`
	Log       string          `json:"log,omitempty"`
	Events    json.RawMessage `json:"events,omitempty"`
}

func (s *signer) broadcast(cmd *cobra.Command, typ string, value any) error {
	tx, err := codec.NewSignedTx(s.priv, typ, value, strconv.FormatUint(s.nextNonce(cmd), 10), s.addr)
	if err != nil {
		return err
	}
	c, err := newRPC(cmd)
	if err != nil {
		return err
	}
	res, err := c.BroadcastTxCommit(cmd.Context(), cmttypes.Tx(tx))
	if err != nil {
		return err
	}

	out := txResult{Hash: res.Hash.String(), Height: res.Height}
	switch {
	case res.CheckTx.Code != 0:
		out.Code, out.Codespace, out.Log = res.CheckTx.Code, res.CheckTx.Codespace, res.CheckTx.Log
	default:
		out.Code, out.Codespace, out.Log = res.TxResult.Code, res.TxResult.Codespace, res.TxResult.Log
		if out.Events, err = json.Marshal(res.TxResult.Events); err != nil {
			return err
		}
	}
	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	cmd.Println(string(b))
	if out.Code != 0 {
		return fmt.Errorf("%s rejected: %s", typ, out.Log)
	}
	return nil
}
