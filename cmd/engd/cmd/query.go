package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func QueryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query <path>",
		Short: "Run an ABCI query against a node",
		Example: `  engd query /player/<address>
  engd query /numbers/<address>
  engd query /score/<address>
  engd query /acl/<handle>/<principal>
  engd query /entropy`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newRPC(cmd)
			if err != nil {
				return err
			}
			res, err := c.ABCIQuery(cmd.Context(), args[0], nil)
			if err != nil {
				return err
			}
			if res.Response.Code != 0 {
				return fmt.Errorf("query %s: %s (codespace=%q code=%d)", args[0], res.Response.Log, res.Response.Codespace, res.Response.Code)
			}
			var out bytes.Buffer
			if err := json.Indent(&out, res.Response.Value, "", "  "); err != nil {
				return err
			}
			cmd.Println(out.String())
			return nil
		},
	}
	addNodeFlag(cmd)
	return cmd
}
