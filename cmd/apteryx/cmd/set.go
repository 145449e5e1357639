package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var setCmd = &cobra.Command{
	Use:   "set <path> <value>",
	Short: "Store a value at a path",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient("apteryx-set")
		if err != nil {
			return err
		}
		defer c.Shutdown()

		if !c.Set(args[0], []byte(args[1])) {
			return fmt.Errorf("set %s failed", args[0])
		}
		return nil
	},
}
