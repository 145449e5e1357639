package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var pruneCmd = &cobra.Command{
	Use:   "prune <path>",
	Short: "Remove a path and its entire subtree",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient("apteryx-prune")
		if err != nil {
			return err
		}
		defer c.Shutdown()

		if !c.Prune(args[0]) {
			return fmt.Errorf("prune %s failed", args[0])
		}
		return nil
	},
}
