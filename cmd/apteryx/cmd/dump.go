package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var dumpCmd = &cobra.Command{
	Use:   "dump <path>",
	Short: "Print a path and every descendant reachable from it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient("apteryx-dump")
		if err != nil {
			return err
		}
		defer c.Shutdown()

		fmt.Print(c.DumpTree(args[0]))
		return nil
	},
}
