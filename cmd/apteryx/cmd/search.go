package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var searchCmd = &cobra.Command{
	Use:   "search <prefix>",
	Short: "List the direct children of a path prefix",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient("apteryx-search")
		if err != nil {
			return err
		}
		defer c.Shutdown()

		for _, path := range c.Search(args[0]) {
			fmt.Println(path)
		}
		return nil
	},
}
