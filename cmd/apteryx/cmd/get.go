package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var getCmd = &cobra.Command{
	Use:   "get <path>",
	Short: "Read the value stored or provided at a path",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient("apteryx-get")
		if err != nil {
			return err
		}
		defer c.Shutdown()

		value, ok := c.Get(args[0])
		if !ok {
			return fmt.Errorf("get %s failed", args[0])
		}
		fmt.Println(string(value))
		return nil
	},
}
