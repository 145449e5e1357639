package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var provideCmd = &cobra.Command{
	Use:   "provide <path> <value>",
	Short: "Answer GET requests for a path with a fixed value until interrupted",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient("apteryx-provide")
		if err != nil {
			return err
		}
		defer c.Shutdown()

		path, value := args[0], []byte(args[1])
		ok := c.Provide(path, func(p string, priv uint64) []byte {
			return value
		}, 0)
		if !ok {
			return fmt.Errorf("failed to provide %s", path)
		}

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh
		return nil
	},
}
