package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch <pattern>",
	Short: "Print every change matching a pattern until interrupted",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient("apteryx-watch")
		if err != nil {
			return err
		}
		defer c.Shutdown()

		pattern := args[0]
		ok := c.Watch(pattern, func(path string, priv uint64, value []byte) bool {
			fmt.Printf("%s = %s\n", path, string(value))
			return true
		}, 0)
		if !ok {
			return fmt.Errorf("failed to watch %s", pattern)
		}

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh
		return nil
	},
}
