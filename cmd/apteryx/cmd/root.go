package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	apclient "github.com/isaac129/apteryx/client"
)

var debug bool

var rootCmd = &cobra.Command{
	Use:   "apteryx",
	Short: "Interact with the apteryx configuration broker",
}

// Execute runs the CLI, returning any error a subcommand produced.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.AddCommand(getCmd, setCmd, searchCmd, pruneCmd, watchCmd, provideCmd, dumpCmd)
}

// newClient connects a fresh apteryx client for the duration of a single
// subcommand invocation.
func newClient(name string) (*apclient.Client, error) {
	c := apclient.New(name)
	if !c.Init(debug) {
		return nil, fmt.Errorf("failed to connect to apteryx-server")
	}
	return c, nil
}
