// Command apteryx is a command-line client for the broker: get, set,
// search, prune, watch and provide, each a thin wrapper over package client.
package main

import (
	"os"

	"github.com/isaac129/apteryx/cmd/apteryx/cmd"
	"github.com/isaac129/apteryx/common/aputil"
)

func main() {
	if err := cmd.Execute(); err != nil {
		aputil.Errorf("%v\n", err)
		os.Exit(1)
	}
}
