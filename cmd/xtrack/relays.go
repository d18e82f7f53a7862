package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/trickstertwo/xtrack"
)

func newRelaysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "relays",
		Short: "List the relay names emit accepts",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			for _, name := range xtrack.Relays() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
		},
	}
}
