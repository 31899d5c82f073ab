// Command campaign runs the campaign gateway API.
//
//	campaign            # same as "campaign serve"
//	campaign serve
//	campaign migrate
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	serve := serveCmd()

	root := &cobra.Command{
		Use:           "campaign",
		Short:         "Campaign gateway API server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve.RunE,
	}

	root.AddCommand(serve)
	root.AddCommand(migrateCmd())

	return root
}
