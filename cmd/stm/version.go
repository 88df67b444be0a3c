package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/stm"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of stm",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "stm version %s\n", stm.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
