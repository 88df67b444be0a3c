package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/stm/pkg/store"
)

var (
	exportFormat string
	exportOut    string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the store as Markdown or JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var data []byte
		err := withStore(cmd, func(st *store.Store) error {
			var err error
			if exportFormat == "json" {
				data, err = st.SerializeJSON()
			} else {
				data, err = st.ToMarkdown()
			}
			return err
		})
		if err != nil {
			return err
		}
		if exportOut != "" {
			return os.WriteFile(exportOut, data, 0644)
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVar(&exportFormat, "format", "markdown", "Output format: markdown or json")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Write to a file instead of stdout")
}
