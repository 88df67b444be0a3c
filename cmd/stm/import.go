package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/stm/pkg/core"
	"github.com/aretw0/stm/pkg/store"
)

var importMerge bool

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import a Markdown export or a JSON snapshot",
	Long: `Import a Markdown export (.md) or a JSON snapshot. Without --merge the
store is replaced; with it, imported keys are written over existing ones.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		markdown := strings.EqualFold(filepath.Ext(args[0]), ".md")
		return withStore(cmd, func(st *store.Store) error {
			if markdown {
				return st.FromMarkdown(data, importMerge)
			}
			if !importMerge {
				return st.DeserializeJSON(data)
			}
			snap, err := core.UpgradeSnapshot(data)
			if err != nil {
				return err
			}
			values := make(map[string]string, len(snap))
			for k, e := range snap {
				if st.Exists(k) {
					values[k] = e.Value
					continue
				}
				if err := st.Set(k, e.Value, core.PatchFrom(e.Attributes)); err != nil {
					return err
				}
			}
			return st.Update(values)
		})
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().BoolVar(&importMerge, "merge", false, "Merge into the existing store")
}
