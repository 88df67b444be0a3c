package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/stm/pkg/core"
	"github.com/aretw0/stm/pkg/store"
)

var deleteAll bool

var deleteCmd = &cobra.Command{
	Use:   "delete [key...]",
	Short: "Delete keys",
	Long:  `Delete keys. Protected entries are kept. --all clears every non-protected entry.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !deleteAll && len(args) == 0 {
			return fmt.Errorf("nothing to delete: pass keys or --all")
		}
		return withStore(cmd, func(st *store.Store) error {
			if deleteAll {
				st.Clear()
				return nil
			}
			for _, key := range args {
				if !st.Delete(key) {
					return core.E("delete", key, core.ErrNotFound)
				}
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(deleteCmd)
	deleteCmd.Flags().BoolVar(&deleteAll, "all", false, "Delete every non-protected entry")
}
