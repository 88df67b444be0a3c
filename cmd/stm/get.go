package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/stm/pkg/core"
	"github.com/aretw0/stm/pkg/store"
)

var (
	getRaw  bool
	getJSON bool
)

var getCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print the value of a key",
	Long:  `Print the value of a key. Template-enabled entries are rendered unless --raw is given.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]
		return withStore(cmd, func(st *store.Store) error {
			if getJSON {
				e, ok := st.Entry(key)
				if !ok {
					return core.E("get", key, core.ErrNotFound)
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(e)
			}
			get := st.Get
			if getRaw {
				get = st.GetRaw
			}
			v, ok := get(key)
			if !ok {
				return core.E("get", key, core.ErrNotFound)
			}
			fmt.Fprintln(cmd.OutOrStdout(), v)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(getCmd)
	getCmd.Flags().BoolVar(&getRaw, "raw", false, "Skip template rendering")
	getCmd.Flags().BoolVar(&getJSON, "json", false, "Print the entry with its attributes")
}
