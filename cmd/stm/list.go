package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/aretw0/stm/pkg/core"
	"github.com/aretw0/stm/pkg/store"
)

var (
	listJSON  bool
	listMatch string
	filterTag string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List keys with their attributes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(st *store.Store) error {
			keys := st.Keys()
			if listMatch != "" {
				var err error
				if keys, err = st.Match(listMatch); err != nil {
					return err
				}
			}

			snap := core.Snapshot{}
			var filtered []string
			for _, k := range keys {
				if filterTag != "" && !st.HasTag(k, filterTag) {
					continue
				}
				e, _ := st.Entry(k)
				snap[k] = e
				filtered = append(filtered, k)
			}

			if listJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(snap)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, k := range filtered {
				a := snap[k].Attributes
				tags := make([]string, 0, len(a.SystemTags))
				for _, t := range a.SystemTags {
					tags = append(tags, string(t))
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", k, a.Type, strings.Join(tags, ","), strings.Join(a.ContentTags, ","))
			}
			return w.Flush()
		})
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Output in JSON format")
	listCmd.Flags().StringVar(&listMatch, "match", "", "Glob pattern over keys (e.g. 'user/**')")
	listCmd.Flags().StringVar(&filterTag, "tag", "", "Filter keys by content tag")
}
