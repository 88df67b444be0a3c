package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/stm/pkg/core"
	"github.com/aretw0/stm/pkg/store"
)

var tagSystem bool

var tagCmd = &cobra.Command{
	Use:   "tag",
	Short: "Add or remove tags",
}

var tagAddCmd = &cobra.Command{
	Use:   "add <key> <tag>",
	Short: "Add a content tag (or a system tag with --system)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return editTag(cmd, args[0], args[1], true)
	},
}

var tagRemoveCmd = &cobra.Command{
	Use:   "remove <key> <tag>",
	Short: "Remove a content tag (or a system tag with --system)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return editTag(cmd, args[0], args[1], false)
	},
}

func editTag(cmd *cobra.Command, key, tag string, add bool) error {
	var sys core.SystemTag
	if tagSystem {
		var err error
		if sys, err = core.ParseSystemTag(tag); err != nil {
			return err
		}
	}
	return withStore(cmd, func(st *store.Store) error {
		var ok bool
		switch {
		case tagSystem && add:
			ok = st.SystemAddTag(key, sys)
		case tagSystem:
			ok = st.SystemRemoveTag(key, sys)
		case add:
			ok = st.AddTag(key, tag)
		default:
			ok = st.RemoveTag(key, tag)
		}
		if !ok {
			return fmt.Errorf("tag %q not changed on %q (missing key, tag or access)", tag, key)
		}
		return nil
	})
}

func init() {
	rootCmd.AddCommand(tagCmd)
	tagCmd.AddCommand(tagAddCmd, tagRemoveCmd)
	tagCmd.PersistentFlags().BoolVar(&tagSystem, "system", false, "Edit system tags (needs --access system)")
}
