package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/stm/pkg/core"
	"github.com/aretw0/stm/pkg/store"
)

var (
	setType        string
	setContentType string
	setTags        []string
	setSystemTags  []string
	setZIndex      int
	setCreate      bool
	setStdin       bool
)

var setCmd = &cobra.Command{
	Use:   "set <key> [value]",
	Short: "Create or update a key",
	Long: `Create or update a key. The value is read from stdin with --stdin.
Attribute flags only touch the attributes they name.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]
		var value string
		switch {
		case setStdin:
			data, err := io.ReadAll(os.Stdin)
			if err != nil {
				return err
			}
			value = string(data)
		case len(args) == 2:
			value = args[1]
		default:
			return fmt.Errorf("missing value for %q (pass it or use --stdin)", key)
		}

		patch, err := setPatch(cmd)
		if err != nil {
			return err
		}
		return withStore(cmd, func(st *store.Store) error {
			if setCreate {
				return st.Create(key, value, patch)
			}
			return st.Set(key, value, patch)
		})
	},
}

func setPatch(cmd *cobra.Command) (*core.AttributesPatch, error) {
	flags := cmd.Flags()
	var patch *core.AttributesPatch
	touch := func() *core.AttributesPatch {
		if patch == nil {
			patch = core.Patch()
		}
		return patch
	}
	if flags.Changed("type") {
		t, err := core.ParseType(setType)
		if err != nil {
			return nil, err
		}
		touch().WithType(t)
	}
	if flags.Changed("content-type") {
		touch().WithContentType(setContentType)
	}
	if flags.Changed("tag") {
		touch().WithContentTags(setTags...)
	}
	if flags.Changed("system-tag") {
		tags := make([]core.SystemTag, 0, len(setSystemTags))
		for _, s := range setSystemTags {
			t, err := core.ParseSystemTag(s)
			if err != nil {
				return nil, err
			}
			tags = append(tags, t)
		}
		touch().WithSystemTags(tags...)
	}
	if flags.Changed("z-index") {
		touch().WithZIndex(setZIndex)
	}
	return patch, nil
}

func init() {
	rootCmd.AddCommand(setCmd)
	setCmd.Flags().StringVarP(&setType, "type", "t", "", "Entry type (text, json, document, image, file)")
	setCmd.Flags().StringVar(&setContentType, "content-type", "", "MIME type of binary entries")
	setCmd.Flags().StringSliceVar(&setTags, "tag", nil, "Content tags (replaces the list)")
	setCmd.Flags().StringSliceVar(&setSystemTags, "system-tag", nil, "System tags (replaces the list; needs --access system)")
	setCmd.Flags().IntVar(&setZIndex, "z-index", 0, "Ordering hint")
	setCmd.Flags().BoolVar(&setCreate, "create", false, "Fail if the key exists")
	setCmd.Flags().BoolVar(&setStdin, "stdin", false, "Read the value from stdin")
}
