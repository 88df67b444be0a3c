package main

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/aretw0/stm/pkg/adapters/anthropic"
	"github.com/aretw0/stm/pkg/store"
	"github.com/aretw0/stm/pkg/tools"
)

var (
	toolsPattern   string
	toolsAnthropic bool
)

func surface() *tools.Surface {
	opts := []tools.Option{tools.WithLogger(slog.Default())}
	if toolsPattern != "" {
		opts = append(opts, tools.WithKeyPattern(toolsPattern))
	}
	return tools.New(opts...)
}

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the tools generated for LLM-writable keys",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(st *store.Store) error {
			descs := surface().Descriptors(st)
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if toolsAnthropic {
				return enc.Encode(anthropic.ToolParams(descs))
			}
			for _, d := range descs {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", d.Name, d.Description)
			}
			return nil
		})
	},
}

var callCmd = &cobra.Command{
	Use:   "call <tool> <json-input>",
	Short: "Execute a generated tool the way an LLM would",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(st *store.Store) error {
			res, err := surface().Execute(st, args[0], json.RawMessage(args[1]))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Message)
			return nil
		})
	},
}

var promptCmd = &cobra.Command{
	Use:   "prompt",
	Short: "Print the system prompt rendered from SystemPrompt entries",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(st *store.Store) error {
			fmt.Fprint(cmd.OutOrStdout(), st.SystemPrompt())
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(toolsCmd, callCmd, promptCmd)
	rootCmd.PersistentFlags().StringVar(&toolsPattern, "tools-match", "", "Only expose tools for keys matching this glob")
	toolsCmd.Flags().BoolVar(&toolsAnthropic, "anthropic", false, "Print Anthropic tool definitions as JSON")
}
