package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/paiml/probar-sub002/internal/core"
)

// NewRulesCmd rules 子命令：列出规则目录
func NewRulesCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:                   "rules",
		SilenceUsage:          true,
		DisableFlagsInUseLine: true,
		Short:                 "List the rule catalogue",
		Args:                  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(core.Rules())
			}
			tw := tabwriter.NewWriter(out, 0, 8, 2, ' ', 0)
			fmt.Fprintf(tw, "CODE\tSEVERITY\tNAME\tDESCRIPTION\n")
			for _, r := range core.Rules() {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Code, r.Severity, r.Name, r.Description)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the catalogue as JSON")
	return cmd
}
