package main

import (
	"github.com/spf13/cobra"

	"github.com/krew-solutions/ascetic-dao-go/asceticdao/query"
)

func newSortCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sort",
		Short: "Work with sort specifications",
	}
	var separator string
	normalize := &cobra.Command{
		Use:   "normalize <spec>",
		Short: `Normalize "name,-age", {"name": 1} or [["name", 1]] into ordering tokens`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := query.DecodeSort(args[0])
			if err != nil {
				return err
			}
			tokens, err := query.NormalizeSort(spec, separator)
			if err != nil {
				return err
			}
			if tokens == nil {
				tokens = []string{}
			}
			return render(cmd.OutOrStdout(), opts.output, tokens)
		},
	}
	normalize.Flags().StringVar(&separator, "separator", "__", "replacement for . in nested fields")
	cmd.AddCommand(normalize)
	return cmd
}
