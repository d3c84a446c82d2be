package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rflorenc/apim-template-extractor/internal/extract"
)

func kindsCmd() *cobra.Command {
	var (
		service string
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "kinds",
		Short: "List the extracted kinds, their files and dependencies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			kinds, err := extract.Kinds(service)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(kinds)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "WAVE\tKIND\tFILE\tDEPENDS ON")
			for _, k := range kinds {
				deps := make([]string, len(k.DependsOn))
				for i, d := range k.DependsOn {
					deps[i] = string(d)
				}
				dependsOn := strings.Join(deps, ", ")
				if dependsOn == "" {
					dependsOn = "-"
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", k.Wave, k.Kind, k.FileName, dependsOn)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&service, "sourceApimName", "service", "Service name used in file names")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}
