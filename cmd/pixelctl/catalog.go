package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"pixelCV/internal/template"
)

func newCatalogCmd() *cobra.Command {
	var (
		search string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:     "catalog",
		Short:   "List the predefined field catalog",
		Example: `  pixelctl catalog --search passport`,
		RunE: func(cmd *cobra.Command, args []string) error {
			groups := template.DefaultCatalog().Search(search)
			if len(groups) == 0 {
				return fmt.Errorf("no catalog fields match %q", search)
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(groups)
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(map[string]any{"groups": groups})
		},
	}

	cmd.Flags().StringVarP(&search, "search", "s", "", "Case-insensitive filter on label or key")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of YAML")
	return cmd
}
