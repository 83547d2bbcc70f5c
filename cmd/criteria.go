package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/drususdark/audit-inventory-mvp/internal/scoring"
)

var criteriaCmd = &cobra.Command{
	Use:   "criteria",
	Short: "Print the scoring criteria as YAML",
	RunE: func(cmd *cobra.Command, _ []string) error {
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		if err := enc.Encode(scoring.Criteria()); err != nil {
			return eris.Wrap(err, "encode criteria")
		}
		return enc.Close()
	},
}

func init() {
	rootCmd.AddCommand(criteriaCmd)
}
