package main

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/drususdark/audit-inventory-mvp/internal/model"
)

var rankingCmd = &cobra.Command{
	Use:   "ranking",
	Short: "Print locals ordered by average score",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initAudit(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		entries, err := env.Service.Ranking(ctx)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), renderRanking(entries))
		return err
	},
}

var headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))

func renderRanking(entries []model.RankingEntry) string {
	rows := make([][]string, 0, len(entries))
	for i, e := range entries {
		last := "-"
		if e.LastScore != nil {
			last = strconv.FormatFloat(*e.LastScore, 'f', 0, 64)
		}
		avg := "-"
		if e.ReportsCount > 0 {
			avg = strconv.FormatFloat(e.AvgScore, 'f', 1, 64)
		}
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			e.Local.Name,
			strconv.Itoa(e.ReportsCount),
			avg,
			last,
		})
	}

	return table.New().
		Border(lipgloss.NormalBorder()).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		}).
		Headers("#", "Local", "Informes", "Promedio", "Última").
		Rows(rows...).
		String()
}

func init() {
	rootCmd.AddCommand(rankingCmd)
}
