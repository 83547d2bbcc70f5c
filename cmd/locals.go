package main

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/drususdark/audit-inventory-mvp/internal/model"
)

var localsCmd = &cobra.Command{
	Use:   "locals",
	Short: "Manage locals (stores)",
}

var localsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List locals",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initAudit(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		locals, err := env.Service.ListLocals(ctx)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), renderLocals(locals))
		return err
	},
}

var (
	localName    string
	localAddress string
)

var localsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a local",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initAudit(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		l, err := env.Service.CreateLocal(ctx, localName, localAddress)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "created local %d: %s\n", l.ID, l.Name)
		return err
	},
}

func renderLocals(locals []model.Local) string {
	rows := make([][]string, 0, len(locals))
	for _, l := range locals {
		rows = append(rows, []string{
			strconv.FormatInt(l.ID, 10),
			l.Name,
			l.Address,
			l.CreatedAt.Format("2006-01-02"),
		})
	}
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "Nombre", "Dirección", "Creado").
		Rows(rows...).
		String()
}

func init() {
	localsCreateCmd.Flags().StringVar(&localName, "name", "", "local name (required)")
	localsCreateCmd.Flags().StringVar(&localAddress, "address", "", "local address")
	_ = localsCreateCmd.MarkFlagRequired("name")

	localsCmd.AddCommand(localsListCmd, localsCreateCmd)
	rootCmd.AddCommand(localsCmd)
}
