package main

import (
	"context"
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/drususdark/audit-inventory-mvp/internal/audit"
	"github.com/drususdark/audit-inventory-mvp/internal/scoring"
)

var scoreCmd = &cobra.Command{
	Use:   "score <file|->",
	Short: "Score a report file (or stdin) without storing it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService(nil)
		if err != nil {
			return err
		}

		resp, err := scoreInput(cmd.Context(), svc, args[0], cmd.InOrStdin())
		if err != nil {
			return err
		}
		return writeScore(cmd.OutOrStdout(), resp)
	},
}

// scoreInput scores the file at arg, or stdin when arg is "-".
func scoreInput(ctx context.Context, svc *audit.Service, arg string, stdin io.Reader) (scoring.Response, error) {
	if arg != "-" {
		return svc.ScoreFile(ctx, arg)
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return scoring.Response{}, eris.Wrap(err, "read stdin")
	}
	return svc.PreviewScore(ctx, string(data))
}

func writeScore(w io.Writer, resp scoring.Response) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return eris.Wrap(enc.Encode(resp), "write score")
}

func init() {
	rootCmd.AddCommand(scoreCmd)
}
