package main

import (
	"context"
	"sort"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/drususdark/audit-inventory-mvp/internal/audit"
)

var (
	importLocalID int64
	importDate    string
)

var importCmd = &cobra.Command{
	Use:   "import <glob>",
	Short: "Upload every report file matching a glob for one local",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		reportDate := time.Now()
		if importDate != "" {
			d, err := time.Parse(time.DateOnly, importDate)
			if err != nil {
				return eris.Wrapf(err, "parse --date %q", importDate)
			}
			reportDate = d
		}

		paths, err := doublestar.FilepathGlob(args[0], doublestar.WithFilesOnly())
		if err != nil {
			return eris.Wrapf(err, "glob %s", args[0])
		}
		if len(paths) == 0 {
			return eris.Errorf("no files match %s", args[0])
		}
		sort.Strings(paths)

		env, err := initAudit(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		_, err = importFiles(ctx, env.Service, importLocalID, paths, reportDate, cfg.Batch.MaxConcurrentReports)
		return err
	},
}

// reportImporter is the part of audit.Service the import command needs.
type reportImporter interface {
	ImportFile(ctx context.Context, localID int64, path string, reportDate time.Time) (*audit.ReportOutcome, error)
}

type importSummary struct {
	Succeeded int64
	Failed    int64
}

// importFiles uploads paths concurrently. A failed file is logged and does
// not abort the others.
func importFiles(ctx context.Context, svc reportImporter, localID int64, paths []string, reportDate time.Time, concurrency int) (importSummary, error) {
	if concurrency < 1 {
		concurrency = 1
	}

	zap.L().Info("importing reports",
		zap.Int("files", len(paths)),
		zap.Int64("local_id", localID),
		zap.Int("concurrency", concurrency),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var succeeded, failed atomic.Int64

	for _, path := range paths {
		g.Go(func() error {
			log := zap.L().With(zap.String("file", path))

			out, err := svc.ImportFile(gctx, localID, path, reportDate)
			if err != nil {
				failed.Add(1)
				log.Error("import failed", zap.Error(err))
				return nil
			}

			succeeded.Add(1)
			log.Info("report imported",
				zap.Int64("report_id", out.Report.ID),
				zap.Int("auto_score", out.Score.AutoScore),
				zap.String("source", string(out.Scoring.Source)),
			)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return importSummary{}, eris.Wrap(err, "import reports")
	}

	summary := importSummary{Succeeded: succeeded.Load(), Failed: failed.Load()}
	zap.L().Info("import complete",
		zap.Int64("succeeded", summary.Succeeded),
		zap.Int64("failed", summary.Failed),
	)
	return summary, nil
}

func init() {
	importCmd.Flags().Int64Var(&importLocalID, "local", 0, "local ID the reports belong to (required)")
	importCmd.Flags().StringVar(&importDate, "date", "", "report date as YYYY-MM-DD (default today)")
	_ = importCmd.MarkFlagRequired("local")
	rootCmd.AddCommand(importCmd)
}
