package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/receipts-extractor/internal/app"
	"github.com/joseph-ayodele/receipts-extractor/internal/async"
	"github.com/joseph-ayodele/receipts-extractor/internal/common"
	"github.com/joseph-ayodele/receipts-extractor/internal/export"
	"github.com/joseph-ayodele/receipts-extractor/internal/ingest"
	"github.com/joseph-ayodele/receipts-extractor/internal/pipeline"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "receipt-batch",
		Short:         "Extract structured receipt data from OCR output",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newExtractCmd(), newBatchCmd(), newWatchCmd())
	return root
}

// setup loads configuration and wires the runtime; logs go to stderr so
// stdout stays clean for results.
func setup(ctx context.Context) (*common.Config, *slog.Logger, *app.Runtime, error) {
	cfg := common.LoadConfig()
	logger := app.NewLogger(cfg.Log, os.Stderr)
	slog.SetDefault(logger)
	if err := cfg.Validate(); err != nil {
		return nil, nil, nil, err
	}
	rt, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, logger, rt, nil
}

func newExtractCmd() *cobra.Command {
	var explain bool
	cmd := &cobra.Command{
		Use:   "extract <ocr.json|ocr.txt>",
		Short: "Extract one OCR payload and print the result as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			_, _, rt, err := setup(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if explain {
				r, err := ingest.Load(args[0])
				if err != nil {
					return err
				}
				return enc.Encode(rt.Engine.Explain(common.WithSourceRef(ctx, args[0]), r, nil))
			}
			out, err := rt.Processor.ProcessFile(ctx, args[0])
			if err != nil {
				return err
			}
			return enc.Encode(out)
		},
	}
	cmd.Flags().BoolVar(&explain, "explain", false, "print lines, evidence and fusion detail alongside the result")
	return cmd
}

func newBatchCmd() *cobra.Command {
	var (
		dir        string
		out        string
		fromStr    string
		toStr      string
		workers    int
		skipHidden bool
	)
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Extract every OCR payload under a directory and export an XLSX workbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			// If output file not specified, use parent directory with default filename
			if out == "" {
				out = filepath.Join(filepath.Dir(dir), "receipts.xlsx")
			}
			from, err := parseDate("--from", fromStr)
			if err != nil {
				return err
			}
			to, err := parseDate("--to", toStr)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			cfg, logger, rt, err := setup(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()
			if workers <= 0 {
				workers = cfg.Engine.Workers
			}

			logger.Info("starting scan", "dir", dir)
			paths, stats, err := ingest.ScanDirectory(ctx, dir, skipHidden)
			if err != nil {
				logger.Error("failed to scan directory", "error", err)
				return err
			}
			logger.Info("scan complete", "scanned", stats.Scanned, "matched", stats.Matched, "failed", stats.Failed)

			q := async.NewProcessorQueue(rt.Processor, logger,
				async.WithWorkers(workers),
				async.WithProcessTimeout(cfg.Engine.ProcessTimeout),
			)
			runID, results, err := async.RunBatch(ctx, q, paths)
			if err != nil {
				logger.Error("batch run failed", "run_id", runID, "error", err)
				return err
			}

			rows := make([]export.Row, 0, len(results))
			var processed, failures, cached, flagged int
			for _, r := range results {
				if r.Err != nil {
					logger.Error("failed to process file", "path", r.Job.Path, "error", r.Err)
					failures++
					continue
				}
				processed++
				if r.Outcome.Step == pipeline.StepCache {
					cached++
				}
				if r.Outcome.Result.NeedsVerification {
					flagged++
				}
				rows = append(rows, export.Row{SourceRef: r.Outcome.SourceRef, Result: r.Outcome.Result})
			}

			logger.Info("exporting to XLSX", "output", out)
			xlsxBytes, err := export.NewService(logger).ExportXLSX(ctx, rows, from, to)
			if err != nil {
				logger.Error("failed to export results", "error", err)
				return err
			}
			if err := os.WriteFile(out, xlsxBytes, 0644); err != nil {
				logger.Error("failed to write output file", "error", err)
				return err
			}

			logger.Info("batch processing complete",
				"run_id", runID,
				"files_matched", len(paths),
				"files_processed", processed,
				"failures", failures,
				"cached", cached,
				"needs_verification", flagged,
				"output_file", out)

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Batch processing complete!\n")
			fmt.Fprintf(w, "- Files matched: %d\n", len(paths))
			fmt.Fprintf(w, "- Files processed: %d\n", processed)
			fmt.Fprintf(w, "- Served from cache: %d\n", cached)
			fmt.Fprintf(w, "- Needs verification: %d\n", flagged)
			fmt.Fprintf(w, "- Failures: %d\n", failures)
			fmt.Fprintf(w, "- Output: %s\n", out)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&dir, "dir", "", "directory to process OCR payloads from (required)")
	f.StringVar(&out, "out", "", "output XLSX file path (optional, defaults to parent directory)")
	f.StringVar(&fromStr, "from", "", "from date YYYY-MM-DD")
	f.StringVar(&toStr, "to", "", "to date YYYY-MM-DD")
	f.IntVar(&workers, "workers", 0, "concurrent extractions (defaults to ENGINE_WORKERS)")
	f.BoolVar(&skipHidden, "skip-hidden", true, "skip dot files and directories")
	_ = cmd.MarkFlagRequired("dir")
	return cmd
}

func newWatchCmd() *cobra.Command {
	var (
		dirs     []string
		initial  bool
		debounce time.Duration
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Extract OCR payloads as they appear under the given directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, logger, rt, err := setup(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()

			paths, errs, err := ingest.Watch(ctx, ingest.WatchConfig{
				Roots:       dirs,
				InitialScan: initial,
				SkipHidden:  true,
				Debounce:    debounce,
				Logger:      logger,
			})
			if err != nil {
				return err
			}

			q := async.NewProcessorQueue(rt.Processor, logger,
				async.WithWorkers(cfg.Engine.Workers),
				async.WithProcessTimeout(cfg.Engine.ProcessTimeout),
			)
			done := make(chan struct{})
			go func() {
				defer close(done)
				for r := range q.Results() {
					if r.Err != nil {
						logger.Error("failed to process file", "path", r.Job.Path, "error", r.Err)
						continue
					}
					logger.Info("file processed",
						"path", r.Job.Path,
						"step", r.Outcome.Step,
						"confidence", r.Outcome.Result.Confidence,
						"needs_verification", r.Outcome.Result.NeedsVerification)
				}
			}()

			run := uuid.New()
			logger.Info("watching", "dirs", dirs, "run_id", run)
			for paths != nil || errs != nil {
				select {
				case p, ok := <-paths:
					if !ok {
						paths = nil
						continue
					}
					if err := q.Enqueue(ctx, async.NewJob(run, p)); err != nil {
						logger.Warn("enqueue failed", "path", p, "error", err)
					}
				case err, ok := <-errs:
					if !ok {
						errs = nil
						continue
					}
					logger.Warn("watcher error", "error", err)
				}
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Engine.ProcessTimeout)
			defer cancel()
			q.Shutdown(shutdownCtx)
			<-done
			logger.Info("watch stopped")
			return nil
		},
	}
	f := cmd.Flags()
	f.StringSliceVar(&dirs, "dir", nil, "directory to watch, repeatable (required)")
	f.BoolVar(&initial, "initial-scan", true, "process files already present at startup")
	f.DurationVar(&debounce, "debounce", 500*time.Millisecond, "coalesce bursts of writes to the same file")
	_ = cmd.MarkFlagRequired("dir")
	return cmd
}

func parseDate(flag, s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, fmt.Errorf("invalid %s date format, use YYYY-MM-DD: %w", flag, err)
	}
	return &t, nil
}
