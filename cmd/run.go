package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/company-signals/internal/app"
	"github.com/JakeFAU/company-signals/internal/config"
)

type runFlags struct {
	input        string
	outputDir    string
	concurrency  int
	skipAnalysis bool
	keep         bool
}

// newRunCmd creates the 'run' subcommand, which scrapes one target file and
// writes the archive to disk.
func newRunCmd() *cobra.Command {
	var flags runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Scrape every company in a CSV and write the result archive",
		Long: `Reads the input CSV (columns "Company", "Website", "Person LinkedIn Url"),
scrapes the sites concurrently, analyzes each profile in turn, and writes
the profiles and scraping log CSVs into a zip archive in the output directory.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runScrape(cmd, flags)
		},
	}
	cmd.Flags().StringVarP(&flags.input, "input", "i", "", "input CSV of companies (required)")
	cmd.Flags().StringVarP(&flags.outputDir, "output-dir", "o", "", "directory for the archive")
	cmd.Flags().IntVarP(&flags.concurrency, "concurrency", "c", 0, "concurrent scrapes (1-20, 0 for the default)")
	cmd.Flags().BoolVar(&flags.skipAnalysis, "skip-analysis", false, "scrape only; do not call the language model")
	cmd.Flags().BoolVar(&flags.keep, "keep-csv", false, "keep the intermediate CSV files next to the archive")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func (f runFlags) overrides(cmd *cobra.Command) []config.Override {
	var out []config.Override
	if cmd.Flags().Changed("output-dir") {
		out = append(out, func(c *config.Config) { c.Output.Dir = f.outputDir })
	}
	if cmd.Flags().Changed("concurrency") {
		out = append(out, func(c *config.Config) { c.Crawler.Concurrency = f.concurrency })
	}
	if f.skipAnalysis {
		out = append(out, func(c *config.Config) { c.Analysis.Enabled = false })
	}
	if f.keep {
		out = append(out, func(c *config.Config) { c.Output.KeepIntermediate = true })
	}
	return out
}

func runScrape(cmd *cobra.Command, flags runFlags) error {
	cfg, logger, err := setup(cmd, flags.overrides(cmd)...)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx := cmd.Context()
	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize application: %w", err)
	}
	defer func() {
		if cerr := a.Close(context.WithoutCancel(ctx)); cerr != nil {
			logger.Warn("shutdown incomplete", zap.Error(cerr))
		}
	}()

	res, err := a.ProcessFile(ctx, flags.input)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("run interrupted")
		}
		return err
	}
	printSummary(cmd.OutOrStdout(), res)
	return nil
}

func printSummary(w io.Writer, res app.Result) {
	counts := res.Run.Counts()
	fmt.Fprintf(w, "run %s\n", res.Run.ID)
	fmt.Fprintf(w, "  targets:         %d (skipped %d blank, %d invalid url)\n",
		counts.Targets, res.Input.Blank, res.Input.InvalidURL)
	fmt.Fprintf(w, "  succeeded:       %d\n", counts.Succeeded)
	fmt.Fprintf(w, "  failed:          %d\n", counts.Failed)
	fmt.Fprintf(w, "  errored:         %d\n", counts.Errored)
	fmt.Fprintf(w, "  profiles:        %d\n", counts.Profiles)
	fmt.Fprintf(w, "  analysis errors: %d\n", counts.AnalysisErrors)
	if res.ArchivePath != "" {
		fmt.Fprintf(w, "  archive:         %s\n", res.ArchivePath)
	}
	if res.ArchiveURI != "" {
		fmt.Fprintf(w, "  uploaded:        %s\n", res.ArchiveURI)
	}
}
