package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/cdreport/cdreport/internal/catalog"
	"github.com/cdreport/cdreport/internal/config"
	"github.com/cdreport/cdreport/internal/dataset"
	"github.com/cdreport/cdreport/internal/engine"
	"github.com/cdreport/cdreport/internal/indicator"
	"github.com/cdreport/cdreport/internal/ingest"
	"github.com/cdreport/cdreport/internal/platform/auth"
	"github.com/cdreport/cdreport/internal/report"
)

type evaluateOptions struct {
	set          string
	emr          string
	rosteredOnly bool
	format       string
	xlsxPath     string
	parquetPath  string
}

func evaluateCmd() *cobra.Command {
	var opts evaluateOptions
	cmd := &cobra.Command{
		Use:   "evaluate FILE...",
		Short: "Evaluate registry exports and print the indicator summary",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("emr") {
				opts.emr = string(cfg.DefaultEMR())
			}
			if !cmd.Flags().Changed("rostered-only") {
				opts.rosteredOnly = cfg.RosteredOnly
			}
			cat, err := newCatalog(cfg)
			if err != nil {
				return err
			}
			logger := newLogger(cmd.ErrOrStderr(), cfg.Env, cfg.LogLevel)
			return runEvaluate(cmd.OutOrStdout(), cat, engine.New(logger), ingest.NewLoader(logger), args, opts)
		},
	}
	cmd.Flags().StringVar(&opts.set, "set", "", "indicator set to apply instead of classifying each file")
	cmd.Flags().StringVar(&opts.emr, "emr", string(indicator.DefaultEMR), "EMR that produced the export (PSS, Oscar, Accuro)")
	cmd.Flags().BoolVar(&opts.rosteredOnly, "rostered-only", false, "count rostered patients only")
	cmd.Flags().StringVar(&opts.format, "format", "table", "summary output: table or json")
	cmd.Flags().StringVar(&opts.xlsxPath, "xlsx", "", "also write the summary workbook to this path")
	cmd.Flags().StringVar(&opts.parquetPath, "parquet", "", "also write per-patient outcomes to this parquet file")
	return cmd
}

func runEvaluate(out io.Writer, cat *catalog.Catalog, ev *engine.Evaluator, loader *ingest.Loader, files []string, opts evaluateOptions) error {
	if opts.format != "table" && opts.format != "json" {
		return fmt.Errorf("unknown format %q: want table or json", opts.format)
	}
	emr, err := indicator.ParseEMR(opts.emr)
	if err != nil {
		return err
	}
	var explicit *indicator.Set
	if opts.set != "" {
		if explicit, err = cat.Lookup(opts.set); err != nil {
			return err
		}
	}

	batch, err := loader.LoadFiles(files)
	if err != nil {
		return err
	}
	var (
		jobs     []engine.Job
		datasets []*dataset.Dataset
		skipped  = batch.Skipped
	)
	for _, ds := range batch.Datasets {
		set := explicit
		if set == nil {
			set, err = cat.Classify(ds.Names())
		} else {
			err = catalog.CheckIdentityColumns(ds.Names())
		}
		if err != nil {
			skipped = multierror.Append(skipped, fmt.Errorf("%s: %w", ds.Source, err))
			continue
		}
		jobs = append(jobs, engine.Job{Set: set, Dataset: ds})
		datasets = append(datasets, ds)
	}
	if skipped != nil {
		fmt.Fprintf(out, "skipped: %v\n", skipped)
	}
	if len(jobs) == 0 {
		return errors.New("no file could be evaluated")
	}

	results := ev.RunJobs(jobs, engine.Session{EMR: emr, RosteredOnly: opts.rosteredOnly})
	summaries := report.Summarize(results)

	if opts.xlsxPath != "" {
		f, err := os.Create(opts.xlsxPath)
		if err != nil {
			return fmt.Errorf("create workbook: %w", err)
		}
		if err := report.WriteWorkbook(f, summaries, report.Outcomes(results, datasets)); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("close workbook: %w", err)
		}
	}
	if opts.parquetPath != "" {
		if err := report.WriteParquetFile(opts.parquetPath, report.Outcomes(results, datasets)); err != nil {
			return err
		}
	}

	if opts.format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(summaries)
	}
	report.WriteTable(out, summaries)
	return nil
}

func indicatorsCmd() *cobra.Command {
	var setName string
	cmd := &cobra.Command{
		Use:   "indicators",
		Short: "List indicators with their current parameters",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			cat, err := newCatalog(cfg)
			if err != nil {
				return err
			}
			return listIndicators(cmd.OutOrStdout(), cat, setName)
		},
	}
	cmd.Flags().StringVar(&setName, "set", "", "only list the members of this set")
	return cmd
}

func listIndicators(out io.Writer, cat *catalog.Catalog, setName string) error {
	defs := cat.Indicators()
	if setName != "" {
		set, err := cat.Lookup(setName)
		if err != nil {
			return err
		}
		defs = set.Members
	}

	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"ID", "Indicator", "Parameters"})
	table.SetAutoWrapText(false)
	for _, d := range defs {
		p := d.Snapshot()
		params := make([]string, 0, len(d.Modifiable))
		for _, key := range d.Modifiable {
			params = append(params, fmt.Sprintf("%s=%s", key, p.S(key)))
		}
		table.Append([]string{d.ID, d.Label(p), strings.Join(params, " ")})
	}
	table.Render()
	return nil
}

func classifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify FILE...",
		Short: "Show which indicator set each export selects",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := newLogger(cmd.ErrOrStderr(), cfg.Env, cfg.LogLevel)
			return classifyFiles(cmd.OutOrStdout(), catalog.New(), ingest.NewLoader(logger), args)
		},
	}
}

func classifyFiles(out io.Writer, cat *catalog.Catalog, loader *ingest.Loader, files []string) error {
	var result *multierror.Error
	for _, path := range files {
		ds, err := loader.LoadFile(path)
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}
		set, err := cat.Classify(ds.Names())
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", path, err))
			continue
		}
		fmt.Fprintf(out, "%s\t%s\n", path, set.Name)
	}
	return result.ErrorOrNil()
}

func tokenCmd() *cobra.Command {
	var (
		subject string
		roles   []string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token signed with AUTH_SIGNING_KEY",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			token, err := auth.IssueToken(auth.JWTConfig{
				Issuer:     cfg.AuthIssuer,
				Audience:   cfg.AuthAudience,
				SigningKey: []byte(cfg.AuthSigningKey),
			}, subject, roles, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "user the token identifies")
	cmd.Flags().StringSliceVar(&roles, "roles", []string{auth.RoleViewer}, "roles granted to the user")
	cmd.Flags().DurationVar(&ttl, "ttl", 12*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}
