package main

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/quartier-data/listings-cli/internal/consolidate"
	"github.com/quartier-data/listings-cli/internal/detect"
	"github.com/quartier-data/listings-cli/internal/export"
	"github.com/quartier-data/listings-cli/internal/extract"
	"github.com/quartier-data/listings-cli/internal/model"
	"github.com/quartier-data/listings-cli/internal/rules"
	"github.com/quartier-data/listings-cli/internal/store"
	"github.com/quartier-data/listings-cli/internal/validate"
)

var (
	consolidateInput        string
	consolidateInputFormat  string
	consolidateFromStore    bool
	consolidateRules        string
	consolidateOut          string
	consolidateOutFormat    string
	consolidateReport       string
	consolidateReportFormat string
	consolidateConcurrency  int
	consolidateDiscover     bool
	consolidateStrict       bool
	consolidateSave         bool
	consolidateLimit        int
)

var consolidateCmd = &cobra.Command{
	Use:   "consolidate",
	Short: "Run the column consolidation pipeline",
	Long: `Reads raw listings, collapses redundant source columns into canonical
fields per the rule file, validates the result, and writes the consolidated
table plus a quality report.

Examples:
  # CSV in, CSV out, report to stdout
  listings-cli consolidate --input listings.csv --out consolidated.csv

  # Consolidate from the store with auto-discovery, save the run
  listings-cli consolidate --from-store --discover --save --report report.json --report-format json`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		rulesPath := consolidateRules
		if rulesPath == "" {
			rulesPath = cfg.Rules.Path
		}
		registry, err := rules.Load(rulesPath)
		if err != nil {
			return eris.Wrap(err, "consolidate: load rules")
		}

		var table *model.Table
		switch {
		case consolidateFromStore:
			st, err := store.Open(ctx, cfg.Store)
			if err != nil {
				return eris.Wrap(err, "consolidate: open store")
			}
			defer st.Close()
			if err := st.Migrate(ctx); err != nil {
				return err
			}
			table, err = st.LoadRawListings(ctx, consolidateLimit)
			if err != nil {
				return err
			}
		case consolidateInput != "":
			table, err = extract.ReadTable(consolidateInput, consolidateInputFormat)
			if err != nil {
				return err
			}
		default:
			return eris.New("consolidate: either --input or --from-store is required")
		}

		zap.L().Info("loaded raw table",
			zap.Int("records", len(table.Records)),
			zap.Int("columns", len(table.Columns)),
		)

		groups := registry.Groups()
		var ambiguous []model.AmbiguousColumn
		if consolidateDiscover || cfg.Pipeline.Discover {
			detector, err := detect.New(registry.Config())
			if err != nil {
				return err
			}
			groups, ambiguous = detector.Propose(table.Columns, groups)
			if consolidateStrict && len(ambiguous) > 0 {
				return eris.Errorf("consolidate: %d ambiguous columns (rerun without --strict to leave them ungrouped)", len(ambiguous))
			}
		}

		resolved, err := rules.Resolve(groups, table.ColumnSet())
		if err != nil {
			return err
		}

		concurrency := consolidateConcurrency
		if concurrency <= 0 {
			concurrency = cfg.Pipeline.Concurrency
		}

		consolidated, report, err := consolidate.New(resolved).Run(ctx, table, concurrency)
		if err != nil {
			return err
		}
		report.Ambiguous = append(report.Ambiguous, ambiguous...)

		validator, err := validate.New(registry.Config().Validation)
		if err != nil {
			return err
		}
		validator.Apply(consolidated, report)

		if consolidateOut != "" {
			format := consolidateOutFormat
			if format == "" {
				format = cfg.Export.Format
			}
			if err := export.WriteTable(consolidated, consolidateOut, format); err != nil {
				return err
			}
			zap.L().Info("wrote consolidated table", zap.String("path", consolidateOut))
		}

		if consolidateReport != "" {
			format := consolidateReportFormat
			if format == "" {
				format = cfg.Export.ReportFormat
			}
			if err := export.WriteReport(report, consolidateReport, format); err != nil {
				return err
			}
		} else {
			fmt.Print(export.FormatReport(report))
		}

		if consolidateSave {
			if err := saveRun(ctx, consolidated, report); err != nil {
				return err
			}
		}

		return nil
	},
}

// saveRun persists the consolidated output and its report as a run.
func saveRun(ctx context.Context, table *model.ConsolidatedTable, report *model.QualityReport) error {
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return eris.Wrap(err, "consolidate: open store")
	}
	defer st.Close()
	if err := st.Migrate(ctx); err != nil {
		return err
	}

	input := consolidateInput
	if consolidateFromStore {
		input = "store"
	}
	run, err := st.CreateRun(ctx, input)
	if err != nil {
		return err
	}
	if _, err := st.SaveConsolidated(ctx, run.ID, table); err != nil {
		return err
	}
	if err := st.CompleteRun(ctx, run.ID, model.RunStatusCompleted, len(table.Records), report); err != nil {
		return err
	}
	zap.L().Info("saved run", zap.String("run_id", run.ID), zap.Int("records", len(table.Records)))
	return nil
}

func init() {
	consolidateCmd.Flags().StringVar(&consolidateInput, "input", "", "input file (csv, json, xlsx)")
	consolidateCmd.Flags().StringVar(&consolidateInputFormat, "input-format", "", "input format override")
	consolidateCmd.Flags().BoolVar(&consolidateFromStore, "from-store", false, "read raw listings from the store")
	consolidateCmd.Flags().StringVar(&consolidateRules, "rules", "", "rule file path (default from config)")
	consolidateCmd.Flags().StringVar(&consolidateOut, "out", "", "consolidated table output path")
	consolidateCmd.Flags().StringVar(&consolidateOutFormat, "out-format", "", "output format: csv, json, xlsx")
	consolidateCmd.Flags().StringVar(&consolidateReport, "report", "", "quality report output path (default: stdout)")
	consolidateCmd.Flags().StringVar(&consolidateReportFormat, "report-format", "", "report format: md, json, csv")
	consolidateCmd.Flags().IntVar(&consolidateConcurrency, "concurrency", 0, "worker count (default from config)")
	consolidateCmd.Flags().BoolVar(&consolidateDiscover, "discover", false, "auto-discover groups for uncovered columns")
	consolidateCmd.Flags().BoolVar(&consolidateStrict, "strict", false, "fail on ambiguous column matches instead of leaving them ungrouped")
	consolidateCmd.Flags().BoolVar(&consolidateSave, "save", false, "persist the run and consolidated listings to the store")
	consolidateCmd.Flags().IntVar(&consolidateLimit, "limit", 0, "max records to read from the store (0 = all)")
	rootCmd.AddCommand(consolidateCmd)
}
