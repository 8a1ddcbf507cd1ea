package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/quartier-data/listings-cli/internal/extract"
	"github.com/quartier-data/listings-cli/internal/store"
)

var (
	loadInput       string
	loadInputFormat string
	loadSource      string
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Bulk-load raw listings into the store",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		table, err := extract.ReadTable(loadInput, loadInputFormat)
		if err != nil {
			return err
		}

		st, err := store.Open(ctx, cfg.Store)
		if err != nil {
			return eris.Wrap(err, "load: open store")
		}
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		source := loadSource
		if source == "" {
			source = loadInput
		}
		n, err := st.SaveRawListings(ctx, source, table)
		if err != nil {
			return err
		}

		zap.L().Info("loaded raw listings",
			zap.Int("records", n),
			zap.String("source", source),
			zap.String("driver", cfg.Store.Driver),
		)
		return nil
	},
}

func init() {
	loadCmd.Flags().StringVar(&loadInput, "input", "", "input file (csv, json, xlsx)")
	loadCmd.Flags().StringVar(&loadInputFormat, "input-format", "", "input format override")
	loadCmd.Flags().StringVar(&loadSource, "source", "", "source label stored with each listing (default: input path)")
	loadCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(loadCmd)
}
