package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/quartier-data/listings-cli/internal/detect"
	"github.com/quartier-data/listings-cli/internal/extract"
	"github.com/quartier-data/listings-cli/internal/rules"
)

var (
	discoverInput       string
	discoverInputFormat string
	discoverRules       string
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Propose consolidation groups for uncovered columns",
	Long: `Runs the similarity detector over the input's column names and prints
the proposed new groups as rule file YAML, ready to paste into the groups
section after review.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		rulesPath := discoverRules
		if rulesPath == "" {
			rulesPath = cfg.Rules.Path
		}
		registry, err := rules.Load(rulesPath)
		if err != nil {
			return eris.Wrap(err, "discover: load rules")
		}

		table, err := extract.ReadTable(discoverInput, discoverInputFormat)
		if err != nil {
			return err
		}

		detector, err := detect.New(registry.Config())
		if err != nil {
			return err
		}

		existing := registry.Groups()
		proposed, ambiguous := detector.Propose(table.Columns, existing)

		discovered := proposed[len(existing):]
		if len(discovered) == 0 {
			fmt.Println("# no new groups discovered")
		} else {
			out := make([]rules.GroupConfig, 0, len(discovered))
			for _, g := range discovered {
				out = append(out, rules.GroupConfig{
					Canonical: g.Canonical,
					Strategy:  string(g.Strategy),
					Tier:      g.Tier,
					Sources:   g.Sources,
				})
			}
			data, err := yaml.Marshal(out)
			if err != nil {
				return eris.Wrap(err, "discover: marshal groups")
			}
			fmt.Printf("# discovered groups (review before adding to rules)\n%s", data)
		}

		for _, a := range ambiguous {
			fmt.Printf("# ambiguous: %s matches %s (%.2f) and %s (%.2f), left ungrouped\n",
				a.Column, a.ConceptA, a.ScoreA, a.ConceptB, a.ScoreB)
		}

		return nil
	},
}

func init() {
	discoverCmd.Flags().StringVar(&discoverInput, "input", "", "input file (csv, json, xlsx)")
	discoverCmd.Flags().StringVar(&discoverInputFormat, "input-format", "", "input format override")
	discoverCmd.Flags().StringVar(&discoverRules, "rules", "", "rule file path (default from config)")
	discoverCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(discoverCmd)
}
