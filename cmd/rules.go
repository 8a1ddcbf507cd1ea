package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/quartier-data/listings-cli/internal/rules"
)

var rulesPath string

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Inspect and validate the consolidation rule file",
}

var rulesValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the rule file and fail on configuration errors",
	RunE: func(cmd *cobra.Command, _ []string) error {
		path := rulesPath
		if path == "" {
			path = cfg.Rules.Path
		}
		registry, err := rules.Load(path)
		if err != nil {
			return err
		}

		// A full resolve against the complete column set surfaces
		// duplicate source claims without needing a dataset.
		if _, err := registry.Resolve(registry.CoveredColumns()); err != nil {
			return err
		}

		fmt.Printf("%s: %d groups, %d concepts, ok\n",
			path, len(registry.Groups()), len(registry.Config().Concepts))
		return nil
	},
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured consolidation groups",
	RunE: func(cmd *cobra.Command, _ []string) error {
		path := rulesPath
		if path == "" {
			path = cfg.Rules.Path
		}
		registry, err := rules.Load(path)
		if err != nil {
			return err
		}

		for _, g := range registry.Groups() {
			fmt.Printf("%-28s %-12s tier %d  <- %s\n",
				g.Canonical, g.Strategy, g.Tier, strings.Join(g.Sources, ", "))
		}
		return nil
	},
}

func init() {
	rulesCmd.PersistentFlags().StringVar(&rulesPath, "rules", "", "rule file path (default from config)")
	rulesCmd.AddCommand(rulesValidateCmd)
	rulesCmd.AddCommand(rulesListCmd)
	rootCmd.AddCommand(rulesCmd)
}
