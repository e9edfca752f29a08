package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/OldStager01/wedding-autoscaler/pkg/config"
	"github.com/OldStager01/wedding-autoscaler/pkg/rules"
)

func newValidateCommand(configPath *string) *cobra.Command {
	var rulesPath string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a config file and a rules file without starting the engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			if rulesPath == "" {
				rulesPath = cfg.App.RulesFile
			}
			rs, err := rules.Load(rulesPath)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "config ok\n")
			fmt.Fprintf(out, "rules ok: %s\n", rulesPath)
			fmt.Fprintf(out, "  services:   %d\n", len(rs.Services))
			fmt.Fprintf(out, "  policies:   %d\n", len(rs.Policies))
			fmt.Fprintf(out, "  thresholds: %d\n", len(rs.Thresholds))
			fmt.Fprintf(out, "  weddings:   %d\n", len(rs.Weddings))
			return nil
		},
	}
	cmd.Flags().StringVarP(&rulesPath, "rules", "r", "", "rules file (defaults to app.rules_file)")
	return cmd
}
