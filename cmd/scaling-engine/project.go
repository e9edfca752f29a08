package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/OldStager01/wedding-autoscaler/internal/ingest"
	"github.com/OldStager01/wedding-autoscaler/internal/logger"
	"github.com/OldStager01/wedding-autoscaler/internal/orchestrator"
	"github.com/OldStager01/wedding-autoscaler/internal/scaler"
	"github.com/OldStager01/wedding-autoscaler/pkg/database/queries"
	"github.com/OldStager01/wedding-autoscaler/pkg/models"
	"github.com/OldStager01/wedding-autoscaler/pkg/rules"
)

type projectOptions struct {
	rulesPath   string
	samplesPath string
	days        int
	output      string
}

func newProjectCommand(configPath *string) *cobra.Command {
	var opts projectOptions

	cmd := &cobra.Command{
		Use:   "project",
		Short: "Print capacity projections and recommendations",
		Long: "Projects daily demand, capacity and cost for every service in a rules file. " +
			"History comes from --samples (a JSON array of samples) or, when the database " +
			"is enabled, from stored samples.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if opts.days <= 0 {
				return fmt.Errorf("--days must be positive")
			}
			if opts.output != "table" && opts.output != "json" {
				return fmt.Errorf("--output must be table or json")
			}
			if opts.rulesPath == "" {
				opts.rulesPath = cfg.App.RulesFile
			}

			orchCfg, err := orchestrator.ConfigFrom(cfg)
			if err != nil {
				return err
			}
			orchCfg.Projection.HorizonDays = opts.days

			var orchOpts []orchestrator.Option
			if cfg.Database.Enabled && opts.samplesPath == "" {
				db, err := openDatabase(cmd.Context(), cfg.Database)
				if err != nil {
					return err
				}
				defer db.Close()
				orchOpts = append(orchOpts, orchestrator.WithPersistence(orchestrator.Persistence{
					Samples: queries.NewSampleRepository(db.DB),
				}))
			}

			reports, err := runProjection(cmd.Context(), orchCfg, opts, orchOpts...)
			if err != nil {
				return err
			}
			if opts.output == "json" {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(reports)
			}
			printReports(cmd.OutOrStdout(), reports)
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.rulesPath, "rules", "r", "", "rules file (defaults to app.rules_file)")
	cmd.Flags().StringVarP(&opts.samplesPath, "samples", "s", "", "JSON file of historical samples")
	cmd.Flags().IntVarP(&opts.days, "days", "d", 14, "projection horizon in days")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "table", "output format: table or json")
	return cmd
}

func runProjection(ctx context.Context, cfg orchestrator.Config, opts projectOptions, orchOpts ...orchestrator.Option) ([]models.ProjectionReport, error) {
	rs, err := rules.Load(opts.rulesPath)
	if err != nil {
		return nil, err
	}

	orch := orchestrator.New(cfg, scaler.NewSimulatorEffector(scaler.SimulatorConfig{}), orchOpts...)
	if err := orch.Start(); err != nil {
		return nil, err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		orch.Stop(stopCtx)
	}()

	if err := orch.ApplyRules(rs); err != nil {
		return nil, err
	}

	if opts.samplesPath != "" {
		data, err := os.ReadFile(opts.samplesPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read samples: %w", err)
		}
		samples, err := ingest.Decode(data, time.Now())
		if err != nil {
			return nil, err
		}
		loaded := 0
		for _, s := range samples {
			if _, err := orch.Ingest(s); err == nil {
				loaded++
			}
		}
		logger.Debugf("Loaded %d of %d samples", loaded, len(samples))
	}

	if ctx == nil {
		ctx = context.Background()
	}
	return orch.Project(ctx)
}

func printReports(out io.Writer, reports []models.ProjectionReport) {
	for i, r := range reports {
		if i > 0 {
			fmt.Fprintln(out)
		}
		fmt.Fprintf(out, "%s (current capacity %d, total cost %s)\n", r.Service, r.CurrentCapacity, r.TotalCost.StringFixed(2))

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "DATE\tDEMAND\tCAPACITY\tUTILIZATION\tMULTIPLIER\tCOST\t")
		for _, d := range r.Days {
			marker := ""
			if d.IsSaturday {
				marker = " sat"
			}
			fmt.Fprintf(w, "%s%s\t%.0f\t%d\t%.0f%%\t%.2f\t%s\t\n",
				d.Date.Format("2006-01-02"), marker, d.ProjectedDemand, d.RecommendedCapacity,
				d.UtilizationRate, d.SeasonalMultiplier, d.EstimatedCost.StringFixed(2))
		}
		w.Flush()

		for _, rec := range r.Recommendations {
			fmt.Fprintf(out, "  [%s] %s\n", rec.Type, rec.Message)
		}
	}
}
