package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"commonmetrics/adapters/excel"
	"commonmetrics/adapters/lmm"
	"commonmetrics/app"
	"commonmetrics/domain/metric"
	"commonmetrics/domain/table"
	"commonmetrics/internal/testkit"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "commonmetrics",
		Short: "Score survey metrics and estimate clustered means and growth",
	}

	rootCmd.AddCommand(
		newMetricsCmd(),
		newScoreCmd(),
		newMeanCmd(),
		newGrowthCmd(),
		newDemoCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newService() *app.MetricService {
	return app.NewMetricService(metric.NewCatalog(), lmm.NewFitter(), nil)
}

func loadTable(path, sheet string) (*table.Table, error) {
	return excel.NewDataReader(path).WithSheet(sheet).ReadTable()
}

func printJSON(v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

// estimationFlags are shared by the mean and growth commands.
type estimationFlags struct {
	metric         string
	sheet          string
	cluster        bool
	clusterColumn  string
	equityGroup    string
	skipScaleUsage bool
}

func (f *estimationFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.metric, "metric", "", "Metric name (see the metrics command)")
	cmd.Flags().StringVar(&f.sheet, "sheet", "", "Worksheet name for xlsx input")
	cmd.Flags().BoolVar(&f.cluster, "cluster", false, "Fit a random intercept on the cluster column")
	cmd.Flags().StringVar(&f.clusterColumn, "cluster-column", "", "Cluster id column (default class_id)")
	cmd.Flags().StringVar(&f.equityGroup, "equity-group", "", "Categorical column for subgroup estimates and contrasts")
	cmd.Flags().BoolVar(&f.skipScaleUsage, "skip-scale-usage", false, "Suppress the warning when items never use part of their response scale")
	cmd.MarkFlagRequired("metric")
}

func newMetricsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "metrics",
		Short: "List the built-in metric definitions",
		RunE: func(cmd *cobra.Command, args []string) error {
			service := newService()
			for _, name := range service.Metrics() {
				def, err := service.Definition(name)
				if err != nil {
					return err
				}
				cluster := ""
				if def.RequiresCluster {
					cluster = " (clustered)"
				}
				fmt.Printf("%-14s %d items%s\n", name, len(def.Items), cluster)
			}
			return nil
		},
	}
}

func newScoreCmd() *cobra.Command {
	flags := &estimationFlags{}
	cmd := &cobra.Command{
		Use:   "score [file]",
		Short: "Validate responses and append the composite column",
		Long: `Validate a response file against a metric definition and compute its
composite score column.

Example: commonmetrics score responses.csv --metric engagement`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tbl, err := loadTable(args[0], flags.sheet)
			if err != nil {
				return err
			}
			res, err := newService().MakeMetric(cmd.Context(), app.ScoreRequest{
				Metric:         flags.metric,
				Table:          tbl,
				SkipScaleUsage: flags.skipScaleUsage,
				ClusterColumn:  flags.clusterColumn,
			})
			if err != nil {
				return err
			}
			fmt.Printf("Scored %d rows into %s (%d without a composite)\n",
				res.Scored.Rows(), res.Scored.Column, res.Missing)
			for _, f := range res.Findings {
				fmt.Println(f)
			}
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func newMeanCmd() *cobra.Command {
	flags := &estimationFlags{}
	cmd := &cobra.Command{
		Use:   "mean [file]",
		Short: "Estimate the metric mean, optionally clustered and by subgroup",
		Long: `Score a response file and estimate the metric mean with uncertainty.

Example: commonmetrics mean responses.csv --metric engagement --cluster --equity-group subgroup`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tbl, err := loadTable(args[0], flags.sheet)
			if err != nil {
				return err
			}
			rep, err := newService().MetricMean(cmd.Context(), app.MeanRequest{
				Metric:         flags.metric,
				Table:          tbl,
				SkipScaleUsage: flags.skipScaleUsage,
				ClusterEnabled: flags.cluster,
				ClusterColumn:  flags.clusterColumn,
				EquityGroup:    flags.equityGroup,
			})
			if err != nil {
				return err
			}
			return printJSON(rep)
		},
	}
	flags.register(cmd)
	return cmd
}

func newGrowthCmd() *cobra.Command {
	flags := &estimationFlags{}
	cmd := &cobra.Command{
		Use:   "growth [file-t1] [file-t2]",
		Short: "Estimate growth between two timepoints",
		Long: `Score two response files for the same metric and estimate growth from
the first timepoint to the second.

Example: commonmetrics growth fall.csv spring.csv --metric engagement --cluster`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tbl1, err := loadTable(args[0], flags.sheet)
			if err != nil {
				return err
			}
			tbl2, err := loadTable(args[1], flags.sheet)
			if err != nil {
				return err
			}
			rep, err := newService().MetricGrowth(cmd.Context(), app.GrowthRequest{
				Metric:         flags.metric,
				Table1:         tbl1,
				Table2:         tbl2,
				SkipScaleUsage: flags.skipScaleUsage,
				ClusterEnabled: flags.cluster,
				ClusterColumn:  flags.clusterColumn,
				EquityGroup:    flags.equityGroup,
			})
			if err != nil {
				return err
			}
			return printJSON(rep)
		},
	}
	flags.register(cmd)
	return cmd
}

func newDemoCmd() *cobra.Command {
	var seed int64
	var classes, perClass int
	var shift float64

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run the pipeline on seeded synthetic classroom data",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := testkit.DefaultSurveyConfig()
			cfg.Seed = seed
			cfg.Classes = classes
			cfg.StudentsPerClass = perClass
			cfg.Groups = []string{"a", "b"}
			cfg.GroupShift = 0.3

			catalog := metric.NewCatalog()
			def, err := catalog.Lookup("engagement")
			if err != nil {
				return err
			}
			t1, t2, err := testkit.NewSurveyDataGenerator(cfg).GenerateTimepoints(def, shift)
			if err != nil {
				return err
			}

			rep, err := newService().MetricGrowth(context.Background(), app.GrowthRequest{
				Metric:         "engagement",
				Table1:         t1,
				Table2:         t2,
				ClusterEnabled: true,
				EquityGroup:    "subgroup",
			})
			if err != nil {
				return err
			}
			return printJSON(rep)
		},
	}

	cmd.Flags().Int64Var(&seed, "seed", 42, "Random seed for deterministic generation")
	cmd.Flags().IntVar(&classes, "classes", 12, "Number of classrooms")
	cmd.Flags().IntVar(&perClass, "students-per-class", 25, "Students per classroom")
	cmd.Flags().Float64Var(&shift, "shift", 0.4, "Per-item mean shift at the second timepoint")
	return cmd
}
