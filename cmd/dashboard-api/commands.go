package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lib64hardcoded/lib64hardcoded.github.io-sub000/internal/config"
	"github.com/lib64hardcoded/lib64hardcoded.github.io-sub000/internal/hook"
	"github.com/lib64hardcoded/lib64hardcoded.github.io-sub000/internal/models"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func newReconcileCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Recompute every user's download total from the download logs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			appConfig, err := config.LoadStore(viper.GetViper())
			if err != nil {
				return err
			}
			stack, err := openApp(appConfig)
			if err != nil {
				return err
			}
			defer stack.Close()

			changed, err := stack.hook.Users.RecountDownloads(cmd.Context())
			if err != nil {
				return err
			}
			stack.logger.Info("download totals reconciled", zap.Int("changed", changed))
			fmt.Fprintf(cmd.OutOrStdout(), "corrected %d user download totals\n", changed)
			return nil
		},
	}
}

type metricsOutput struct {
	MetricType models.MetricType     `json:"metric_type"`
	Days       int                   `json:"days"`
	Source     hook.Source           `json:"source"`
	Series     []models.SystemMetric `json:"series"`
}

func newMetricsCommand() *cobra.Command {
	var (
		metricType string
		days       int
	)
	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Print a system metric series as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := models.MetricType(strings.ToLower(strings.TrimSpace(metricType)))
			if _, _, known := hook.MetricRange(kind); !known {
				return fmt.Errorf("unknown metric type %q", metricType)
			}
			appConfig, err := config.LoadStore(viper.GetViper())
			if err != nil {
				return err
			}
			stack, err := openApp(appConfig)
			if err != nil {
				return err
			}
			defer stack.Close()

			series, source := stack.hook.Metrics.Series(cmd.Context(), kind, days)
			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			return encoder.Encode(metricsOutput{
				MetricType: kind,
				Days:       hook.NormalizeDays(days),
				Source:     source,
				Series:     series,
			})
		},
	}
	cmd.Flags().StringVar(&metricType, "type", string(models.MetricDownloads), "Metric type (downloads, users, sessions, bandwidth, errors)")
	cmd.Flags().IntVar(&days, "days", hook.DefaultMetricDays, "Number of days to include")
	return cmd
}
