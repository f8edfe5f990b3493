package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/popkit/popkit/internal/model"
	"github.com/popkit/popkit/internal/widget"
)

var (
	reportType    string
	reportMessage string
	reportData    string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Report a test event to the gateway",
	RunE: func(cmd *cobra.Command, args []string) error {
		if reportType == "" {
			return fmt.Errorf("--type is required")
		}

		cfg, err := loadEmbedConfig(configPath)
		if err != nil {
			return err
		}

		var data map[string]any
		if reportData != "" {
			if err := json.Unmarshal([]byte(reportData), &data); err != nil {
				return fmt.Errorf("--data must be a JSON object: %w", err)
			}
		}

		client := widget.NewClient(cfg.ServerURL, widget.Credentials{
			SiteID:       cfg.SiteID,
			WidgetID:     cfg.WidgetID,
			SiteAPIKey:   cfg.SiteAPIKey,
			WidgetAPIKey: cfg.WidgetAPIKey,
		})
		ctx := cmd.Context()
		if _, err := client.IssueToken(ctx); err != nil {
			return err
		}
		if err := client.ReportEvent(ctx, reportType, data, model.PlainMessage(reportMessage)); err != nil {
			return err
		}

		fmt.Println("event reported")
		return nil
	},
}

func init() {
	reportCmd.Flags().StringVar(&reportType, "type", "", "event type (required)")
	reportCmd.Flags().StringVar(&reportMessage, "message", "", "display message")
	reportCmd.Flags().StringVar(&reportData, "data", "", "event data as a JSON object")
}
