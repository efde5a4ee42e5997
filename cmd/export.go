package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/funding-advisor/pkg/notion"
)

var exportLimit int

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export advisory data to external systems",
}

var exportNotionCmd = &cobra.Command{
	Use:   "notion",
	Short: "Export the most recent investor reports to a Notion database",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if cfg.Notion.Token == "" || cfg.Notion.ReportDB == "" {
			return eris.New("notion.token and notion.report_db must be configured")
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		reports, err := env.Store.ListRecentReports(ctx, exportLimit)
		if err != nil {
			return err
		}

		exporter := notion.NewExporter(notion.NewClient(cfg.Notion.Token), cfg.Notion.ReportDB)
		for _, r := range reports {
			pageID, err := exporter.ExportReport(ctx, r)
			if err != nil {
				return err
			}
			zap.L().Info("exported report",
				zap.Int64("report_id", r.ID),
				zap.String("page_id", pageID),
			)
		}
		zap.L().Info("notion export complete", zap.Int("reports", len(reports)))
		return nil
	},
}

func init() {
	exportNotionCmd.Flags().IntVar(&exportLimit, "limit", 20, "number of recent reports to export")
	exportCmd.AddCommand(exportNotionCmd)
	rootCmd.AddCommand(exportCmd)
}
