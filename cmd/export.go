package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/buyergroup-cli/internal/export"
	notionpkg "github.com/sells-group/buyergroup-cli/pkg/notion"
)

var (
	exportRequestID  string
	exportXLSXPath   string
	exportSalesforce bool
	exportNotion     bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a stored buyer-group result downstream",
	Long:  "Loads a finished result from the archive and writes it to any of: an XLSX report, Salesforce (Account + Contacts), a Notion report page.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if exportXLSXPath == "" && !exportSalesforce && !exportNotion {
			return eris.New("nothing to do: pass --xlsx, --salesforce or --notion")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		result, err := st.GetResult(ctx, exportRequestID)
		if err != nil {
			return eris.Wrap(err, "load result")
		}
		if result == nil {
			return eris.Errorf("no result stored for request %s", exportRequestID)
		}

		outcome := map[string]any{"requestId": result.RequestID}

		if exportXLSXPath != "" {
			if err := export.WriteXLSX(result, exportXLSXPath); err != nil {
				return err
			}
			outcome["xlsx"] = exportXLSXPath
			zap.L().Info("xlsx report written", zap.String("path", exportXLSXPath))
		}

		if exportSalesforce {
			client, err := initSalesforce()
			if err != nil {
				return err
			}
			sync, err := export.NewSalesforceExporter(client).Sync(ctx, result)
			if err != nil {
				return err
			}
			outcome["salesforce"] = sync
		}

		if exportNotion {
			if cfg.Notion.Token == "" || cfg.Notion.ReportDB == "" {
				return eris.New("notion token and report database are required (BUYERGROUP_NOTION_TOKEN, BUYERGROUP_NOTION_REPORT_DB)")
			}
			client := notionpkg.NewClient(cfg.Notion.Token)
			pageID, err := export.NewNotionExporter(client, cfg.Notion.ReportDB).Publish(ctx, result)
			if err != nil {
				return err
			}
			outcome["notionPage"] = pageID
			zap.L().Info("notion report published", zap.String("page_id", pageID))
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(outcome)
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportRequestID, "request-id", "", "request to export (required)")
	exportCmd.Flags().StringVar(&exportXLSXPath, "xlsx", "", "write an XLSX report to this path")
	exportCmd.Flags().BoolVar(&exportSalesforce, "salesforce", false, "sync Account and Contacts to Salesforce")
	exportCmd.Flags().BoolVar(&exportNotion, "notion", false, "publish a report page to Notion")
	_ = exportCmd.MarkFlagRequired("request-id")
	rootCmd.AddCommand(exportCmd)
}
