package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/openplan/corridor-cli/pkg/notion"
)

var exportCmd = &cobra.Command{
	Use:   "export <run-id>",
	Short: "Export an analysis run to Notion",
	Long:  "Creates a page in the configured Notion database with the run's scores, summary, narrative, and source transparency. Already exported runs are skipped.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if cfg.Notion.Token == "" || cfg.Notion.RunsDB == "" {
			return eris.New("notion token and runs database are required (CORRIDOR_NOTION_TOKEN, CORRIDOR_NOTION_RUNS_DB)")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrapf(err, "export: load run %s", args[0])
		}

		exporter := notion.NewExporter(notion.NewClient(cfg.Notion.Token), cfg.Notion.RunsDB)
		pageID, err := exporter.ExportRun(ctx, run)
		if err != nil {
			return err
		}
		if pageID == "" {
			fmt.Println("Run already exported, nothing to do.")
			return nil
		}

		zap.L().Info("run exported to notion",
			zap.String("runId", run.ID),
			zap.String("pageId", pageID),
		)
		fmt.Printf("Exported run %s to Notion page %s\n", run.ID, pageID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
}
