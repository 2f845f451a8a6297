package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/openplan/corridor-cli/internal/analysis"
)

var (
	analyzeGeoJSON string
	analyzeQuery   string
	analyzeText    bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run a corridor analysis",
	Long:  "Reads a corridor polygon (GeoJSON file, or stdin with --geojson -), runs the full analysis, persists the run, and prints the result.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		corridor, err := readCorridor(analyzeGeoJSON)
		if err != nil {
			return err
		}

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := env.Pipeline.Run(ctx, analysis.Request{
			CorridorGeoJSON: corridor,
			QueryText:       analyzeQuery,
		})
		if err != nil {
			var vErr *analysis.ValidationError
			if errors.As(err, &vErr) {
				fmt.Fprintln(os.Stderr, "Corridor geometry rejected:")
				for _, issue := range vErr.Issues {
					fmt.Fprintf(os.Stderr, "  - %s\n", issue)
				}
				return eris.New("analyze: invalid corridor geometry")
			}
			return eris.Wrap(err, "analyze")
		}

		zap.L().Info("analysis run persisted",
			zap.String("runId", result.RunID),
			zap.Int("overallScore", result.Metrics.OverallScore),
		)

		if analyzeText {
			fmt.Println(result.Summary)
			if result.Narrative != "" {
				fmt.Println()
				fmt.Println(result.Narrative)
			}
			return nil
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

// readCorridor loads the corridor GeoJSON from a file, or stdin when
// the path is "-".
func readCorridor(path string) (json.RawMessage, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, eris.Wrap(err, "read corridor from stdin")
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read corridor file %s", path)
	}
	return data, nil
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeGeoJSON, "geojson", "", "corridor GeoJSON file, or - for stdin (required)")
	analyzeCmd.Flags().StringVar(&analyzeQuery, "query", "", "analysis question or corridor description (required)")
	analyzeCmd.Flags().BoolVar(&analyzeText, "text", false, "print the summary and narrative instead of JSON")
	_ = analyzeCmd.MarkFlagRequired("geojson")
	_ = analyzeCmd.MarkFlagRequired("query")
	rootCmd.AddCommand(analyzeCmd)
}
