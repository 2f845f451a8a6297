package notion

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/openplan/corridor-cli/internal/analysis"
	"github.com/openplan/corridor-cli/internal/store"
)

// Exporter pushes analysis runs into a Notion database so planning
// teams can review and annotate them alongside their grant work.
type Exporter struct {
	client Client
	dbID   string
}

// NewExporter creates an exporter targeting the given database.
func NewExporter(client Client, dbID string) *Exporter {
	return &Exporter{client: client, dbID: dbID}
}

// Exists reports whether a page for the run is already in the database,
// keyed on the Run ID property.
func (e *Exporter) Exists(ctx context.Context, runID string) (bool, error) {
	resp, err := e.client.QueryDatabase(ctx, e.dbID, &notionapi.DatabaseQueryRequest{
		Filter: notionapi.PropertyFilter{
			Property: "Run ID",
			RichText: &notionapi.TextFilterCondition{Equals: runID},
		},
		PageSize: 1,
	})
	if err != nil {
		return false, eris.Wrapf(err, "notion: check run %s", runID)
	}
	return len(resp.Results) > 0, nil
}

// ExportRun creates a database page for the run: headline scores as
// properties, the summary and narrative as page content. Re-exporting
// an already exported run is a no-op.
func (e *Exporter) ExportRun(ctx context.Context, run *store.AnalysisRun) (string, error) {
	exists, err := e.Exists(ctx, run.ID)
	if err != nil {
		return "", err
	}
	if exists {
		zap.L().Info("notion: run already exported", zap.String("runId", run.ID))
		return "", nil
	}

	var m analysis.Metrics
	if err := json.Unmarshal(run.Metrics, &m); err != nil {
		return "", eris.Wrapf(err, "notion: decode metrics for run %s", run.ID)
	}

	createdAt := notionapi.Date(run.CreatedAt)

	page, err := e.client.CreatePage(ctx, &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(e.dbID),
		},
		Properties: notionapi.Properties{
			"Name": notionapi.TitleProperty{
				Title: richText(run.Title),
			},
			"Run ID": notionapi.RichTextProperty{
				RichText: richText(run.ID),
			},
			"Overall Score": notionapi.NumberProperty{
				Number: float64(m.OverallScore),
			},
			"Accessibility": notionapi.NumberProperty{
				Number: float64(m.AccessibilityScore),
			},
			"Safety": notionapi.NumberProperty{
				Number: float64(m.SafetyScore),
			},
			"Equity": notionapi.NumberProperty{
				Number: float64(m.EquityScore),
			},
			"Confidence": notionapi.SelectProperty{
				Select: notionapi.Option{Name: string(m.Confidence)},
			},
			"Analyzed": notionapi.DateProperty{
				Date: &notionapi.DateObject{Start: &createdAt},
			},
		},
		Children: buildPageBlocks(run, m),
	})
	if err != nil {
		return "", eris.Wrapf(err, "notion: export run %s", run.ID)
	}

	zap.L().Info("notion: run exported",
		zap.String("runId", run.ID),
		zap.String("pageId", string(page.ID)),
	)
	return string(page.ID), nil
}

func buildPageBlocks(run *store.AnalysisRun, m analysis.Metrics) []notionapi.Block {
	blocks := []notionapi.Block{
		heading("Summary"),
		paragraph(run.SummaryText),
		heading("Narrative"),
		paragraph(run.Narrative),
		heading("Source Transparency"),
	}
	for _, item := range analysis.BuildTransparency(m) {
		blocks = append(blocks, paragraph(fmt.Sprintf("%s: %s. %s", item.Label, item.Status, item.Detail)))
	}
	return blocks
}

// richText chunks text into Notion rich text segments. Notion rejects
// segments over 2000 characters.
func richText(text string) []notionapi.RichText {
	const maxLen = 2000
	var out []notionapi.RichText
	for len(text) > 0 {
		chunk := text
		if len(chunk) > maxLen {
			chunk = chunk[:maxLen]
		}
		out = append(out, notionapi.RichText{
			Type: notionapi.ObjectTypeText,
			Text: &notionapi.Text{Content: chunk},
		})
		text = text[len(chunk):]
	}
	if out == nil {
		out = []notionapi.RichText{{
			Type: notionapi.ObjectTypeText,
			Text: &notionapi.Text{Content: ""},
		}}
	}
	return out
}

func heading(text string) notionapi.Block {
	return &notionapi.Heading2Block{
		BasicBlock: notionapi.BasicBlock{
			Object: notionapi.ObjectTypeBlock,
			Type:   notionapi.BlockTypeHeading2,
		},
		Heading2: notionapi.Heading{RichText: richText(text)},
	}
}

func paragraph(text string) notionapi.Block {
	return &notionapi.ParagraphBlock{
		BasicBlock: notionapi.BasicBlock{
			Object: notionapi.ObjectTypeBlock,
			Type:   notionapi.BlockTypeParagraph,
		},
		Paragraph: notionapi.Paragraph{RichText: richText(text)},
	}
}
