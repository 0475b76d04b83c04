package export

import (
	"context"
	"fmt"
	"time"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"

	"github.com/sells-group/buyergroup-cli/internal/model"
	"github.com/sells-group/buyergroup-cli/pkg/notion"
)

// NotionExporter publishes buyer-group results as pages in a Notion review
// database, one page per request.
type NotionExporter struct {
	client notion.Client
	dbID   string
}

// NewNotionExporter creates an exporter writing into the given database.
func NewNotionExporter(client notion.Client, databaseID string) *NotionExporter {
	return &NotionExporter{client: client, dbID: databaseID}
}

// Publish creates a report page for the result and returns the new page ID.
func (e *NotionExporter) Publish(ctx context.Context, result *model.BuyerGroupResult) (string, error) {
	if result == nil {
		return "", eris.New("export: nil result")
	}
	if e.dbID == "" {
		return "", eris.New("export: notion database id is required")
	}

	completed := notionapi.Date(result.CompletedAt)
	if result.CompletedAt.IsZero() {
		completed = notionapi.Date(time.Now())
	}

	req := &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(e.dbID),
		},
		Properties: notionapi.Properties{
			"Company": notionapi.TitleProperty{
				Title: richText(result.CompanyName),
			},
			"Request ID": notionapi.RichTextProperty{
				RichText: richText(result.RequestID),
			},
			"Tier": notionapi.SelectProperty{
				Select: notionapi.Option{Name: string(result.Tier)},
			},
			"State": notionapi.SelectProperty{
				Select: notionapi.Option{Name: string(result.State)},
			},
			"Members": notionapi.NumberProperty{
				Number: float64(len(result.Members)),
			},
			"Cohesion": notionapi.NumberProperty{
				Number: result.CohesionScore,
			},
			"Cost USD": notionapi.NumberProperty{
				Number: result.TotalCostUSD,
			},
			"Degraded": notionapi.CheckboxProperty{
				Checkbox: result.Degraded,
			},
			"Completed": notionapi.DateProperty{
				Date: &notionapi.DateObject{Start: &completed},
			},
		},
		Children: memberBlocks(result),
	}

	page, err := e.client.CreatePage(ctx, req)
	if err != nil {
		return "", eris.Wrap(err, fmt.Sprintf("export: publish report for %s", result.RequestID))
	}
	return string(page.ID), nil
}

// memberBlocks renders the group as a heading plus one bullet per member.
func memberBlocks(result *model.BuyerGroupResult) []notionapi.Block {
	blocks := []notionapi.Block{
		&notionapi.Heading2Block{
			BasicBlock: notionapi.BasicBlock{
				Object: notionapi.ObjectTypeBlock,
				Type:   notionapi.BlockTypeHeading2,
			},
			Heading2: notionapi.Heading{RichText: richText("Buyer Group")},
		},
	}
	for _, m := range result.Members {
		line := fmt.Sprintf("%s, %s (%s, score %.2f, quality %d)",
			m.Candidate.Str(model.FieldName),
			m.Candidate.Str(model.FieldTitle),
			m.Role.Role, m.Role.Score, m.Quality.Overall)
		blocks = append(blocks, &notionapi.BulletedListItemBlock{
			BasicBlock: notionapi.BasicBlock{
				Object: notionapi.ObjectTypeBlock,
				Type:   notionapi.BlockTypeBulletedListItem,
			},
			BulletedListItem: notionapi.ListItem{RichText: richText(line)},
		})
	}
	return blocks
}

func richText(s string) []notionapi.RichText {
	return []notionapi.RichText{{Text: &notionapi.Text{Content: s}}}
}
