package mcp

import (
	"context"
	"encoding/base64"
	"fmt"
	"math"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/xuri/excelize/v2"

	"github.com/druzicka/youtrack-mcp-server/internal/youtrack"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const workItemSheet = "Work Items"

func (h *ToolHandlers) handleExportWorkItems(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	issueID, err := requireNonEmpty(req, "issue_id")
	if err != nil {
		return errorResult(err)
	}

	// Resolve the issue first so a bad ID fails before any workbook is built.
	issue, err := h.client.GetIssue(ctx, issueID)
	if err != nil {
		return errorResult(err)
	}
	items, err := h.client.ListWorkItems(ctx, issueID)
	if err != nil {
		return errorResult(err)
	}

	data, err := buildWorkItemWorkbook(issue, items)
	if err != nil {
		return errorResult(err)
	}

	return jsonResult(map[string]any{
		"issue_id":     issue.ID,
		"summary":      issue.Summary,
		"filename":     fmt.Sprintf("%s-work-items.xlsx", issue.ID),
		"content_type": xlsxContentType,
		"size":         len(data),
		"count":        len(items),
		"content":      base64.StdEncoding.EncodeToString(data),
	})
}

// buildWorkItemWorkbook renders work items as a single-sheet timesheet with
// a bold header row and a totals row.
func buildWorkItemWorkbook(issue *youtrack.Issue, items []youtrack.WorkItem) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", workItemSheet); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	boldStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("failed to create style: %w", err)
	}

	headers := []string{"Date", "Author", "Type", "Hours", "Description"}
	for i, title := range headers {
		f.SetCellValue(workItemSheet, fmt.Sprintf("%c1", 'A'+i), title)
	}
	f.SetCellStyle(workItemSheet, "A1", "E1", boldStyle)

	var totalMillis int64
	for i, item := range items {
		row := i + 2
		totalMillis += item.Duration
		f.SetCellValue(workItemSheet, fmt.Sprintf("A%d", row), item.Date.Format("2006-01-02"))
		f.SetCellValue(workItemSheet, fmt.Sprintf("B%d", row), item.Author)
		f.SetCellValue(workItemSheet, fmt.Sprintf("C%d", row), item.Type)
		f.SetCellValue(workItemSheet, fmt.Sprintf("D%d", row), hoursFromMillis(item.Duration))
		f.SetCellValue(workItemSheet, fmt.Sprintf("E%d", row), item.Description)
	}

	totalRow := len(items) + 2
	f.SetCellValue(workItemSheet, fmt.Sprintf("A%d", totalRow), "Total")
	f.SetCellValue(workItemSheet, fmt.Sprintf("D%d", totalRow), hoursFromMillis(totalMillis))
	f.SetCellStyle(workItemSheet, fmt.Sprintf("A%d", totalRow), fmt.Sprintf("E%d", totalRow), boldStyle)

	f.SetColWidth(workItemSheet, "A", "A", 12)
	f.SetColWidth(workItemSheet, "B", "C", 16)
	f.SetColWidth(workItemSheet, "E", "E", 48)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// hoursFromMillis converts a millisecond duration to hours rounded to two
// decimal places
func hoursFromMillis(ms int64) float64 {
	return math.Round(float64(ms)/3600000*100) / 100
}
