package mcp

import (
	"bytes"
	"context"
	"encoding/base64"
	"net/http"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestHandleExportWorkItems_Success(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/issues/PROJ-1", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(testIssueJSON))
	})
	mux.HandleFunc("GET /api/issues/PROJ-1/timeTracking/workItems", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[
			{"id": "5-1", "duration": 3600000, "date": 1700000000000, "description": "debugging", "author": {"login": "jsmith"}, "type": {"name": "Development"}},
			{"id": "5-2", "duration": 1800000, "date": 1700000000000, "description": "cleanup", "author": {"login": "jdoe"}, "type": null}
		]`))
	})
	h := newTestHandlers(t, mux)

	result, err := h.handleExportWorkItems(context.Background(), callArgs(map[string]any{
		"issue_id": "PROJ-1",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	parsed := decodeResult(t, result)
	if parsed["issue_id"] != "2-1" {
		t.Errorf("expected issue_id 2-1, got %v", parsed["issue_id"])
	}
	if parsed["filename"] != "2-1-work-items.xlsx" {
		t.Errorf("expected filename 2-1-work-items.xlsx, got %v", parsed["filename"])
	}
	if parsed["content_type"] != xlsxContentType {
		t.Errorf("expected xlsx content type, got %v", parsed["content_type"])
	}
	if parsed["count"] != float64(2) {
		t.Errorf("expected count 2, got %v", parsed["count"])
	}

	data, err := base64.StdEncoding.DecodeString(parsed["content"].(string))
	if err != nil {
		t.Fatalf("content is not valid base64: %v", err)
	}
	if parsed["size"] != float64(len(data)) {
		t.Errorf("expected size %d, got %v", len(data), parsed["size"])
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("content is not a valid workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(workItemSheet)
	if err != nil {
		t.Fatalf("failed to read sheet: %v", err)
	}
	// Header, two items, totals
	if len(rows) != 4 {
		t.Fatalf("expected 4 rows, got %d", len(rows))
	}
	if rows[0][0] != "Date" || rows[0][4] != "Description" {
		t.Errorf("unexpected header row: %v", rows[0])
	}
	if rows[1][0] != "2023-11-14" {
		t.Errorf("expected date 2023-11-14, got %q", rows[1][0])
	}
	if rows[1][2] != "Development" {
		t.Errorf("expected type Development, got %q", rows[1][2])
	}
	if rows[1][3] != "1" {
		t.Errorf("expected 1 hour, got %q", rows[1][3])
	}
	if rows[2][3] != "0.5" {
		t.Errorf("expected 0.5 hours, got %q", rows[2][3])
	}
	if rows[3][0] != "Total" {
		t.Errorf("expected totals row, got %v", rows[3])
	}
	if rows[3][3] != "1.5" {
		t.Errorf("expected total 1.5 hours, got %q", rows[3][3])
	}
}

func TestHandleExportWorkItems_NoItems(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/issues/PROJ-1", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(testIssueJSON))
	})
	mux.HandleFunc("GET /api/issues/PROJ-1/timeTracking/workItems", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})
	h := newTestHandlers(t, mux)

	result, err := h.handleExportWorkItems(context.Background(), callArgs(map[string]any{
		"issue_id": "PROJ-1",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	parsed := decodeResult(t, result)
	if parsed["count"] != float64(0) {
		t.Errorf("expected count 0, got %v", parsed["count"])
	}

	data, err := base64.StdEncoding.DecodeString(parsed["content"].(string))
	if err != nil {
		t.Fatalf("content is not valid base64: %v", err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("content is not a valid workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(workItemSheet)
	if err != nil {
		t.Fatalf("failed to read sheet: %v", err)
	}
	// Header and totals only
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[1][0] != "Total" || rows[1][3] != "0" {
		t.Errorf("unexpected totals row: %v", rows[1])
	}
}

func TestHandleExportWorkItems_IssueNotFound(t *testing.T) {
	itemsRequested := false
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/issues/PROJ-1/timeTracking/workItems", func(w http.ResponseWriter, r *http.Request) {
		itemsRequested = true
	})
	h := newTestHandlers(t, mux)

	result, err := h.handleExportWorkItems(context.Background(), callArgs(map[string]any{
		"issue_id": "PROJ-1",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	code, _ := decodeError(t, result)
	if code != "not_found" {
		t.Errorf("expected not_found, got %s", code)
	}
	if itemsRequested {
		t.Error("work items should not be fetched when the issue lookup fails")
	}
}

func TestHoursFromMillis(t *testing.T) {
	tests := []struct {
		millis int64
		hours  float64
	}{
		{3600000, 1},
		{1800000, 0.5},
		{5400000, 1.5},
		{2700000, 0.75},
		{0, 0},
		{1000, 0},
	}

	for _, tt := range tests {
		if got := hoursFromMillis(tt.millis); got != tt.hours {
			t.Errorf("hoursFromMillis(%d) = %v, want %v", tt.millis, got, tt.hours)
		}
	}
}
