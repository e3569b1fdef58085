package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/pharos-research/pharos"
)

func fixtureView() *pharos.CurationView {
	clinical := int64(1)
	score := 0.25
	return &pharos.CurationView{
		Report: pharos.Report{
			ID:             1,
			RunID:          "run-2026-08-23",
			Name:           "Weekly Neurology Report",
			ApprovalStatus: "awaiting_approval",
			CreatedAt:      time.Date(2026, 8, 24, 9, 0, 0, 0, time.UTC),
		},
		Categories: []pharos.Category{
			{ID: 1, Name: "Clinical Trials", Position: 0},
		},
		Included: []pharos.IncludedEntry{
			{
				Article:      pharos.Article{ID: 101, Title: "A Phase 3 Trial"},
				CategoryID:   &clinical,
				CategoryName: "Clinical Trials",
				State:        "pipeline_only",
			},
			{
				Article:       pharos.Article{ID: 103, Title: "An Orphan Finding"},
				Uncategorized: true,
				State:         "pipeline_only",
			},
		},
		FilteredOut: []pharos.FilteredEntry{
			{
				Article:           pharos.Article{ID: 202, Title: "An Off-Topic Letter"},
				FilterScore:       &score,
				FilterScoreReason: "low relevance",
				State:             "pipeline_only",
			},
		},
		Curated: []pharos.CuratedEntry{},
		Stats: pharos.CurationStats{
			PipelineIncluded: 2,
			PipelineFiltered: 1,
			CurrentIncluded:  2,
		},
	}
}

func TestOutputReportList_JSON(t *testing.T) {
	var out bytes.Buffer
	f := NewFormatterWithWriters(FormatJSON, &out, &bytes.Buffer{})

	reports := []pharos.ReportSummary{{
		Report: pharos.Report{
			ID:             1,
			RunID:          "run-2026-08-23",
			Name:           "Weekly Neurology Report",
			ApprovalStatus: "awaiting_approval",
		},
		HasCurationEdits: true,
	}}
	if err := f.OutputReportList(reports); err != nil {
		t.Fatalf("OutputReportList failed: %v", err)
	}

	var rows []map[string]interface{}
	if err := json.Unmarshal(out.Bytes(), &rows); err != nil {
		t.Fatalf("invalid JSON output: %v", err)
	}
	if len(rows) != 1 || rows[0]["name"] != "Weekly Neurology Report" {
		t.Errorf("unexpected rows: %v", rows)
	}
	if rows[0]["approval_status"] != "awaiting_approval" {
		t.Errorf("status mismatch: %v", rows[0]["approval_status"])
	}
	if rows[0]["has_curation_edits"] != true {
		t.Errorf("edit flag mismatch: %v", rows[0]["has_curation_edits"])
	}
}

func TestOutputReportList_EmptyJSONIsArray(t *testing.T) {
	var out bytes.Buffer
	f := NewFormatterWithWriters(FormatJSON, &out, &bytes.Buffer{})

	if err := f.OutputReportList(nil); err != nil {
		t.Fatalf("OutputReportList failed: %v", err)
	}
	if strings.TrimSpace(out.String()) != "[]" {
		t.Errorf("expected empty array, got %q", out.String())
	}
}

func TestOutputReportList_Human(t *testing.T) {
	var out bytes.Buffer
	f := NewFormatterWithWriters(FormatHuman, &out, &bytes.Buffer{})

	if err := f.OutputReportList(nil); err != nil {
		t.Fatalf("OutputReportList failed: %v", err)
	}
	if !strings.Contains(out.String(), "No reports") {
		t.Errorf("expected empty-list message, got: %q", out.String())
	}
}

func TestOutputCurationView_JSON(t *testing.T) {
	var out bytes.Buffer
	f := NewFormatterWithWriters(FormatJSON, &out, &bytes.Buffer{})

	if err := f.OutputCurationView(fixtureView()); err != nil {
		t.Fatalf("OutputCurationView failed: %v", err)
	}

	var payload struct {
		Included []struct {
			ID           int64  `json:"id"`
			Title        string `json:"title"`
			CategoryName string `json:"category_name"`
		} `json:"included"`
		FilteredOut []struct {
			Reason string `json:"filter_score_reason"`
		} `json:"filtered_out"`
		Curated []interface{} `json:"curated"`
		Stats   struct {
			CurrentIncluded int `json:"current_included"`
		} `json:"stats"`
	}
	if err := json.Unmarshal(out.Bytes(), &payload); err != nil {
		t.Fatalf("invalid JSON output: %v", err)
	}
	if len(payload.Included) != 2 {
		t.Fatalf("expected 2 included rows, got %d", len(payload.Included))
	}
	if payload.Included[0].CategoryName != "Clinical Trials" {
		t.Errorf("category name missing: %q", payload.Included[0].CategoryName)
	}
	if payload.Curated == nil {
		t.Error("curated should encode as an empty array, not null")
	}
	if payload.FilteredOut[0].Reason != "low relevance" {
		t.Errorf("filter reason missing: %v", payload.FilteredOut)
	}
	if payload.Stats.CurrentIncluded != 2 {
		t.Errorf("stats mismatch: %+v", payload.Stats)
	}
}

func TestOutputCurationView_Human(t *testing.T) {
	var out bytes.Buffer
	f := NewFormatterWithWriters(FormatHuman, &out, &bytes.Buffer{})

	if err := f.OutputCurationView(fixtureView()); err != nil {
		t.Fatalf("OutputCurationView failed: %v", err)
	}

	text := out.String()
	for _, want := range []string{"Clinical Trials", "A Phase 3 Trial", "Uncategorized", "Filtered out (1)", "low relevance"} {
		if !strings.Contains(text, want) {
			t.Errorf("human output missing %q:\n%s", want, text)
		}
	}
}

func TestOutputCurationView_Text(t *testing.T) {
	var out bytes.Buffer
	f := NewFormatterWithWriters(FormatText, &out, &bytes.Buffer{})

	if err := f.OutputCurationView(fixtureView()); err != nil {
		t.Fatalf("OutputCurationView failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines (2 included, 1 filtered, 1 stats), got %d:\n%s", len(lines), out.String())
	}
	if !strings.HasPrefix(lines[0], "included\t") || !strings.HasPrefix(lines[3], "stats\t") {
		t.Errorf("unexpected line structure:\n%s", out.String())
	}
}

func TestOutputResult(t *testing.T) {
	var out bytes.Buffer
	f := NewFormatterWithWriters(FormatJSON, &out, &bytes.Buffer{})

	if err := f.OutputResult("exclude", 1, 101, true, "article excluded"); err != nil {
		t.Fatalf("OutputResult failed: %v", err)
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(out.Bytes(), &payload); err != nil {
		t.Fatalf("invalid JSON output: %v", err)
	}
	if payload["changed"] != true || payload["action"] != "exclude" {
		t.Errorf("unexpected payload: %v", payload)
	}
}

func TestUnknownFormat(t *testing.T) {
	f := NewFormatterWithWriters(Format("xml"), &bytes.Buffer{}, &bytes.Buffer{})
	if err := f.OutputReportList(nil); err == nil {
		t.Fatal("expected error for unknown format")
	}
}
