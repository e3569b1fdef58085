package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	pharos "github.com/pharos-research/pharos"
)

const testRunDoc = `
name: Weekly Oncology Report
executive_summary: Pipeline summary text.
categories:
  - name: Clinical Trials
  - name: Regulatory
articles:
  - title: A Phase 2 Readout
    ai_summary: Met its primary endpoint.
    decision:
      status: included
      categories: [Clinical Trials]
      rank: 1
  - title: An FDA Advisory Vote
    decision:
      status: included
      categories: [Regulatory]
      rank: 2
  - title: A Tangential Commentary
    decision:
      status: filtered
      filter_score: 0.2
      filter_score_reason: off topic
`

func newTestServer(t *testing.T) *server {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	engine, err := pharos.NewEngine(pharos.EngineConfig{DBPath: dbPath, DisableGateway: true})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	t.Cleanup(func() { engine.Close() })
	return newServer(engine)
}

// importRun loads the fixture run document and returns the report ID.
func importRun(t *testing.T, srv *server) int64 {
	t.Helper()
	path := filepath.Join(t.TempDir(), "run.yaml")
	if err := os.WriteFile(path, []byte(testRunDoc), 0o644); err != nil {
		t.Fatalf("write run document: %v", err)
	}
	reportID, err := srv.engine.ImportRun(path, "run-mcp-test")
	if err != nil {
		t.Fatalf("ImportRun: %v", err)
	}
	return reportID
}

// viewArticleID resolves an article ID by title through the curation_view tool.
func viewArticleID(t *testing.T, srv *server, reportID int64, title string) int64 {
	t.Helper()
	resp := srv.handleRequest(toolCall(1, "curation_view", map[string]any{
		"report_id": reportID,
	}))
	if resultIsError(t, resp) {
		t.Fatalf("curation_view error: %s", resultText(t, resp))
	}
	var view struct {
		Included []struct {
			ID    int64  `json:"id"`
			Title string `json:"title"`
		} `json:"included"`
		FilteredOut []struct {
			ID    int64  `json:"id"`
			Title string `json:"title"`
		} `json:"filtered_out"`
	}
	if err := json.Unmarshal([]byte(resultText(t, resp)), &view); err != nil {
		t.Fatalf("unmarshal view: %v", err)
	}
	for _, a := range view.Included {
		if a.Title == title {
			return a.ID
		}
	}
	for _, a := range view.FilteredOut {
		if a.Title == title {
			return a.ID
		}
	}
	t.Fatalf("article %q not found in view", title)
	return 0
}

// rpc builds a jsonRPCRequest for testing.
func rpc(id int, method string, params any) jsonRPCRequest {
	req := jsonRPCRequest{
		JSONRPC: "2.0",
		Method:  method,
	}
	idBytes, _ := json.Marshal(id)
	req.ID = idBytes
	if params != nil {
		p, _ := json.Marshal(params)
		req.Params = p
	}
	return req
}

// toolCall builds a tools/call request.
func toolCall(id int, name string, args any) jsonRPCRequest {
	return rpc(id, "tools/call", map[string]any{
		"name":      name,
		"arguments": args,
	})
}

// resultText extracts the first text content from an MCP tool response.
func resultText(t *testing.T, resp jsonRPCResponse) string {
	t.Helper()
	b, _ := json.Marshal(resp.Result)
	var r struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(b, &r); err != nil || len(r.Content) == 0 {
		t.Fatalf("could not extract text from result: %s", b)
	}
	return r.Content[0].Text
}

// resultIsError checks whether an MCP tool response is an error.
func resultIsError(t *testing.T, resp jsonRPCResponse) bool {
	t.Helper()
	b, _ := json.Marshal(resp.Result)
	var r struct {
		IsError bool `json:"isError"`
	}
	json.Unmarshal(b, &r)
	return r.IsError
}

// --- Protocol tests ---

func TestInitialize(t *testing.T) {
	srv := newTestServer(t)
	resp := srv.handleRequest(rpc(1, "initialize", nil))

	if resp.Error != nil {
		t.Fatalf("unexpected error: %s", resp.Error.Message)
	}
	b, _ := json.Marshal(resp.Result)
	var result struct {
		ProtocolVersion string `json:"protocolVersion"`
		ServerInfo      struct {
			Name string `json:"name"`
		} `json:"serverInfo"`
	}
	json.Unmarshal(b, &result)
	if result.ProtocolVersion != "2024-11-05" {
		t.Errorf("protocol version = %q, want 2024-11-05", result.ProtocolVersion)
	}
	if result.ServerInfo.Name != "pharos" {
		t.Errorf("server name = %q, want pharos", result.ServerInfo.Name)
	}
}

func TestPing(t *testing.T) {
	srv := newTestServer(t)
	resp := srv.handleRequest(rpc(1, "ping", nil))

	if resp.Error != nil {
		t.Fatalf("unexpected error: %s", resp.Error.Message)
	}
}

func TestToolsList(t *testing.T) {
	srv := newTestServer(t)
	resp := srv.handleRequest(rpc(1, "tools/list", nil))

	if resp.Error != nil {
		t.Fatalf("unexpected error: %s", resp.Error.Message)
	}

	b, _ := json.Marshal(resp.Result)
	var result struct {
		Tools []struct {
			Name string `json:"name"`
		} `json:"tools"`
	}
	json.Unmarshal(b, &result)

	expected := []string{
		"reports_list", "curation_view",
		"article_exclude", "article_include", "curation_reset",
		"article_set_category", "curation_notes",
		"report_approve", "report_reject", "report_edit",
		"summary_regenerate",
	}
	if len(result.Tools) != len(expected) {
		t.Fatalf("got %d tools, want %d", len(result.Tools), len(expected))
	}
	names := make(map[string]bool)
	for _, tool := range result.Tools {
		names[tool.Name] = true
	}
	for _, name := range expected {
		if !names[name] {
			t.Errorf("missing tool: %s", name)
		}
	}
}

func TestUnknownMethod(t *testing.T) {
	srv := newTestServer(t)
	resp := srv.handleRequest(rpc(1, "nonexistent/method", nil))

	if resp.Error == nil {
		t.Fatal("expected error for unknown method")
	}
	if resp.Error.Code != -32601 {
		t.Errorf("error code = %d, want -32601", resp.Error.Code)
	}
}

// --- Tool tests ---

func TestReportsListEmpty(t *testing.T) {
	srv := newTestServer(t)
	resp := srv.handleRequest(toolCall(1, "reports_list", map[string]any{}))

	if resp.Error != nil {
		t.Fatalf("unexpected error: %s", resp.Error.Message)
	}
	if resultIsError(t, resp) {
		t.Fatal("unexpected tool error")
	}
}

func TestReportsListAfterImport(t *testing.T) {
	srv := newTestServer(t)
	importRun(t, srv)

	resp := srv.handleRequest(toolCall(1, "reports_list", map[string]any{}))
	text := resultText(t, resp)
	var reports []struct {
		Name           string `json:"name"`
		ApprovalStatus string `json:"approval_status"`
	}
	if err := json.Unmarshal([]byte(text), &reports); err != nil {
		t.Fatalf("unmarshal reports: %v", err)
	}
	if len(reports) != 1 {
		t.Fatalf("got %d reports, want 1", len(reports))
	}
	if reports[0].Name != "Weekly Oncology Report" {
		t.Errorf("name = %q", reports[0].Name)
	}
	if reports[0].ApprovalStatus != "awaiting_approval" {
		t.Errorf("approval_status = %q, want awaiting_approval", reports[0].ApprovalStatus)
	}
}

func TestCurationViewMissingID(t *testing.T) {
	srv := newTestServer(t)
	resp := srv.handleRequest(toolCall(1, "curation_view", map[string]any{}))

	if !resultIsError(t, resp) {
		t.Fatal("expected error for missing report_id")
	}
}

func TestCurationViewUnknownReport(t *testing.T) {
	srv := newTestServer(t)
	resp := srv.handleRequest(toolCall(1, "curation_view", map[string]any{
		"report_id": 999,
	}))

	if !resultIsError(t, resp) {
		t.Fatal("expected error for unknown report")
	}
}

func TestExcludeAndReset(t *testing.T) {
	srv := newTestServer(t)
	reportID := importRun(t, srv)
	articleID := viewArticleID(t, srv, reportID, "A Phase 2 Readout")

	resp := srv.handleRequest(toolCall(1, "article_exclude", map[string]any{
		"report_id":  reportID,
		"article_id": articleID,
	}))
	if resultIsError(t, resp) {
		t.Fatalf("exclude error: %s", resultText(t, resp))
	}
	var stats struct {
		CuratorRemoved  int `json:"curator_removed"`
		CurrentIncluded int `json:"current_included"`
	}
	if err := json.Unmarshal([]byte(resultText(t, resp)), &stats); err != nil {
		t.Fatalf("unmarshal stats: %v", err)
	}
	if stats.CuratorRemoved != 1 {
		t.Errorf("curator_removed = %d, want 1", stats.CuratorRemoved)
	}
	if stats.CurrentIncluded != 1 {
		t.Errorf("current_included = %d, want 1", stats.CurrentIncluded)
	}

	resp = srv.handleRequest(toolCall(2, "curation_reset", map[string]any{
		"report_id":  reportID,
		"article_id": articleID,
	}))
	if resultIsError(t, resp) {
		t.Fatalf("reset error: %s", resultText(t, resp))
	}
}

func TestIncludeFilteredArticle(t *testing.T) {
	srv := newTestServer(t)
	reportID := importRun(t, srv)
	articleID := viewArticleID(t, srv, reportID, "A Tangential Commentary")

	resp := srv.handleRequest(toolCall(1, "article_include", map[string]any{
		"report_id":  reportID,
		"article_id": articleID,
	}))
	if resultIsError(t, resp) {
		t.Fatalf("include error: %s", resultText(t, resp))
	}
	var stats struct {
		CuratorAdded int `json:"curator_added"`
	}
	json.Unmarshal([]byte(resultText(t, resp)), &stats)
	if stats.CuratorAdded != 1 {
		t.Errorf("curator_added = %d, want 1", stats.CuratorAdded)
	}
}

func TestSetCategoryRequiresTarget(t *testing.T) {
	srv := newTestServer(t)
	resp := srv.handleRequest(toolCall(1, "article_set_category", map[string]any{
		"report_id":  1,
		"article_id": 1,
	}))

	if !resultIsError(t, resp) {
		t.Fatal("expected error when neither category_id nor clear is given")
	}
}

func TestCurationNotes(t *testing.T) {
	srv := newTestServer(t)
	reportID := importRun(t, srv)
	articleID := viewArticleID(t, srv, reportID, "A Phase 2 Readout")

	resp := srv.handleRequest(toolCall(1, "curation_notes", map[string]any{
		"report_id":  reportID,
		"article_id": articleID,
		"notes":      "double-check enrollment numbers",
	}))
	if resultIsError(t, resp) {
		t.Fatalf("notes error: %s", resultText(t, resp))
	}
}

func TestApproveAndRejectConflict(t *testing.T) {
	srv := newTestServer(t)
	reportID := importRun(t, srv)

	resp := srv.handleRequest(toolCall(1, "report_approve", map[string]any{
		"report_id": reportID,
	}))
	if resultIsError(t, resp) {
		t.Fatalf("approve error: %s", resultText(t, resp))
	}

	resp = srv.handleRequest(toolCall(2, "report_reject", map[string]any{
		"report_id": reportID,
		"reason":    "late change of mind",
	}))
	if !resultIsError(t, resp) {
		t.Fatal("expected error rejecting an approved report")
	}
}

func TestRejectRequiresReason(t *testing.T) {
	srv := newTestServer(t)
	resp := srv.handleRequest(toolCall(1, "report_reject", map[string]any{
		"report_id": 1,
	}))

	if !resultIsError(t, resp) {
		t.Fatal("expected error for missing reason")
	}
}

func TestReportEdit(t *testing.T) {
	srv := newTestServer(t)
	reportID := importRun(t, srv)

	resp := srv.handleRequest(toolCall(1, "report_edit", map[string]any{
		"report_id": reportID,
		"name":      "Renamed Oncology Report",
	}))
	if resultIsError(t, resp) {
		t.Fatalf("edit error: %s", resultText(t, resp))
	}
	var report struct {
		Name string `json:"name"`
	}
	json.Unmarshal([]byte(resultText(t, resp)), &report)
	if report.Name != "Renamed Oncology Report" {
		t.Errorf("name = %q, want Renamed Oncology Report", report.Name)
	}
}

func TestReportEditRequiresField(t *testing.T) {
	srv := newTestServer(t)
	resp := srv.handleRequest(toolCall(1, "report_edit", map[string]any{
		"report_id": 1,
	}))

	if !resultIsError(t, resp) {
		t.Fatal("expected error when no editable field is given")
	}
}

func TestUnknownTool(t *testing.T) {
	srv := newTestServer(t)
	resp := srv.handleRequest(toolCall(1, "nonexistent_tool", map[string]any{}))

	if !resultIsError(t, resp) {
		t.Fatal("expected error for unknown tool")
	}
	text := resultText(t, resp)
	if text == "" {
		t.Fatal("expected error message")
	}
}

func TestInvalidToolCallParams(t *testing.T) {
	srv := newTestServer(t)
	resp := srv.handleRequest(rpc(1, "tools/call", "not-valid-json"))

	if resultIsError(t, resp) {
		return // expected
	}
	t.Fatal("expected error for invalid params")
}
