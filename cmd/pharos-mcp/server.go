package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	pharos "github.com/pharos-research/pharos"
)

// JSON-RPC 2.0 types

type jsonRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type jsonRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// server is the Pharos MCP server.
type server struct {
	engine *pharos.Engine
}

func newServer(engine *pharos.Engine) *server {
	return &server{engine: engine}
}

// run starts the MCP server, reading from stdin and writing to stdout.
func (s *server) run() error {
	log.SetOutput(os.Stderr)
	log.Printf("pharos-mcp starting")

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()

		var req jsonRPCRequest
		if err := json.Unmarshal(line, &req); err != nil {
			log.Printf("invalid json-rpc: %v", err)
			continue
		}

		// Notifications have no ID — don't respond
		if req.ID == nil || string(req.ID) == "null" {
			log.Printf("notification: %s", req.Method)
			continue
		}

		resp := s.handleRequest(req)
		respBytes, _ := json.Marshal(resp)
		fmt.Fprintf(os.Stdout, "%s\n", respBytes)
	}

	return scanner.Err()
}

func (s *server) handleRequest(req jsonRPCRequest) jsonRPCResponse {
	resp := jsonRPCResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
	}

	switch req.Method {
	case "initialize":
		resp.Result = map[string]any{
			"protocolVersion": "2024-11-05",
			"capabilities": map[string]any{
				"tools": map[string]any{},
			},
			"serverInfo": map[string]any{
				"name":    "pharos",
				"version": "0.1.0",
			},
		}
	case "tools/list":
		resp.Result = s.handleToolsList()
	case "tools/call":
		resp.Result = s.handleToolsCall(req.Params)
	case "ping":
		resp.Result = map[string]any{}
	default:
		resp.Error = &rpcError{
			Code:    -32601,
			Message: fmt.Sprintf("method not found: %s", req.Method),
		}
	}

	return resp
}

func (s *server) handleToolsList() any {
	return map[string]any{
		"tools": []map[string]any{
			{
				"name":        "reports_list",
				"description": "List all imported reports with their names, date ranges, and approval status. Use this to find a report ID before curating it.",
				"inputSchema": map[string]any{
					"type":       "object",
					"properties": map[string]any{},
				},
			},
			{
				"name":        "curation_view",
				"description": "Get the full curation view of a report: included articles grouped by category, filtered-out articles with scores, curator overrides, and summary statistics. This is the starting point for any curation session.",
				"inputSchema": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"report_id": map[string]any{
							"type":        "integer",
							"description": "The report ID to view",
						},
					},
					"required": []string{"report_id"},
				},
			},
			{
				"name":        "article_exclude",
				"description": "Exclude an article from the report. The pipeline decision is preserved; the exclusion is recorded as a curator override and can be reverted with curation_reset.",
				"inputSchema": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"report_id": map[string]any{
							"type":        "integer",
							"description": "The report ID",
						},
						"article_id": map[string]any{
							"type":        "integer",
							"description": "The article ID to exclude",
						},
					},
					"required": []string{"report_id", "article_id"},
				},
			},
			{
				"name":        "article_include",
				"description": "Include an article the pipeline filtered out or deduplicated. Optionally assign it a category; without one it appears as uncategorized.",
				"inputSchema": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"report_id": map[string]any{
							"type":        "integer",
							"description": "The report ID",
						},
						"article_id": map[string]any{
							"type":        "integer",
							"description": "The article ID to include",
						},
						"category_id": map[string]any{
							"type":        "integer",
							"description": "Optional category to place the article under",
						},
					},
					"required": []string{"report_id", "article_id"},
				},
			},
			{
				"name":        "curation_reset",
				"description": "Clear all curator overrides on an article, restoring the pipeline decision. Notes written for the article are kept.",
				"inputSchema": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"report_id": map[string]any{
							"type":        "integer",
							"description": "The report ID",
						},
						"article_id": map[string]any{
							"type":        "integer",
							"description": "The article ID to reset",
						},
					},
					"required": []string{"report_id", "article_id"},
				},
			},
			{
				"name":        "article_set_category",
				"description": "Move an included article to a different category, or clear the curator's category choice to fall back to the pipeline assignment.",
				"inputSchema": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"report_id": map[string]any{
							"type":        "integer",
							"description": "The report ID",
						},
						"article_id": map[string]any{
							"type":        "integer",
							"description": "The article ID to recategorize",
						},
						"category_id": map[string]any{
							"type":        "integer",
							"description": "The target category ID. Omit with clear=true to revert to the pipeline category.",
						},
						"clear": map[string]any{
							"type":        "boolean",
							"description": "Clear the curator category override instead of setting one",
						},
					},
					"required": []string{"report_id", "article_id"},
				},
			},
			{
				"name":        "curation_notes",
				"description": "Attach or replace curation notes on an article. Notes survive resets and record the reasoning behind curation decisions.",
				"inputSchema": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"report_id": map[string]any{
							"type":        "integer",
							"description": "The report ID",
						},
						"article_id": map[string]any{
							"type":        "integer",
							"description": "The article ID to annotate",
						},
						"notes": map[string]any{
							"type":        "string",
							"description": "The note text. An empty string clears existing notes.",
						},
					},
					"required": []string{"report_id", "article_id", "notes"},
				},
			},
			{
				"name":        "report_approve",
				"description": "Approve a report awaiting approval. Approval is terminal: the curation state is locked afterwards, though content edits remain possible.",
				"inputSchema": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"report_id": map[string]any{
							"type":        "integer",
							"description": "The report ID to approve",
						},
					},
					"required": []string{"report_id"},
				},
			},
			{
				"name":        "report_reject",
				"description": "Reject a report awaiting approval. A reason is required and is stored with the report. Rejection is terminal; corrections go through a fresh pipeline import.",
				"inputSchema": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"report_id": map[string]any{
							"type":        "integer",
							"description": "The report ID to reject",
						},
						"reason": map[string]any{
							"type":        "string",
							"description": "Why the report is rejected",
						},
					},
					"required": []string{"report_id", "reason"},
				},
			},
			{
				"name":        "report_edit",
				"description": "Edit a report's name or executive summary text. Works in any approval state.",
				"inputSchema": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"report_id": map[string]any{
							"type":        "integer",
							"description": "The report ID to edit",
						},
						"name": map[string]any{
							"type":        "string",
							"description": "New report name",
						},
						"executive_summary": map[string]any{
							"type":        "string",
							"description": "New executive summary text",
						},
					},
					"required": []string{"report_id"},
				},
			},
			{
				"name":        "summary_regenerate",
				"description": "Regenerate an AI summary through Ollama. Scope is the executive summary by default; pass category_id or article_id to regenerate a category or article summary instead.",
				"inputSchema": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"report_id": map[string]any{
							"type":        "integer",
							"description": "The report ID",
						},
						"category_id": map[string]any{
							"type":        "integer",
							"description": "Regenerate this category's summary",
						},
						"article_id": map[string]any{
							"type":        "integer",
							"description": "Regenerate this article's summary",
						},
					},
					"required": []string{"report_id"},
				},
			},
		},
	}
}

func (s *server) handleToolsCall(params json.RawMessage) any {
	var call struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}

	if err := json.Unmarshal(params, &call); err != nil {
		return mcpError("invalid tool call: %v", err)
	}

	switch call.Name {
	case "reports_list":
		return s.handleReportsList()
	case "curation_view":
		return s.handleCurationView(call.Arguments)
	case "article_exclude":
		return s.handleArticleExclude(call.Arguments)
	case "article_include":
		return s.handleArticleInclude(call.Arguments)
	case "curation_reset":
		return s.handleCurationReset(call.Arguments)
	case "article_set_category":
		return s.handleArticleSetCategory(call.Arguments)
	case "curation_notes":
		return s.handleCurationNotes(call.Arguments)
	case "report_approve":
		return s.handleReportApprove(call.Arguments)
	case "report_reject":
		return s.handleReportReject(call.Arguments)
	case "report_edit":
		return s.handleReportEdit(call.Arguments)
	case "summary_regenerate":
		return s.handleSummaryRegenerate(call.Arguments)
	default:
		return mcpError("unknown tool: %s", call.Name)
	}
}

// --- tool handlers ---

func (s *server) handleReportsList() any {
	reports, err := s.engine.ListReports()
	if err != nil {
		return mcpError("%v", err)
	}

	log.Printf("reports_list: %d reports", len(reports))
	return mcpJSON(reports)
}

func (s *server) handleCurationView(args json.RawMessage) any {
	var params struct {
		ReportID int64 `json:"report_id"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return mcpError("invalid arguments: %v", err)
	}
	if params.ReportID == 0 {
		return mcpError("report_id parameter is required")
	}

	view, err := s.engine.GetCurationView(params.ReportID)
	if err != nil {
		return mcpError("%v", err)
	}

	log.Printf("curation_view: report=%d included=%d", params.ReportID, len(view.Included))
	return mcpJSON(view)
}

func (s *server) handleArticleExclude(args json.RawMessage) any {
	var params struct {
		ReportID  int64 `json:"report_id"`
		ArticleID int64 `json:"article_id"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return mcpError("invalid arguments: %v", err)
	}
	if params.ReportID == 0 || params.ArticleID == 0 {
		return mcpError("report_id and article_id parameters are required")
	}

	view, err := s.engine.ExcludeArticle(params.ReportID, params.ArticleID)
	if err != nil {
		return mcpError("%v", err)
	}

	log.Printf("article_exclude: report=%d article=%d", params.ReportID, params.ArticleID)
	return mcpJSON(view.Stats)
}

func (s *server) handleArticleInclude(args json.RawMessage) any {
	var params struct {
		ReportID   int64  `json:"report_id"`
		ArticleID  int64  `json:"article_id"`
		CategoryID *int64 `json:"category_id"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return mcpError("invalid arguments: %v", err)
	}
	if params.ReportID == 0 || params.ArticleID == 0 {
		return mcpError("report_id and article_id parameters are required")
	}

	view, err := s.engine.IncludeArticle(params.ReportID, params.ArticleID, params.CategoryID)
	if err != nil {
		return mcpError("%v", err)
	}

	log.Printf("article_include: report=%d article=%d", params.ReportID, params.ArticleID)
	return mcpJSON(view.Stats)
}

func (s *server) handleCurationReset(args json.RawMessage) any {
	var params struct {
		ReportID  int64 `json:"report_id"`
		ArticleID int64 `json:"article_id"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return mcpError("invalid arguments: %v", err)
	}
	if params.ReportID == 0 || params.ArticleID == 0 {
		return mcpError("report_id and article_id parameters are required")
	}

	_, result, err := s.engine.ResetCuration(params.ReportID, params.ArticleID)
	if err != nil {
		return mcpError("%v", err)
	}

	log.Printf("curation_reset: report=%d article=%d reset=%v", params.ReportID, params.ArticleID, result.Reset)
	return mcpText("%s", result.Message)
}

func (s *server) handleArticleSetCategory(args json.RawMessage) any {
	var params struct {
		ReportID   int64  `json:"report_id"`
		ArticleID  int64  `json:"article_id"`
		CategoryID *int64 `json:"category_id"`
		Clear      bool   `json:"clear"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return mcpError("invalid arguments: %v", err)
	}
	if params.ReportID == 0 || params.ArticleID == 0 {
		return mcpError("report_id and article_id parameters are required")
	}
	if params.CategoryID == nil && !params.Clear {
		return mcpError("either category_id or clear is required")
	}
	if params.CategoryID != nil && params.Clear {
		return mcpError("category_id and clear are mutually exclusive")
	}

	if _, err := s.engine.SetArticleCategory(params.ReportID, params.ArticleID, params.CategoryID); err != nil {
		return mcpError("%v", err)
	}

	if params.Clear {
		log.Printf("article_set_category: report=%d article=%d cleared", params.ReportID, params.ArticleID)
		return mcpText("Article %d category override cleared.", params.ArticleID)
	}
	log.Printf("article_set_category: report=%d article=%d category=%d", params.ReportID, params.ArticleID, *params.CategoryID)
	return mcpText("Article %d moved to category %d.", params.ArticleID, *params.CategoryID)
}

func (s *server) handleCurationNotes(args json.RawMessage) any {
	var params struct {
		ReportID  int64   `json:"report_id"`
		ArticleID int64   `json:"article_id"`
		Notes     *string `json:"notes"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return mcpError("invalid arguments: %v", err)
	}
	if params.ReportID == 0 || params.ArticleID == 0 {
		return mcpError("report_id and article_id parameters are required")
	}
	if params.Notes == nil {
		return mcpError("notes parameter is required")
	}

	if _, err := s.engine.UpdateCurationNotes(params.ReportID, params.ArticleID, *params.Notes); err != nil {
		return mcpError("%v", err)
	}

	log.Printf("curation_notes: report=%d article=%d", params.ReportID, params.ArticleID)
	return mcpText("Notes updated for article %d.", params.ArticleID)
}

func (s *server) handleReportApprove(args json.RawMessage) any {
	var params struct {
		ReportID int64 `json:"report_id"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return mcpError("invalid arguments: %v", err)
	}
	if params.ReportID == 0 {
		return mcpError("report_id parameter is required")
	}

	report, err := s.engine.ApproveReport(params.ReportID)
	if err != nil {
		return mcpError("%v", err)
	}

	log.Printf("report_approve: report=%d", params.ReportID)
	return mcpText("Report %d (%s) approved.", report.ID, report.Name)
}

func (s *server) handleReportReject(args json.RawMessage) any {
	var params struct {
		ReportID int64  `json:"report_id"`
		Reason   string `json:"reason"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return mcpError("invalid arguments: %v", err)
	}
	if params.ReportID == 0 {
		return mcpError("report_id parameter is required")
	}
	if params.Reason == "" {
		return mcpError("reason parameter is required")
	}

	report, err := s.engine.RejectReport(params.ReportID, params.Reason)
	if err != nil {
		return mcpError("%v", err)
	}

	log.Printf("report_reject: report=%d", params.ReportID)
	return mcpText("Report %d (%s) rejected: %s", report.ID, report.Name, params.Reason)
}

func (s *server) handleReportEdit(args json.RawMessage) any {
	var params struct {
		ReportID         int64   `json:"report_id"`
		Name             *string `json:"name"`
		ExecutiveSummary *string `json:"executive_summary"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return mcpError("invalid arguments: %v", err)
	}
	if params.ReportID == 0 {
		return mcpError("report_id parameter is required")
	}
	if params.Name == nil && params.ExecutiveSummary == nil {
		return mcpError("at least one of name or executive_summary is required")
	}

	report, err := s.engine.UpdateReportContent(params.ReportID, pharos.ReportContentUpdate{
		Name:             params.Name,
		ExecutiveSummary: params.ExecutiveSummary,
	})
	if err != nil {
		return mcpError("%v", err)
	}

	log.Printf("report_edit: report=%d", params.ReportID)
	return mcpJSON(report)
}

func (s *server) handleSummaryRegenerate(args json.RawMessage) any {
	var params struct {
		ReportID   int64  `json:"report_id"`
		CategoryID *int64 `json:"category_id"`
		ArticleID  *int64 `json:"article_id"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return mcpError("invalid arguments: %v", err)
	}
	if params.ReportID == 0 {
		return mcpError("report_id parameter is required")
	}
	if params.CategoryID != nil && params.ArticleID != nil {
		return mcpError("category_id and article_id are mutually exclusive")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	switch {
	case params.CategoryID != nil:
		category, err := s.engine.RegenerateCategorySummary(ctx, params.ReportID, *params.CategoryID)
		if err != nil {
			return mcpError("%v", err)
		}
		log.Printf("summary_regenerate: report=%d category=%d", params.ReportID, *params.CategoryID)
		return mcpJSON(category)
	case params.ArticleID != nil:
		article, err := s.engine.RegenerateArticleSummary(ctx, params.ReportID, *params.ArticleID)
		if err != nil {
			return mcpError("%v", err)
		}
		log.Printf("summary_regenerate: report=%d article=%d", params.ReportID, *params.ArticleID)
		return mcpJSON(article)
	default:
		report, err := s.engine.RegenerateExecutiveSummary(ctx, params.ReportID)
		if err != nil {
			return mcpError("%v", err)
		}
		log.Printf("summary_regenerate: report=%d executive", params.ReportID)
		return mcpJSON(report)
	}
}

// --- MCP response helpers ---

func mcpText(format string, args ...any) any {
	return map[string]any{
		"content": []map[string]any{
			{"type": "text", "text": fmt.Sprintf(format, args...)},
		},
	}
}

func mcpJSON(data any) any {
	b, err := json.Marshal(data)
	if err != nil {
		return mcpError("marshal response: %v", err)
	}
	return map[string]any{
		"content": []map[string]any{
			{"type": "text", "text": string(b)},
		},
	}
}

func mcpError(format string, args ...any) any {
	return map[string]any{
		"content": []map[string]any{
			{"type": "text", "text": fmt.Sprintf("Error: "+format, args...)},
		},
		"isError": true,
	}
}
