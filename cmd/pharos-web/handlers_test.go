package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	pharos "github.com/pharos-research/pharos"
)

const testRunDoc = `
name: Weekly Neurology Report
executive_summary: Initial pipeline summary.
categories:
  - name: Clinical Trials
  - name: Market News
articles:
  - title: A Phase 3 Trial of Lecanemab
    journal: NEJM
    ai_summary: Positive primary endpoint.
    decision:
      status: included
      categories: [Clinical Trials]
      rank: 1
  - title: A Competitor Licensing Deal
    ai_summary: Licensing terms announced.
    decision:
      status: included
      categories: [Market News]
      rank: 2
  - title: An Off-Topic Letter
    decision:
      status: filtered
      filter_score: 0.25
      filter_score_reason: low relevance
`

type testServer struct {
	engine   *pharos.Engine
	mux      *http.ServeMux
	reportID int64
}

func newTestServer(t *testing.T, authSecret string) *testServer {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	engine, err := pharos.NewEngine(pharos.EngineConfig{DBPath: dbPath, DisableGateway: true})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	t.Cleanup(func() { engine.Close() })

	runPath := filepath.Join(t.TempDir(), "run.yaml")
	if err := os.WriteFile(runPath, []byte(testRunDoc), 0o644); err != nil {
		t.Fatalf("write run document: %v", err)
	}
	reportID, err := engine.ImportRun(runPath, "run-web-test")
	if err != nil {
		t.Fatalf("ImportRun: %v", err)
	}

	return &testServer{engine: engine, mux: newRouter(engine, authSecret), reportID: reportID}
}

func (ts *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	ts.mux.ServeHTTP(rec, req)
	return rec
}

func decodeView(t *testing.T, rec *httptest.ResponseRecorder) pharos.CurationView {
	t.Helper()
	var view pharos.CurationView
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	return view
}

func (ts *testServer) articleID(t *testing.T, title string) int64 {
	t.Helper()
	view, err := ts.engine.GetCurationView(ts.reportID)
	if err != nil {
		t.Fatalf("GetCurationView: %v", err)
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
	t.Fatalf("article %q not found", title)
	return 0
}

func TestListReports(t *testing.T) {
	ts := newTestServer(t, "")

	rec := ts.do(t, "GET", "/api/reports", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var reports []pharos.ReportSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &reports); err != nil {
		t.Fatalf("decode reports: %v", err)
	}
	if len(reports) != 1 {
		t.Fatalf("got %d reports, want 1", len(reports))
	}
	if reports[0].Name != "Weekly Neurology Report" {
		t.Errorf("name = %q", reports[0].Name)
	}
	if reports[0].HasCurationEdits {
		t.Error("fresh import should not be flagged as curated")
	}
}

func TestGetCurationView(t *testing.T) {
	ts := newTestServer(t, "")

	rec := ts.do(t, "GET", "/api/reports/1/curation", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	view := decodeView(t, rec)
	if len(view.Included) != 2 {
		t.Errorf("included = %d, want 2", len(view.Included))
	}
	if len(view.FilteredOut) != 1 {
		t.Errorf("filtered out = %d, want 1", len(view.FilteredOut))
	}
	if view.HasCurationEdits {
		t.Error("fresh report should not have curation edits")
	}
}

func TestGetReportNotFound(t *testing.T) {
	ts := newTestServer(t, "")

	rec := ts.do(t, "GET", "/api/reports/999", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestInvalidReportIDRejected(t *testing.T) {
	ts := newTestServer(t, "")

	rec := ts.do(t, "GET", "/api/reports/abc/curation", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestExcludeArticle(t *testing.T) {
	ts := newTestServer(t, "")
	articleID := ts.articleID(t, "A Phase 3 Trial of Lecanemab")

	rec := ts.do(t, "POST", apiPath(ts.reportID, articleID, "exclude"), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	view := decodeView(t, rec)
	if len(view.Included) != 1 {
		t.Errorf("included = %d after exclusion, want 1", len(view.Included))
	}
	if !view.HasCurationEdits {
		t.Error("exclusion should mark curation edits")
	}
	if view.Stats.CuratorRemoved != 1 {
		t.Errorf("curator_removed = %d, want 1", view.Stats.CuratorRemoved)
	}
}

func TestIncludeFilteredArticle(t *testing.T) {
	ts := newTestServer(t, "")
	articleID := ts.articleID(t, "An Off-Topic Letter")

	rec := ts.do(t, "POST", apiPath(ts.reportID, articleID, "include"), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	view := decodeView(t, rec)
	if len(view.Included) != 3 {
		t.Errorf("included = %d after inclusion, want 3", len(view.Included))
	}
	if view.Stats.CuratorAdded != 1 {
		t.Errorf("curator_added = %d, want 1", view.Stats.CuratorAdded)
	}
}

func TestResetCuration(t *testing.T) {
	ts := newTestServer(t, "")
	articleID := ts.articleID(t, "A Phase 3 Trial of Lecanemab")

	ts.do(t, "POST", apiPath(ts.reportID, articleID, "exclude"), "")
	rec := ts.do(t, "POST", apiPath(ts.reportID, articleID, "reset"), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp resetResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode reset response: %v", err)
	}
	if !resp.Reset {
		t.Error("expected reset = true")
	}
	if len(resp.View.Included) != 2 {
		t.Errorf("included = %d after reset, want 2", len(resp.View.Included))
	}
}

func TestUpdateNotesSanitizesMarkup(t *testing.T) {
	ts := newTestServer(t, "")
	articleID := ts.articleID(t, "A Phase 3 Trial of Lecanemab")

	body := `{"notes": "verify dosing arm <script>alert(1)</script>"}`
	rec := ts.do(t, "PUT", apiPath(ts.reportID, articleID, "notes"), body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	view := decodeView(t, rec)
	for _, a := range view.Included {
		if a.ID != articleID {
			continue
		}
		if strings.Contains(a.Notes, "<script>") {
			t.Errorf("notes retained script tag: %q", a.Notes)
		}
		if !strings.Contains(a.Notes, "verify dosing arm") {
			t.Errorf("notes lost text content: %q", a.Notes)
		}
		return
	}
	t.Fatal("article not found in view")
}

func TestUpdateArticleCategory(t *testing.T) {
	ts := newTestServer(t, "")
	articleID := ts.articleID(t, "A Phase 3 Trial of Lecanemab")
	view, err := ts.engine.GetCurationView(ts.reportID)
	if err != nil {
		t.Fatalf("GetCurationView: %v", err)
	}
	var marketNews int64
	for _, c := range view.Categories {
		if c.Name == "Market News" {
			marketNews = c.ID
		}
	}
	if marketNews == 0 {
		t.Fatal("Market News category not found")
	}

	body := `{"category_id": ` + strconv.FormatInt(marketNews, 10) + `}`
	rec := ts.do(t, "PATCH", apiPath(ts.reportID, articleID, ""), body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	updated := decodeView(t, rec)
	for _, a := range updated.Included {
		if a.ID == articleID && a.State != "curator_recategorized" {
			t.Errorf("state = %q, want curator_recategorized", a.State)
		}
	}
}

func TestUpdateReportCategorySummary(t *testing.T) {
	ts := newTestServer(t, "")
	view, err := ts.engine.GetCurationView(ts.reportID)
	if err != nil {
		t.Fatalf("GetCurationView: %v", err)
	}
	var trials int64
	for _, c := range view.Categories {
		if c.Name == "Clinical Trials" {
			trials = c.ID
		}
	}
	if trials == 0 {
		t.Fatal("Clinical Trials category not found")
	}

	body := `{"category_summaries": {"` + strconv.FormatInt(trials, 10) + `": "One pivotal readout."}}`
	rec := ts.do(t, "PATCH", "/api/reports/1", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	fresh, err := ts.engine.GetCurationView(ts.reportID)
	if err != nil {
		t.Fatalf("GetCurationView: %v", err)
	}
	for _, c := range fresh.Categories {
		if c.ID == trials && c.Summary != "One pivotal readout." {
			t.Errorf("summary = %q", c.Summary)
		}
	}
}

func TestUpdateArticleConflictingBody(t *testing.T) {
	ts := newTestServer(t, "")
	articleID := ts.articleID(t, "A Phase 3 Trial of Lecanemab")

	body := `{"category_id": 1, "uncategorize": true}`
	rec := ts.do(t, "PATCH", apiPath(ts.reportID, articleID, ""), body)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestApprovalConflict(t *testing.T) {
	ts := newTestServer(t, "")

	rec := ts.do(t, "POST", "/api/reports/1/approve", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("approve status = %d: %s", rec.Code, rec.Body.String())
	}
	rec = ts.do(t, "POST", "/api/reports/1/reject", `{"reason": "changed my mind"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("reject after approve status = %d, want 409", rec.Code)
	}
}

func TestRejectRequiresReason(t *testing.T) {
	ts := newTestServer(t, "")

	rec := ts.do(t, "POST", "/api/reports/1/reject", `{"reason": ""}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestRegenerateWithoutGatewayIsBadGateway(t *testing.T) {
	ts := newTestServer(t, "")

	rec := ts.do(t, "POST", "/api/reports/1/regenerate/executive", "")
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502: %s", rec.Code, rec.Body.String())
	}
}

func TestAuthRequiredForMutations(t *testing.T) {
	ts := newTestServer(t, "sekrit")

	// Reads stay open.
	rec := ts.do(t, "GET", "/api/reports", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("unauthenticated read status = %d, want 200", rec.Code)
	}

	rec = ts.do(t, "POST", "/api/reports/1/approve", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated mutation status = %d, want 401", rec.Code)
	}

	token := signTestToken(t, "sekrit")
	req := httptest.NewRequest("POST", "/api/reports/1/approve", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	authed := httptest.NewRecorder()
	ts.mux.ServeHTTP(authed, req)
	if authed.Code != http.StatusOK {
		t.Fatalf("authenticated mutation status = %d: %s", authed.Code, authed.Body.String())
	}
}

func TestAuthRejectsWrongKey(t *testing.T) {
	ts := newTestServer(t, "sekrit")

	token := signTestToken(t, "wrong-key")
	req := httptest.NewRequest("POST", "/api/reports/1/approve", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	ts.mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func signTestToken(t *testing.T, secret string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "curator",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func apiPath(reportID, articleID int64, action string) string {
	p := "/api/reports/" + strconv.FormatInt(reportID, 10) +
		"/articles/" + strconv.FormatInt(articleID, 10)
	if action != "" {
		p += "/" + action
	}
	return p
}
