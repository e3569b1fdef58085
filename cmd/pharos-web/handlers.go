package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	pharos "github.com/pharos-research/pharos"
	"github.com/pharos-research/pharos/internal/curation"
)

type handlers struct {
	engine *pharos.Engine
	policy *bluemonday.Policy
}

func newHandlers(engine *pharos.Engine) *handlers {
	// Curator-supplied text fields pass through a UGC policy so stored
	// notes and summaries never carry scripts or active markup.
	return &handlers{engine: engine, policy: bluemonday.UGCPolicy()}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Headers are already out; nothing left to do but log.
		return
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// handleError maps engine errors onto HTTP status codes.
func (h *handlers) handleError(w http.ResponseWriter, err error) {
	var (
		validation *curation.ValidationError
		state      *curation.InvalidStateError
		transition *curation.InvalidTransitionError
		upstream   *curation.UpstreamError
	)
	switch {
	case errors.As(err, &validation):
		writeError(w, http.StatusBadRequest, validation.Error())
	case errors.Is(err, pharos.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &state):
		writeError(w, http.StatusConflict, state.Error())
	case errors.As(err, &transition):
		writeError(w, http.StatusConflict, transition.Error())
	case errors.As(err, &upstream):
		writeError(w, http.StatusBadGateway, upstream.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func (h *handlers) reportID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := pathID(r, "reportID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return 0, false
	}
	return id, true
}

func (h *handlers) articleID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := pathID(r, "articleID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return 0, false
	}
	return id, true
}

func (h *handlers) sanitize(s string) string {
	return strings.TrimSpace(h.policy.Sanitize(s))
}

func (h *handlers) listReports(w http.ResponseWriter, r *http.Request) {
	reports, err := h.engine.ListReports()
	if err != nil {
		h.handleError(w, err)
		return
	}
	if reports == nil {
		reports = []pharos.ReportSummary{}
	}
	writeJSON(w, http.StatusOK, reports)
}

func (h *handlers) getReport(w http.ResponseWriter, r *http.Request) {
	reportID, ok := h.reportID(w, r)
	if !ok {
		return
	}
	report, err := h.engine.GetReport(reportID)
	if err != nil {
		h.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *handlers) getCurationView(w http.ResponseWriter, r *http.Request) {
	reportID, ok := h.reportID(w, r)
	if !ok {
		return
	}
	view, err := h.engine.GetCurationView(reportID)
	if err != nil {
		h.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type updateReportRequest struct {
	Name              *string          `json:"name"`
	ExecutiveSummary  *string          `json:"executive_summary"`
	CategorySummaries map[int64]string `json:"category_summaries"`
}

func (h *handlers) updateReport(w http.ResponseWriter, r *http.Request) {
	reportID, ok := h.reportID(w, r)
	if !ok {
		return
	}
	var req updateReportRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Name == nil && req.ExecutiveSummary == nil && len(req.CategorySummaries) == 0 {
		writeError(w, http.StatusBadRequest, "nothing to update")
		return
	}
	update := pharos.ReportContentUpdate{Name: req.Name}
	if req.ExecutiveSummary != nil {
		clean := h.sanitize(*req.ExecutiveSummary)
		update.ExecutiveSummary = &clean
	}
	if len(req.CategorySummaries) > 0 {
		update.CategorySummaries = make(map[int64]string, len(req.CategorySummaries))
		for id, summary := range req.CategorySummaries {
			update.CategorySummaries[id] = h.sanitize(summary)
		}
	}
	report, err := h.engine.UpdateReportContent(reportID, update)
	if err != nil {
		h.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *handlers) excludeArticle(w http.ResponseWriter, r *http.Request) {
	reportID, ok := h.reportID(w, r)
	if !ok {
		return
	}
	articleID, ok := h.articleID(w, r)
	if !ok {
		return
	}
	view, err := h.engine.ExcludeArticle(reportID, articleID)
	if err != nil {
		h.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type includeArticleRequest struct {
	CategoryID *int64 `json:"category_id"`
}

func (h *handlers) includeArticle(w http.ResponseWriter, r *http.Request) {
	reportID, ok := h.reportID(w, r)
	if !ok {
		return
	}
	articleID, ok := h.articleID(w, r)
	if !ok {
		return
	}
	var req includeArticleRequest
	if r.ContentLength != 0 {
		if !decodeBody(w, r, &req) {
			return
		}
	}
	view, err := h.engine.IncludeArticle(reportID, articleID, req.CategoryID)
	if err != nil {
		h.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type resetResponse struct {
	Reset   bool                `json:"reset"`
	Message string              `json:"message"`
	View    *pharos.CurationView `json:"view"`
}

func (h *handlers) resetCuration(w http.ResponseWriter, r *http.Request) {
	reportID, ok := h.reportID(w, r)
	if !ok {
		return
	}
	articleID, ok := h.articleID(w, r)
	if !ok {
		return
	}
	view, result, err := h.engine.ResetCuration(reportID, articleID)
	if err != nil {
		h.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resetResponse{Reset: result.Reset, Message: result.Message, View: view})
}

type updateArticleRequest struct {
	CategoryID   *int64  `json:"category_id"`
	Uncategorize bool    `json:"uncategorize"`
	AISummary    *string `json:"ai_summary"`
}

func (h *handlers) updateArticle(w http.ResponseWriter, r *http.Request) {
	reportID, ok := h.reportID(w, r)
	if !ok {
		return
	}
	articleID, ok := h.articleID(w, r)
	if !ok {
		return
	}
	var req updateArticleRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.CategoryID != nil && req.Uncategorize {
		writeError(w, http.StatusBadRequest, "category_id and uncategorize are mutually exclusive")
		return
	}
	if req.CategoryID == nil && !req.Uncategorize && req.AISummary == nil {
		writeError(w, http.StatusBadRequest, "nothing to update")
		return
	}

	if req.AISummary != nil {
		clean := h.sanitize(*req.AISummary)
		if _, err := h.engine.UpdateArticle(reportID, articleID, pharos.ArticleUpdate{AISummary: &clean}); err != nil {
			h.handleError(w, err)
			return
		}
	}
	if req.CategoryID != nil || req.Uncategorize {
		if _, err := h.engine.SetArticleCategory(reportID, articleID, req.CategoryID); err != nil {
			h.handleError(w, err)
			return
		}
	}

	view, err := h.engine.GetCurationView(reportID)
	if err != nil {
		h.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type updateNotesRequest struct {
	Notes string `json:"notes"`
}

func (h *handlers) updateNotes(w http.ResponseWriter, r *http.Request) {
	reportID, ok := h.reportID(w, r)
	if !ok {
		return
	}
	articleID, ok := h.articleID(w, r)
	if !ok {
		return
	}
	var req updateNotesRequest
	if !decodeBody(w, r, &req) {
		return
	}
	view, err := h.engine.UpdateCurationNotes(reportID, articleID, h.sanitize(req.Notes))
	if err != nil {
		h.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *handlers) approveReport(w http.ResponseWriter, r *http.Request) {
	reportID, ok := h.reportID(w, r)
	if !ok {
		return
	}
	report, err := h.engine.ApproveReport(reportID)
	if err != nil {
		h.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type rejectReportRequest struct {
	Reason string `json:"reason"`
}

func (h *handlers) rejectReport(w http.ResponseWriter, r *http.Request) {
	reportID, ok := h.reportID(w, r)
	if !ok {
		return
	}
	var req rejectReportRequest
	if !decodeBody(w, r, &req) {
		return
	}
	report, err := h.engine.RejectReport(reportID, h.sanitize(req.Reason))
	if err != nil {
		h.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *handlers) regenerateExecutive(w http.ResponseWriter, r *http.Request) {
	reportID, ok := h.reportID(w, r)
	if !ok {
		return
	}
	report, err := h.engine.RegenerateExecutiveSummary(r.Context(), reportID)
	if err != nil {
		h.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *handlers) regenerateCategory(w http.ResponseWriter, r *http.Request) {
	reportID, ok := h.reportID(w, r)
	if !ok {
		return
	}
	categoryID, err := pathID(r, "categoryID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	category, err := h.engine.RegenerateCategorySummary(r.Context(), reportID, categoryID)
	if err != nil {
		h.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, category)
}

func (h *handlers) regenerateArticle(w http.ResponseWriter, r *http.Request) {
	reportID, ok := h.reportID(w, r)
	if !ok {
		return
	}
	articleID, ok := h.articleID(w, r)
	if !ok {
		return
	}
	article, err := h.engine.RegenerateArticleSummary(r.Context(), reportID, articleID)
	if err != nil {
		h.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, article)
}
