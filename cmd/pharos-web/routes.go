package main

import (
	"net/http"

	pharos "github.com/pharos-research/pharos"
)

// newRouter wires the curation API. Read endpoints are open; mutations
// require a bearer token when authSecret is set.
func newRouter(engine *pharos.Engine, authSecret string) *http.ServeMux {
	h := newHandlers(engine)
	mux := http.NewServeMux()

	auth := func(fn http.HandlerFunc) http.HandlerFunc {
		return requireAuth(authSecret, fn)
	}

	mux.HandleFunc("GET /api/reports", h.listReports)
	mux.HandleFunc("GET /api/reports/{reportID}", h.getReport)
	mux.HandleFunc("GET /api/reports/{reportID}/curation", h.getCurationView)
	mux.HandleFunc("PATCH /api/reports/{reportID}", auth(h.updateReport))

	mux.HandleFunc("POST /api/reports/{reportID}/articles/{articleID}/exclude", auth(h.excludeArticle))
	mux.HandleFunc("POST /api/reports/{reportID}/articles/{articleID}/include", auth(h.includeArticle))
	mux.HandleFunc("POST /api/reports/{reportID}/articles/{articleID}/reset", auth(h.resetCuration))
	mux.HandleFunc("PATCH /api/reports/{reportID}/articles/{articleID}", auth(h.updateArticle))
	mux.HandleFunc("PUT /api/reports/{reportID}/articles/{articleID}/notes", auth(h.updateNotes))

	mux.HandleFunc("POST /api/reports/{reportID}/approve", auth(h.approveReport))
	mux.HandleFunc("POST /api/reports/{reportID}/reject", auth(h.rejectReport))

	mux.HandleFunc("POST /api/reports/{reportID}/regenerate/executive", auth(h.regenerateExecutive))
	mux.HandleFunc("POST /api/reports/{reportID}/regenerate/categories/{categoryID}", auth(h.regenerateCategory))
	mux.HandleFunc("POST /api/reports/{reportID}/regenerate/articles/{articleID}", auth(h.regenerateArticle))

	return mux
}
