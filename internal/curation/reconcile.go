package curation

import "sort"

// Category is a presentation-only grouping for included articles. Position
// fixes the category's order in the report.
type Category struct {
	ID       int64
	Name     string
	Position int
}

// IncludedArticle is one entry in the reconciled inclusion list.
type IncludedArticle struct {
	ArticleID     int64
	CategoryID    *int64
	Uncategorized bool
	State         State
}

// FilteredArticle is one entry in the reconciled exclusion list.
type FilteredArticle struct {
	ArticleID         int64
	FilterScore       *float64
	FilterScoreReason string
	State             State
}

// CuratedArticle is one entry in the audit/diff list: an article whose
// outcome the curator changed.
type CuratedArticle struct {
	ArticleID       int64
	CuratorIncluded bool
	Notes           string
	State           State
}

// Stats aggregates the pipeline's and the curator's counts for a report.
type Stats struct {
	PipelineIncluded   int `json:"pipeline_included"`
	PipelineFiltered   int `json:"pipeline_filtered"`
	PipelineDuplicates int `json:"pipeline_duplicates"`
	CuratorAdded       int `json:"curator_added"`
	CuratorRemoved     int `json:"curator_removed"`
	CurrentIncluded    int `json:"current_included"`
}

// View is the full reconciled picture of one report run. It is re-derived
// from the stored decisions and overrides after every mutation; callers never
// patch it locally.
type View struct {
	Included         []IncludedArticle
	FilteredOut      []FilteredArticle
	Curated          []CuratedArticle
	Stats            Stats
	HasCurationEdits bool
}

// Reconcile combines the pipeline decision set with the override rows for a
// report into the three partitioned lists plus aggregate stats.
//
// The inclusion list carries a stable global ranking: category order, then
// pipeline rank within the category, with uncategorized articles last.
// Duplicates appear in neither list unless curator-added. Articles with an
// inclusion override also appear in the curated list, tagged with the
// curator's direction.
func Reconcile(decisions []PipelineDecision, overrides map[int64]Override, categories []Category) View {
	pos := make(map[int64]int, len(categories))
	for _, c := range categories {
		pos[c.ID] = c.Position
	}

	view := View{HasCurationEdits: len(overrides) > 0}

	for _, dec := range decisions {
		var ov *Override
		if o, ok := overrides[dec.ArticleID]; ok {
			ov = &o
		}

		switch dec.Status {
		case StatusIncluded:
			view.Stats.PipelineIncluded++
		case StatusFiltered:
			view.Stats.PipelineFiltered++
		case StatusDuplicate:
			view.Stats.PipelineDuplicates++
		}

		state := StateOf(dec, ov)
		switch state {
		case StateCuratorAdded:
			view.Stats.CuratorAdded++
		case StateCuratorExcluded:
			view.Stats.CuratorRemoved++
		}

		if ov != nil && ov.CuratorIncluded != nil {
			view.Curated = append(view.Curated, CuratedArticle{
				ArticleID:       dec.ArticleID,
				CuratorIncluded: *ov.CuratorIncluded,
				Notes:           ov.Notes,
				State:           state,
			})
		}

		if EffectiveIncluded(dec, ov) {
			cat := EffectiveCategory(dec, ov)
			view.Included = append(view.Included, IncludedArticle{
				ArticleID:     dec.ArticleID,
				CategoryID:    cat,
				Uncategorized: cat == nil,
				State:         state,
			})
			continue
		}

		// Duplicates the curator left alone surface in neither list.
		if dec.Status == StatusDuplicate && state != StateCuratorExcluded {
			continue
		}
		view.FilteredOut = append(view.FilteredOut, FilteredArticle{
			ArticleID:         dec.ArticleID,
			FilterScore:       dec.FilterScore,
			FilterScoreReason: dec.FilterScoreReason,
			State:             state,
		})
	}

	view.Stats.CurrentIncluded = view.Stats.PipelineIncluded +
		view.Stats.CuratorAdded - view.Stats.CuratorRemoved

	rankOf := make(map[int64]int, len(decisions))
	for _, dec := range decisions {
		rankOf[dec.ArticleID] = dec.Rank
	}
	sort.SliceStable(view.Included, func(i, j int) bool {
		a, b := view.Included[i], view.Included[j]
		ai, bi := categoryOrder(a.CategoryID, pos), categoryOrder(b.CategoryID, pos)
		if ai != bi {
			return ai < bi
		}
		if ra, rb := rankOf[a.ArticleID], rankOf[b.ArticleID]; ra != rb {
			return ra < rb
		}
		return a.ArticleID < b.ArticleID
	})

	sort.SliceStable(view.Curated, func(i, j int) bool {
		return view.Curated[i].ArticleID < view.Curated[j].ArticleID
	})

	return view
}

// categoryOrder maps a category to its sort key; uncategorized articles and
// references to unknown categories sort last.
func categoryOrder(id *int64, pos map[int64]int) int {
	const last = int(^uint(0) >> 1)
	if id == nil {
		return last
	}
	p, ok := pos[*id]
	if !ok {
		return last
	}
	return p
}
