// Package curation reconciles an automated pipeline's article decisions with
// a curator's manual overrides. Everything here is pure: callers load the
// pipeline decisions and override rows, apply a transition, and persist the
// result themselves.
package curation

// DecisionStatus is the pipeline's run-scoped verdict on an article.
type DecisionStatus string

const (
	StatusIncluded  DecisionStatus = "included"
	StatusFiltered  DecisionStatus = "filtered"
	StatusDuplicate DecisionStatus = "duplicate"
)

// Valid reports whether s is one of the three pipeline statuses.
func (s DecisionStatus) Valid() bool {
	switch s {
	case StatusIncluded, StatusFiltered, StatusDuplicate:
		return true
	}
	return false
}

// PipelineDecision is the upstream pipeline's verdict for one article in one
// report run. Produced once per run and never mutated here.
type PipelineDecision struct {
	ArticleID         int64
	Status            DecisionStatus
	FilterScore       *float64 // 0-1, optional
	FilterScoreReason string
	Categories        []int64 // presentation categories, meaningful only when included
	Rank              int     // pipeline rank within its category
}

// PrimaryCategory returns the decision's first presentation category, or nil
// when the pipeline assigned none.
func (d PipelineDecision) PrimaryCategory() *int64 {
	if len(d.Categories) == 0 {
		return nil
	}
	c := d.Categories[0]
	return &c
}

// Override is a curator's manual deviation from the pipeline's verdict for
// one article in one report. CuratorIncluded == nil is the canonical
// "no override" state, distinct from an explicit false. Rows are created on
// first curator action and never deleted; a reset collapses the decision
// fields back to nil but preserves the notes as an audit trail.
type Override struct {
	ReportID        int64
	ArticleID       int64
	CuratorIncluded *bool
	CategoryID      *int64
	Notes           string
}

// Active reports whether the override carries a curator decision. Rows that
// exist only for their notes (or after a reset) are inactive.
func (o Override) Active() bool {
	return o.CuratorIncluded != nil || o.CategoryID != nil
}

// EffectiveIncluded resolves an article's include/exclude outcome: the
// curator's decision when present, otherwise the pipeline's. A duplicate is
// never effectively included unless the curator explicitly added it.
func EffectiveIncluded(dec PipelineDecision, ov *Override) bool {
	if ov != nil && ov.CuratorIncluded != nil {
		return *ov.CuratorIncluded
	}
	return dec.Status == StatusIncluded
}

// EffectiveCategory resolves the presentation category for an article: the
// curator's assignment when present, otherwise the pipeline's primary
// category. Returns nil for uncategorized articles.
func EffectiveCategory(dec PipelineDecision, ov *Override) *int64 {
	if ov != nil && ov.CategoryID != nil {
		return ov.CategoryID
	}
	return dec.PrimaryCategory()
}

// State classifies how an article's effective outcome relates to the
// pipeline's decision. It is computed once by the reconciler and consumed
// uniformly by every caller.
type State string

const (
	// StatePipelineOnly means no active override: the pipeline's decision
	// stands as-is.
	StatePipelineOnly State = "pipeline_only"
	// StateCuratorAdded means the pipeline filtered or deduplicated the
	// article but the curator pulled it into the report.
	StateCuratorAdded State = "curator_added"
	// StateCuratorExcluded means the pipeline included the article but the
	// curator removed it.
	StateCuratorExcluded State = "curator_excluded"
	// StateCuratorRecategorized means the inclusion decision is the
	// pipeline's own, but the curator moved the article to a different
	// category.
	StateCuratorRecategorized State = "curator_recategorized"
)

// StateOf computes the curation state for one article.
func StateOf(dec PipelineDecision, ov *Override) State {
	if ov == nil {
		return StatePipelineOnly
	}
	if ov.CuratorIncluded != nil {
		if *ov.CuratorIncluded {
			return StateCuratorAdded
		}
		return StateCuratorExcluded
	}
	if ov.CategoryID != nil {
		return StateCuratorRecategorized
	}
	return StatePipelineOnly
}
