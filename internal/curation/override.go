package curation

// The transition functions below take the pipeline decision and the current
// override row (the zero-value Override when no row exists yet) and return
// the override as it should be persisted, plus whether anything actually
// changed. They enforce the canonical-form invariant: a stored override never
// restates the outcome the pipeline decision alone would already produce.

// Exclude removes an effectively-included article from the report. For a
// genuine pipeline inclusion the curator's "false" is recorded explicitly;
// when the inclusion was itself a prior curator add, excluding collapses the
// override back to absent, since a filtered or duplicate article is already
// excluded by default. Either way any curator category is dropped: a
// category is only meaningful on an included article.
func Exclude(dec PipelineDecision, ov Override) (Override, bool, error) {
	if !EffectiveIncluded(dec, &ov) {
		return ov, false, &InvalidStateError{
			Op:        "exclude",
			ArticleID: dec.ArticleID,
			Reason:    "article is already excluded",
		}
	}
	if dec.Status == StatusIncluded {
		f := false
		ov.CuratorIncluded = &f
		ov.CategoryID = nil
		return ov, true, nil
	}
	// Undoing a curator add: reset rather than storing a redundant false.
	ov.CuratorIncluded = nil
	ov.CategoryID = nil
	return ov, true, nil
}

// Include pulls an effectively-excluded article into the report, optionally
// assigning it a category. When the pipeline already included the article
// (the curator is undoing a prior removal), the override collapses to absent
// instead of storing a redundant true.
func Include(dec PipelineDecision, ov Override, categoryID *int64) (Override, bool, error) {
	if EffectiveIncluded(dec, &ov) {
		return ov, false, &InvalidStateError{
			Op:        "include",
			ArticleID: dec.ArticleID,
			Reason:    "article is already included",
		}
	}
	if dec.Status == StatusIncluded {
		// Pipeline article the curator had removed: undo the removal.
		ov.CuratorIncluded = nil
	} else {
		t := true
		ov.CuratorIncluded = &t
	}
	if categoryID != nil {
		ov.CategoryID = canonicalCategory(dec, categoryID)
	}
	return ov, true, nil
}

// Reset unconditionally returns the article to the pipeline's original
// decision, clearing both the inclusion override and any curator category.
// Notes are preserved. Idempotent: resetting an already-reset override
// reports no mutation rather than an error.
func Reset(ov Override) (Override, bool) {
	if ov.CuratorIncluded == nil && ov.CategoryID == nil {
		return ov, false
	}
	ov.CuratorIncluded = nil
	ov.CategoryID = nil
	return ov, true
}

// SetCategory assigns (or clears, with nil) the presentation category for an
// effectively-included article. An assignment matching the pipeline's own
// primary category collapses to absent, keeping "curator changed nothing"
// unambiguous.
func SetCategory(dec PipelineDecision, ov Override, categoryID *int64) (Override, bool, error) {
	if !EffectiveIncluded(dec, &ov) {
		return ov, false, &InvalidStateError{
			Op:        "set category",
			ArticleID: dec.ArticleID,
			Reason:    "article is not included in the report",
		}
	}
	next := canonicalCategory(dec, categoryID)
	if equalCategory(ov.CategoryID, next) {
		return ov, false, nil
	}
	ov.CategoryID = next
	return ov, true, nil
}

// SetNotes attaches curation notes. Always valid; never touches the
// inclusion decision.
func SetNotes(ov Override, notes string) (Override, bool) {
	if ov.Notes == notes {
		return ov, false
	}
	ov.Notes = notes
	return ov, true
}

// canonicalCategory collapses a category assignment that matches the
// pipeline's primary category back to nil.
func canonicalCategory(dec PipelineDecision, categoryID *int64) *int64 {
	if categoryID == nil {
		return nil
	}
	if p := dec.PrimaryCategory(); p != nil && *p == *categoryID {
		return nil
	}
	return categoryID
}

func equalCategory(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
