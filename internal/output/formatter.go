// Package output renders engine results for the command line in json, text,
// and human formats.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pharos-research/pharos"
)

type Format string

const (
	FormatJSON  Format = "json"
	FormatText  Format = "text"
	FormatHuman Format = "human"
)

type Formatter struct {
	format Format
	out    io.Writer
	err    io.Writer
}

// NewFormatter creates a new output formatter
func NewFormatter(format Format) *Formatter {
	return &Formatter{
		format: format,
		out:    os.Stdout,
		err:    os.Stderr,
	}
}

// NewFormatterWithWriters creates a formatter with custom output writers for testability
func NewFormatterWithWriters(format Format, out, errW io.Writer) *Formatter {
	return &Formatter{
		format: format,
		out:    out,
		err:    errW,
	}
}

// OutputReportList outputs a list of reports
func (f *Formatter) OutputReportList(reports []pharos.ReportSummary) error {
	switch f.format {
	case FormatJSON:
		if reports == nil {
			reports = []pharos.ReportSummary{}
		}
		return json.NewEncoder(f.out).Encode(reports)
	case FormatText:
		for _, r := range reports {
			fmt.Fprintf(f.out, "id=%d\trun=%s\tstatus=%s\tedited=%t\tname=%s\n",
				r.ID, r.RunID, r.ApprovalStatus, r.HasCurationEdits, r.Name)
		}
		return nil
	case FormatHuman:
		if len(reports) == 0 {
			fmt.Fprintln(f.out, "No reports")
			return nil
		}
		fmt.Fprintf(f.out, "Reports (%d):\n\n", len(reports))
		for _, r := range reports {
			fmt.Fprintf(f.out, "ID: %d\n", r.ID)
			fmt.Fprintf(f.out, "Name: %s\n", r.Name)
			fmt.Fprintf(f.out, "Status: %s\n", r.ApprovalStatus)
			if r.RejectionReason != "" {
				fmt.Fprintf(f.out, "Rejection reason: %s\n", r.RejectionReason)
			}
			if r.HasCurationEdits {
				fmt.Fprintln(f.out, "Curator edits: yes")
			}
			fmt.Fprintf(f.out, "Created: %s\n", r.CreatedAt.Format("2006-01-02 15:04"))
			fmt.Fprintln(f.out, "---")
		}
		return nil
	}
	return fmt.Errorf("unknown format: %s", f.format)
}

// OutputCurationView outputs the reconciled curation view of a report
func (f *Formatter) OutputCurationView(view *pharos.CurationView) error {
	switch f.format {
	case FormatJSON:
		return json.NewEncoder(f.out).Encode(view)

	case FormatText:
		for _, a := range view.Included {
			category := a.CategoryName
			if category == "" {
				category = "Uncategorized"
			}
			fmt.Fprintf(f.out, "included\tid=%d\tcategory=%s\tstate=%s\ttitle=%s\n",
				a.ID, category, a.State, a.Title)
		}
		for _, a := range view.FilteredOut {
			score := ""
			if a.FilterScore != nil {
				score = fmt.Sprintf("%.2f", *a.FilterScore)
			}
			fmt.Fprintf(f.out, "filtered\tid=%d\tscore=%s\tstate=%s\ttitle=%s\n",
				a.ID, score, a.State, a.Title)
		}
		fmt.Fprintf(f.out, "stats\tpipeline_included=%d\tadded=%d\tremoved=%d\tcurrent=%d\tfiltered=%d\n",
			view.Stats.PipelineIncluded, view.Stats.CuratorAdded, view.Stats.CuratorRemoved,
			view.Stats.CurrentIncluded, view.Stats.PipelineFiltered)
		return nil

	case FormatHuman:
		fmt.Fprintf(f.out, "%s [%s]\n", view.Report.Name, view.Report.ApprovalStatus)
		fmt.Fprintln(f.out, strings.Repeat("=", 70))

		var currentCategory string
		first := true
		for _, a := range view.Included {
			category := a.CategoryName
			if category == "" {
				category = "Uncategorized"
			}
			if first || category != currentCategory {
				currentCategory = category
				first = false
				fmt.Fprintf(f.out, "\n%s\n", category)
			}
			marker := ""
			switch a.State {
			case "curator_added":
				marker = " [added]"
			case "curator_recategorized":
				marker = " [recategorized]"
			}
			fmt.Fprintf(f.out, "  • %s%s (id %d)\n", a.Title, marker, a.ID)
			if a.Notes != "" {
				fmt.Fprintf(f.out, "    note: %s\n", a.Notes)
			}
		}

		if len(view.FilteredOut) > 0 {
			fmt.Fprintf(f.out, "\nFiltered out (%d):\n", len(view.FilteredOut))
			for _, a := range view.FilteredOut {
				detail := ""
				if a.FilterScore != nil {
					detail = fmt.Sprintf(" (score %.2f", *a.FilterScore)
					if a.FilterScoreReason != "" {
						detail += ", " + a.FilterScoreReason
					}
					detail += ")"
				}
				marker := ""
				if a.State == "curator_excluded" {
					marker = " [removed by curator]"
				}
				fmt.Fprintf(f.out, "  • %s%s%s (id %d)\n", a.Title, detail, marker, a.ID)
			}
		}

		fmt.Fprintf(f.out, "\nIncluded: %d (pipeline %d, added %d, removed %d)\n",
			view.Stats.CurrentIncluded, view.Stats.PipelineIncluded,
			view.Stats.CuratorAdded, view.Stats.CuratorRemoved)
		if view.HasCurationEdits {
			fmt.Fprintln(f.out, "This report has curator edits.")
		}
		return nil
	}
	return fmt.Errorf("unknown format: %s", f.format)
}

// OutputResult outputs the outcome of a single curation action
func (f *Formatter) OutputResult(action string, reportID, articleID int64, changed bool, message string) error {
	switch f.format {
	case FormatJSON:
		return json.NewEncoder(f.out).Encode(map[string]interface{}{
			"action":     action,
			"report_id":  reportID,
			"article_id": articleID,
			"changed":    changed,
			"message":    message,
		})
	case FormatText:
		fmt.Fprintf(f.out, "action=%s\treport=%d\tarticle=%d\tchanged=%t\n",
			action, reportID, articleID, changed)
		return nil
	case FormatHuman:
		if message != "" {
			fmt.Fprintln(f.out, message)
		} else if changed {
			fmt.Fprintf(f.out, "%s applied\n", action)
		} else {
			fmt.Fprintf(f.out, "%s: nothing to change\n", action)
		}
		return nil
	}
	return fmt.Errorf("unknown format: %s", f.format)
}

// Error outputs an error message to stderr
func (f *Formatter) Error(format string, args ...interface{}) {
	fmt.Fprintf(f.err, format+"\n", args...)
}

// Warning outputs a warning message to stderr
func (f *Formatter) Warning(format string, args ...interface{}) {
	fmt.Fprintf(f.err, "Warning: "+format+"\n", args...)
}
