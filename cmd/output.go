package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/zkcredit/internal/model"
)

// printer formats counts and amounts with digit grouping.
var printer = message.NewPrinter(language.English)

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func outcomeLabel(o model.Outcome) string {
	return strings.ToUpper(o.String())
}

// formatScorecard writes the per-criterion results and the verdict to w.
func formatScorecard(out io.Writer, resp *model.ProofResponse) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "CRITERION\tRESULT\tEXPLANATION")
	_, _ = fmt.Fprintln(w, "---------\t------\t-----------")
	for _, c := range resp.Criteria {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", c.Label, outcomeLabel(c.Pass), c.Explanation)
	}
	_, _ = fmt.Fprintf(w, "\nOverall:\t%s\n", outcomeLabel(resp.OverallPass))
	_, _ = fmt.Fprintf(w, "Backend:\t%s\n", resp.Backend)
	if resp.RunID != "" {
		_, _ = fmt.Fprintf(w, "Run:\t%s\n", resp.RunID)
	}
	_ = w.Flush()
}

// formatInputs writes the circuit inputs of the active criteria to w.
func formatInputs(out io.Writer, in model.MetricInputs, active model.CriterionSet) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "FIELD\tVALUE")
	for _, c := range model.AllCriteria {
		if !active.Has(c) {
			continue
		}
		for _, f := range c.Fields() {
			v, _ := in.Get(f)
			_, _ = printer.Fprintf(w, "%s\t%d\n", f, v)
		}
	}
	_ = w.Flush()
}

// formatRunsList writes a tabular list of proof runs to w.
func formatRunsList(out io.Writer, runs []model.ProofRun) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tMODE\tBACKEND\tSTATUS\tPROOF\tOVERALL\tCREATED\tDURATION")
	_, _ = fmt.Fprintln(w, "--\t----\t-------\t------\t-----\t-------\t-------\t--------")

	for _, r := range runs {
		status := string(r.Status)
		if r.ErrorKind != "" {
			status += " (" + r.ErrorKind + ")"
		}
		proof := r.Proof
		if proof == "" {
			proof = "-"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			truncateID(r.ID),
			r.Mode,
			r.Backend,
			status,
			proof,
			outcomeLabel(r.Overall),
			r.CreatedAt.Format("2006-01-02 15:04"),
			(time.Duration(r.DurationMs) * time.Millisecond).String(),
		)
	}
	_ = w.Flush()
}

// writeRunsCSV writes proof runs as CSV with a header row.
func writeRunsCSV(out io.Writer, runs []model.ProofRun) error {
	w := csv.NewWriter(out)
	if err := w.Write([]string{"id", "session_id", "mode", "backend", "status", "error_kind", "proof", "overall", "duration_ms", "created_at"}); err != nil {
		return err
	}
	for _, r := range runs {
		rec := []string{
			r.ID, r.SessionID, string(r.Mode), r.Backend, string(r.Status), r.ErrorKind,
			r.Proof, r.Overall.String(), strconv.FormatInt(r.DurationMs, 10),
			r.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
