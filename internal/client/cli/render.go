package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/dmitrijs2005/molecheck/internal/client/models"
)

const barWidth = 20

func renderResult(w io.Writer, res models.ClassificationResult) {
	info := models.LookupLesion(res.PredictedClass)

	fmt.Fprintf(w, "\nDiagnosis: %s (%s)", info.Layman, info.Label)
	if len(res.Probabilities) > 0 {
		fmt.Fprintf(w, ", %s confidence", percent(res.Confidence()))
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Severity: %s\n", strings.ToUpper(string(info.Severity)))
	fmt.Fprintln(w, info.Description)
	fmt.Fprintf(w, "Recommendation: %s\n", info.Recommendation)

	ranked := res.Ranked()
	if len(ranked) == 0 {
		return
	}
	fmt.Fprintln(w, "\nProbabilities:")
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, p := range ranked {
		fmt.Fprintf(tw, "  %s\t%s\t%s\n", p.Label, percent(p.Value), bar(p.Value))
	}
	_ = tw.Flush()
}

func renderHistory(w io.Writer, records []models.DiagnosticRecord) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No saved diagnoses.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tDIAGNOSIS\tCONFIDENCE")
	for _, r := range records {
		date := "unknown date"
		if !r.CreatedAt.IsZero() {
			date = r.CreatedAt.Local().Format("2006-01-02 15:04")
		}

		label, conf := "?", "-"
		if c, err := r.Classification(); err == nil && c.PredictedClass != "" {
			label = fmt.Sprintf("%s (%s)", models.LookupLesion(c.PredictedClass).Layman, c.PredictedClass)
			if len(c.Probabilities) > 0 {
				conf = percent(c.Confidence())
			}
		}
		if r.Confidence != nil {
			conf = percent(*r.Confidence)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", r.ID, date, label, conf)
	}
	_ = tw.Flush()
}

func renderLabels(w io.Writer) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "LABEL\tNAME\tSEVERITY")
	for _, label := range models.LesionLabels {
		info := models.LookupLesion(label)
		fmt.Fprintf(tw, "%s\t%s\t%s\n", info.Label, info.Layman, info.Severity)
	}
	_ = tw.Flush()
}

func percent(v float64) string {
	return fmt.Sprintf("%.1f%%", v*100)
}

func bar(v float64) string {
	n := int(v*barWidth + 0.5)
	if n < 0 {
		n = 0
	}
	if n > barWidth {
		n = barWidth
	}
	return strings.Repeat("#", n)
}
