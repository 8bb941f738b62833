package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/sitesearch/internal/model"
)

// SimpleWriter outputs plain text reports for terminal display.
type SimpleWriter struct {
	baseWriter

	// maxContexts limits the contexts printed per page. 0 prints all.
	maxContexts int

	// verbose adds crawl statistics.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithMaxContexts limits the number of contexts printed per page.
// The remainder is summarised as "... and N more". 0 prints all.
func WithMaxContexts(n int) SimpleWriterOption {
	return func(w *SimpleWriter) {
		if n >= 0 {
			w.maxContexts = n
		}
	}
}

// WithVerbose adds crawl statistics to the output.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the report in human-readable form.
func (w *SimpleWriter) Write(report *model.SearchReport) (int, error) {
	var sb strings.Builder
	w.writeReport(&sb, report)
	return io.WriteString(w.output, sb.String())
}

// WriteBatch outputs each report followed by a one-line total.
func (w *SimpleWriter) WriteBatch(reports []*model.SearchReport) (int, error) {
	var sb strings.Builder

	reports = compact(reports)
	pages := 0
	for _, r := range reports {
		w.writeReport(&sb, r)
		pages += len(r.Results)
	}
	fmt.Fprintf(&sb, "Searched %d site(s), %d page(s) matched.\n", len(reports), pages)

	return io.WriteString(w.output, sb.String())
}

func (w *SimpleWriter) writeReport(sb *strings.Builder, report *model.SearchReport) {
	w.writeHeader(sb, report)
	if w.verbose {
		w.writeStats(sb, report)
	}
	w.writeResults(sb, report)
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.SearchReport) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                        SITESEARCH REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Start URL:  %s\n", report.Request.StartURL)
	fmt.Fprintf(sb, "Query:      %q\n", report.Request.Query)
	fmt.Fprintf(sb, "Max Depth:  %d\n", report.Request.MaxDepth)
	fmt.Fprintf(sb, "Searched:   %s\n", report.StartedAt.Format(dateLayout))
	fmt.Fprintf(sb, "Duration:   %s\n", report.Duration().Round(time.Millisecond))
	fmt.Fprintf(sb, "Status:     %s\n", statusText(report))
	fmt.Fprintf(sb, "Report ID:  %s\n", report.ID)
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeStats(sb *strings.Builder, report *model.SearchReport) {
	sb.WriteString("CRAWL STATISTICS\n")
	sb.WriteString(strings.Repeat("-", 40))
	sb.WriteString("\n")
	for _, s := range summaryStats(report) {
		fmt.Fprintf(sb, "  %-18s %d\n", s.Label+":", s.Value)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeResults(sb *strings.Builder, report *model.SearchReport) {
	if !report.HasResults() {
		fmt.Fprintf(sb, "No occurrences of %q found.\n", report.Request.Query)
		return
	}

	fmt.Fprintf(sb, "MATCHES (%d page(s), %d context(s))\n",
		len(report.Results), report.ContextCount())
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")

	for i, res := range report.SortedResults() {
		fmt.Fprintf(sb, "\n[%d] %s\n", i+1, res.URL)

		shown := res.Contexts
		if w.maxContexts > 0 && len(shown) > w.maxContexts {
			shown = shown[:w.maxContexts]
		}
		for _, c := range shown {
			fmt.Fprintf(sb, "    - %s\n", c)
		}
		if rest := len(res.Contexts) - len(shown); rest > 0 {
			fmt.Fprintf(sb, "    ... and %d more\n", rest)
		}
	}
}
