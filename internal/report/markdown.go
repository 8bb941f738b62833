package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/sitesearch/internal/model"
)

// maxChartSlices bounds the pie chart so that large sites stay readable.
const maxChartSlices = 10

// MarkdownWriter outputs reports as GitHub-flavoured Markdown with a
// summary table, a mermaid chart of where matches were found, and one
// section per matching page.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the report as a Markdown document.
func (w *MarkdownWriter) Write(report *model.SearchReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Site Search Report")
	md.PlainText("")
	w.writeReport(md, report, false)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// WriteBatch outputs all reports as one document with a section per site.
func (w *MarkdownWriter) WriteBatch(reports []*model.SearchReport) (int, error) {
	md := markdown.NewMarkdown(w.output)
	reports = compact(reports)

	md.H1("Site Search Report")
	md.PlainText("")

	rows := make([][]string, len(reports))
	for i, r := range reports {
		rows[i] = []string{
			r.Request.StartURL,
			"`" + r.Request.Query + "`",
			strconv.Itoa(len(r.Results)),
			statusText(r),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Start URL", "Query", "Pages Matched", "Status"},
		Rows:   rows,
	})
	md.PlainText("")

	for _, r := range reports {
		w.writeReport(md, r, true)
	}
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeReport writes one report. Nested reports start at H2 so that a
// batch document keeps a single H1.
func (w *MarkdownWriter) writeReport(md *markdown.Markdown, report *model.SearchReport, nested bool) {
	if nested {
		md.H2(report.Request.StartURL)
		md.PlainText("")
	}

	w.writeHeader(md, report)
	w.writeSummary(md, report)
	w.writeResults(md, report)
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.SearchReport) {
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Start URL", report.Request.StartURL},
			{"Query", "`" + report.Request.Query + "`"},
			{"Max Depth", strconv.Itoa(report.Request.MaxDepth)},
			{"Search Date", report.StartedAt.Format(dateLayout)},
			{"Status", w.statusWithIcon(report)},
			{"Report ID", "`" + report.ID + "`"},
		},
	})
	md.PlainText("")
}

func (w *MarkdownWriter) statusWithIcon(report *model.SearchReport) string {
	switch {
	case report.TimedOut:
		return "⚠️ " + statusText(report)
	case report.Error != "":
		return "❌ " + statusText(report)
	default:
		return "✔️ " + statusText(report)
	}
}

func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, report *model.SearchReport) {
	md.H3("Summary")
	md.PlainText("")

	stats := summaryStats(report)
	rows := make([][]string, len(stats))
	for i, s := range stats {
		rows[i] = []string{s.Label, strconv.Itoa(s.Value)}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Count"},
		Rows:   rows,
	})
	md.PlainText("")

	switch {
	case report.TimedOut:
		md.Warningf("The search was cut short. Results cover the %d page(s) fetched before the deadline.",
			report.Stats.PagesFetched)
	case report.Error != "":
		md.Cautionf("The search failed: %s", report.Error)
	case !report.HasResults():
		md.Note(fmt.Sprintf("No occurrences of `%s` were found.", report.Request.Query))
	default:
		md.Tip(fmt.Sprintf("Found %d context(s) on %d page(s).", report.ContextCount(), len(report.Results)))
	}
	md.PlainText("")

	if len(report.Results) > 1 {
		w.writePieChart(md, report)
	}
}

// writePieChart writes a mermaid pie chart of contexts per page for the
// pages with the most matches.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, report *model.SearchReport) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Contexts per Page"),
		piechart.WithShowData(true),
	)

	results := report.SortedResults()
	other := 0
	for i, res := range results {
		if i < maxChartSlices {
			chart.LabelAndIntValue(res.URL, uint64(len(res.Contexts)))
			continue
		}
		other += len(res.Contexts)
	}
	if other > 0 {
		chart.LabelAndIntValue("other pages", uint64(other))
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeResults(md *markdown.Markdown, report *model.SearchReport) {
	if !report.HasResults() {
		return
	}

	md.H3("Matches")
	md.PlainText("")

	for _, res := range report.SortedResults() {
		md.PlainTextf("**%s** (%d)", res.URL, len(res.Contexts))
		md.PlainText("")
		md.BulletList(res.Contexts...)
		md.PlainText("")
	}
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainText("*Report generated by [sitesearch](https://github.com/nao1215/sitesearch)*")
}
