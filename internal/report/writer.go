package report

import (
	"io"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nao1215/sitesearch/internal/model"
)

// Writer renders search reports to a destination.
type Writer interface {
	// Write outputs a single report and returns the number of bytes written.
	Write(report *model.SearchReport) (int, error)

	// WriteBatch outputs the reports of a multi-URL search as one document.
	// Nil entries are skipped.
	WriteBatch(reports []*model.SearchReport) (int, error)
}

// MultiWriter writes every report to several Writers, for example the
// terminal and a file. It stops at the first error.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the report to all configured Writers.
func (m *MultiWriter) Write(report *model.SearchReport) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(report)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteBatch outputs the reports to all configured Writers.
func (m *MultiWriter) WriteBatch(reports []*model.SearchReport) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteBatch(reports)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}


// stat is one labelled figure of a report summary.
type stat struct {
	Label string
	Value int
}

// summaryStats returns the figures shown in every report format.
func summaryStats(report *model.SearchReport) []stat {
	// A Caser keeps state, so each call gets its own.
	titleCaser := cases.Title(language.English, cases.NoLower)
	return []stat{
		{titleCaser.String("pages fetched"), report.Stats.PagesFetched},
		{titleCaser.String("pages failed"), report.Stats.PagesFailed},
		{titleCaser.String("pages matched"), len(report.Results)},
		{titleCaser.String("contexts"), report.ContextCount()},
		{titleCaser.String("URLs discovered"), report.Stats.URLsDiscovered},
		{titleCaser.String("deepest level"), report.Stats.MaxDepthReached},
	}
}

// statusText describes how a search ended.
func statusText(report *model.SearchReport) string {
	switch {
	case report.TimedOut:
		return "Timed out (partial results)"
	case report.Error != "":
		return "Error: " + report.Error
	default:
		return "Complete"
	}
}

// compact drops nil reports.
func compact(reports []*model.SearchReport) []*model.SearchReport {
	out := make([]*model.SearchReport, 0, len(reports))
	for _, r := range reports {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

const dateLayout = "2006-01-02 15:04:05 MST"
