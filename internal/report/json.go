package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/sitesearch/internal/model"
)

// JSONWriter outputs reports as JSON. Results are ordered by URL.
type JSONWriter struct {
	baseWriter

	indent       bool
	indentPrefix string
	indentString string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint is WithIndent("", "  ").
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the report as a JSON object.
func (w *JSONWriter) Write(report *model.SearchReport) (int, error) {
	return w.writeJSON(ordered(report))
}

// WriteBatch outputs the reports as a JSON array.
func (w *JSONWriter) WriteBatch(reports []*model.SearchReport) (int, error) {
	return w.writeJSON(orderedAll(reports))
}

func (w *JSONWriter) writeJSON(v any) (int, error) {
	var (
		data []byte
		err  error
	)

	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return 0, err
	}

	data = append(data, '\n')
	return w.output.Write(data)
}

// JSONReport wraps reports with the version of sitesearch that produced them.
type JSONReport struct {
	Version string                `json:"version"`
	Reports []*model.SearchReport `json:"reports"`
}

// FullJSONWriter outputs reports inside a JSONReport envelope.
// A single report is still wrapped in a one-element list, so consumers
// see one shape.
type FullJSONWriter struct {
	*JSONWriter

	version string
}

// NewFullJSONWriter creates a writer for reports with version metadata.
func NewFullJSONWriter(output io.Writer, version string, opts ...JSONWriterOption) *FullJSONWriter {
	return &FullJSONWriter{
		JSONWriter: NewJSONWriter(output, opts...),
		version:    version,
	}
}

// Write outputs the report wrapped with metadata.
func (w *FullJSONWriter) Write(report *model.SearchReport) (int, error) {
	return w.WriteBatch([]*model.SearchReport{report})
}

// WriteBatch outputs the reports wrapped with metadata.
func (w *FullJSONWriter) WriteBatch(reports []*model.SearchReport) (int, error) {
	return w.writeJSON(&JSONReport{
		Version: w.version,
		Reports: orderedAll(reports),
	})
}

// ordered returns a shallow copy of report with Results sorted by URL.
func ordered(report *model.SearchReport) *model.SearchReport {
	cp := *report
	cp.Results = report.SortedResults()
	if cp.Results == nil {
		cp.Results = []model.PageResult{}
	}
	return &cp
}

func orderedAll(reports []*model.SearchReport) []*model.SearchReport {
	reports = compact(reports)
	out := make([]*model.SearchReport, len(reports))
	for i, r := range reports {
		out[i] = ordered(r)
	}
	return out
}
