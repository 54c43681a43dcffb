// Package output provides adapters for writing application output.
package output

import (
	"fmt"
	"io"
	"os"

	"github.com/animalaidunlimited/virtuous-paypal-import/internal/domain"
)

// Writer writes a one-line run summary to the configured output
// destination. By default, it writes to stdout so the scheduler's log
// captures the result of every run.
type Writer struct {
	out io.Writer
}

// NewWriter creates a new Writer that writes to stdout.
func NewWriter() *Writer {
	return &Writer{out: os.Stdout}
}

// NewWriterWithOutput creates a new Writer with a custom output destination.
// This is useful for testing.
func NewWriterWithOutput(out io.Writer) *Writer {
	return &Writer{out: out}
}

// WriteSummary writes the run id and headline counts as a single line.
func (w *Writer) WriteSummary(report *domain.RunReport) error {
	_, err := fmt.Fprintf(w.out, "run=%s processed=%d failures=%d projects_added=%d\n",
		report.RunID, len(report.Transactions), len(report.Failures), len(report.ProjectsAdded))
	return err
}
