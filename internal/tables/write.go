package tables

import (
	"bufio"
	"fmt"
	"io"

	"github.com/hurou927/kin-subset/internal/cohort"
)

// Writer writes the retained-individual table: "FID IID" per line, space
// delimited, no header.
type Writer struct {
	w *bufio.Writer
	n int
}

// NewWriter creates a new table writer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// Write appends one individual.
func (tw *Writer) Write(ind cohort.Individual) error {
	if _, err := fmt.Fprintf(tw.w, "%s %s\n", ind.FID, ind.IID); err != nil {
		return err
	}
	tw.n++
	return nil
}

// WriteAll appends every individual in order and flushes.
func (tw *Writer) WriteAll(inds []cohort.Individual) error {
	for _, ind := range inds {
		if err := tw.Write(ind); err != nil {
			return err
		}
	}
	return tw.Flush()
}

// Flush writes any buffered data to the underlying writer.
func (tw *Writer) Flush() error {
	return tw.w.Flush()
}

// Count returns the number of individuals written.
func (tw *Writer) Count() int {
	return tw.n
}
