package report

import (
	"encoding/csv"
	"io"

	"github.com/projectdiscovery/ipsweep/pkg/sweep"
)

// CSVWriter writes a header row followed by one row per record.
type CSVWriter struct {
	w *csv.Writer
}

func NewCSVWriter(w io.Writer) *CSVWriter {
	return &CSVWriter{w: csv.NewWriter(w)}
}

func (c *CSVWriter) Write(records []sweep.Record) error {
	if err := c.w.Write(Header); err != nil {
		return err
	}
	for _, r := range records {
		if err := c.w.Write(NewRow(r).Fields()); err != nil {
			return err
		}
	}
	c.w.Flush()
	return c.w.Error()
}
