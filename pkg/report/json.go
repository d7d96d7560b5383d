package report

import (
	"bufio"
	"io"

	jsoniter "github.com/json-iterator/go"
	"github.com/projectdiscovery/ipsweep/pkg/sweep"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// JSONWriter writes one JSON object per line.
type JSONWriter struct {
	w io.Writer
}

func NewJSONWriter(w io.Writer) *JSONWriter {
	return &JSONWriter{w: w}
}

func (j *JSONWriter) Write(records []sweep.Record) error {
	buf := bufio.NewWriter(j.w)
	enc := json.NewEncoder(buf)
	for _, r := range records {
		if err := enc.Encode(NewRow(r)); err != nil {
			return err
		}
	}
	return buf.Flush()
}
