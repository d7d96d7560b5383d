// Package report writes scan records to CSV or JSON lines files.
package report

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/projectdiscovery/ipsweep/pkg/sweep"
)

// Format of an exported report
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "jsonl"
)

// Header is the CSV column order.
var Header = []string{"IP Address", "Status", "Hostname", "Aliases", "Addresses", "DNS Error"}

const listSeparator = ", "

// Row is the flattened form of a record.
type Row struct {
	IP         string   `json:"ip"`
	Status     string   `json:"status"`
	Hostname   string   `json:"hostname"`
	Aliases    []string `json:"aliases"`
	Addresses  []string `json:"addresses"`
	DNSError   string   `json:"dns_error,omitempty"`
	ProbeError string   `json:"probe_error,omitempty"`
	RTT        float64  `json:"rtt_ms,omitempty"`
}

// NewRow flattens r.
func NewRow(r sweep.Record) Row {
	row := Row{
		IP:         r.Address.String(),
		Status:     r.Status(),
		Hostname:   r.DNS.Hostname,
		Aliases:    nonNil(r.DNS.Aliases),
		Addresses:  nonNil(r.DNS.Addresses),
		DNSError:   r.DNS.Err.Message(),
		ProbeError: r.Probe.Err.String(),
	}
	if r.Probe.Reachable && r.Probe.RTT > 0 {
		row.RTT = float64(r.Probe.RTT.Microseconds()) / 1000
	}
	return row
}

// Fields returns the CSV fields of the row, in Header order.
func (r Row) Fields() []string {
	return []string{
		r.IP,
		r.Status,
		r.Hostname,
		strings.Join(r.Aliases, listSeparator),
		strings.Join(r.Addresses, listSeparator),
		r.DNSError,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// Writer serializes records.
type Writer interface {
	Write(records []sweep.Record) error
}

// NewWriter returns the writer for format.
func NewWriter(format Format, w io.Writer) (Writer, error) {
	switch format {
	case FormatCSV, "":
		return NewCSVWriter(w), nil
	case FormatJSON:
		return NewJSONWriter(w), nil
	default:
		return nil, fmt.Errorf("unknown report format %q", format)
	}
}

// DefaultFilename returns scan_results_<YYYYMMDD_HHMMSS>.<ext> for now.
func DefaultFilename(now time.Time, format Format) string {
	if format == "" {
		format = FormatCSV
	}
	return fmt.Sprintf("scan_results_%s.%s", now.Format("20060102_150405"), format)
}

// Export writes records to path, or to DefaultFilename in the working
// directory when path is empty, and returns the path written.
func Export(path string, format Format, records []sweep.Record) (string, error) {
	if path == "" {
		path = DefaultFilename(time.Now(), format)
	}
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("could not create report: %w", err)
	}

	w, err := NewWriter(format, f)
	if err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", err
	}
	if err := w.Write(records); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("could not write report %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("could not close report %s: %w", path, err)
	}
	return path, nil
}
