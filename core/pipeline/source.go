package pipeline

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// RawRecord is an untyped, still-textual transaction row. Parsing it into a
// txn.Transaction (including decimal parsing) is the parallel deserializer's
// job (spec.md §4.4); the source's only responsibility is to hand out rows
// in file order, each tagged with its 0-based position.
type RawRecord struct {
	Type, Client, Tx, Amount string
}

// RecordSource yields (order, RawRecord) pairs in strictly ascending order,
// as spec.md §1 requires of this out-of-core-scope collaborator. Read
// returns io.EOF once the input is exhausted.
type RecordSource interface {
	Read() (order uint64, rec RawRecord, err error)
}

var csvHeader = []string{"type", "client", "tx", "amount"}

// CSVSource is the default RecordSource, reading the four-column CSV
// format specified in spec.md §6. Whitespace around fields is tolerated,
// matching the spec's "tolerated by the source" allowance.
type CSVSource struct {
	r        *csv.Reader
	next     uint64
	sawFirst bool
}

// NewCSVSource wraps r, which must start at the beginning of the input
// (header row first).
func NewCSVSource(r io.Reader) (*CSVSource, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}
	if err := validateHeader(header); err != nil {
		return nil, err
	}
	return &CSVSource{r: cr}, nil
}

func validateHeader(header []string) error {
	if len(header) != len(csvHeader) {
		return fmt.Errorf("expected %d columns in header, got %d", len(csvHeader), len(header))
	}
	for i, name := range csvHeader {
		if strings.TrimSpace(header[i]) != name {
			return fmt.Errorf("expected column %d to be %q, got %q", i, name, header[i])
		}
	}
	return nil
}

func (s *CSVSource) Read() (uint64, RawRecord, error) {
	row, err := s.r.Read()
	if err != nil {
		return 0, RawRecord{}, err
	}

	order := s.next
	s.next++

	if len(row) < 2 {
		return order, RawRecord{}, &ParseError{
			Order:  order,
			Reason: fmt.Sprintf("row has %d field(s), want at least 2 (type, client)", len(row)),
		}
	}

	rec := RawRecord{Type: strings.TrimSpace(row[0]), Client: strings.TrimSpace(row[1])}
	if len(row) > 2 {
		rec.Tx = strings.TrimSpace(row[2])
	}
	if len(row) > 3 {
		rec.Amount = strings.TrimSpace(row[3])
	}
	return order, rec, nil
}
