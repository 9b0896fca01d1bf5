package pipeline

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/jnicholls/banking-exercise/core/account"
)

// AccountSink accepts the final set of account snapshots produced by a
// pipeline run. Row order is unspecified (spec.md §6).
type AccountSink interface {
	Write(accounts []*account.Account) error
}

// CSVSink is the default AccountSink: `client,available,held,total,locked`,
// amounts truncated to four fractional digits with no scientific notation.
type CSVSink struct {
	w *csv.Writer
}

func NewCSVSink(w io.Writer) *CSVSink {
	return &CSVSink{w: csv.NewWriter(w)}
}

func (s *CSVSink) Write(accounts []*account.Account) error {
	if err := s.w.Write([]string{"client", "available", "held", "total", "locked"}); err != nil {
		return fmt.Errorf("writing CSV header: %w", err)
	}

	for _, a := range accounts {
		row := []string{
			fmt.Sprintf("%d", a.ID),
			a.Available.Truncate(4).StringFixed(4),
			a.Held.Truncate(4).StringFixed(4),
			a.Total().Truncate(4).StringFixed(4),
			fmt.Sprintf("%t", a.Locked),
		}
		if err := s.w.Write(row); err != nil {
			return fmt.Errorf("writing account row for client %d: %w", a.ID, err)
		}
	}

	s.w.Flush()
	return s.w.Error()
}
