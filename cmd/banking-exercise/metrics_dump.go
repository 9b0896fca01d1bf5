package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/prometheus/common/expfmt"

	"github.com/jnicholls/banking-exercise/core/pipeline"
)

// dumpMetrics writes a Prometheus text-format snapshot of the run's
// registry to path. There is no HTTP server anywhere in this program —
// this is the file-based alternative spec.md's network-transport Non-goal
// leaves room for.
func dumpMetrics(path string, m *pipeline.Metrics) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating metrics output file: %w", err)
	}
	defer f.Close()

	mfs, err := m.Registry.Gather()
	if err != nil {
		return fmt.Errorf("gathering metrics: %w", err)
	}

	w := bufio.NewWriter(f)
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range mfs {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("encoding metric family %s: %w", mf.GetName(), err)
		}
	}
	return w.Flush()
}
