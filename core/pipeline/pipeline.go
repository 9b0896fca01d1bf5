// Package pipeline wires the leaf components (account, worker, dispatcher,
// deserializer) into the end-to-end run described by spec.md §4.5: source
// → parallel deserializer → dispatcher/re-sequencer → workers → sink.
package pipeline

import (
	"context"
	"fmt"
	"runtime/debug"

	"go.uber.org/zap"

	"github.com/jnicholls/banking-exercise/core/account"
	"github.com/jnicholls/banking-exercise/core/corerr"
	"github.com/jnicholls/banking-exercise/core/dispatcher"
	"github.com/jnicholls/banking-exercise/core/txn"
	"github.com/jnicholls/banking-exercise/core/worker"
)

// Config holds everything the driver needs to wire up and run a pipeline.
type Config struct {
	Source      RecordSource
	Sink        AccountSink
	NumWorkers  int
	Parallelism int // deserializer pool size; 0 selects DefaultParallelism()

	Log     *zap.Logger
	Metrics *Metrics
}

// Pipeline is the driver: it owns the worker pool and dispatcher for a
// single run and coordinates shutdown once the source is exhausted.
type Pipeline struct {
	cfg Config
}

func New(cfg Config) *Pipeline {
	if cfg.Log == nil {
		cfg.Log = zap.NewNop()
	}
	if cfg.NumWorkers < 1 {
		cfg.NumWorkers = 1
	}
	return &Pipeline{cfg: cfg}
}

// Run executes one end-to-end pass: stream records from the source, parse
// them in parallel, re-sequence and shard-dispatch them to workers, then
// hand the final account snapshots to the sink. It returns a fatal error —
// a ParseError, an OrderingGap, a recovered ThreadPanic, or a failure of
// the sink's Write — or nil on success (spec.md §7).
func (p *Pipeline) Run(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = corerr.NewPanicError("pipeline driver", r, debug.Stack())
		}
	}()

	workers := make([]*worker.Worker, p.cfg.NumWorkers)
	for i := range workers {
		workers[i] = worker.New(p.cfg.Log, p.onReject)
	}
	router := dispatcher.ModRouter{Workers: workers}
	disp := dispatcher.New(router)

	deser := &Deserializer{Source: p.cfg.Source, Parallelism: p.cfg.Parallelism}

	out := make(chan txn.OrderedTransaction)
	deserErrCh := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				deserErrCh <- corerr.NewPanicError("deserializer", r, debug.Stack())
			}
		}()
		deserErrCh <- deser.Run(ctx, out)
	}()

	dispatchErr := p.runDispatchLoop(disp, out)
	deserErr := <-deserErrCh

	accounts, stopErr := disp.Stop(workers)

	switch {
	case deserErr != nil:
		return fmt.Errorf("deserializer: %w", deserErr)
	case dispatchErr != nil:
		return dispatchErr
	case stopErr != nil:
		return fmt.Errorf("dispatcher shutdown: %w", stopErr)
	}

	p.cfg.Log.Info("all transactions processed", zap.Int("accounts", len(accounts)))

	if err := p.cfg.Sink.Write(accounts); err != nil {
		return fmt.Errorf("writing account snapshot: %w", err)
	}
	return nil
}

// runDispatchLoop is the pipeline's single dispatch thread: it drains the
// deserializer's output and feeds the re-sequencer, recovering from any
// panic so it can be surfaced rather than crash the process.
func (p *Pipeline) runDispatchLoop(disp *dispatcher.Dispatcher, out <-chan txn.OrderedTransaction) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = corerr.NewPanicError("dispatcher", r, debug.Stack())
			// Keep draining so the deserializer can finish and close out;
			// otherwise Run would block waiting for it.
			for range out {
			}
		}
	}()

	for ot := range out {
		disp.Submit(ot)
		if p.cfg.Metrics != nil {
			p.cfg.Metrics.TransactionsProcessed.WithLabelValues(ot.Txn.Kind.String()).Inc()
			p.cfg.Metrics.DispatcherHeapDepth.Set(float64(disp.HeapDepth()))
		}
	}
	return nil
}

// onReject observes a business-rule rejection from a worker's account
// state machine: log it and bump a metric, never abort the run (spec.md
// §7's "logged, discarded" policy).
func (p *Pipeline) onReject(e *account.TxnError) {
	p.cfg.Log.Warn("transaction rejected",
		zap.Uint16("client", uint16(e.Client)),
		zap.Uint32("txn", uint32(e.TxnID)),
		zap.String("kind", e.Kind.String()),
	)
	if p.cfg.Metrics != nil {
		p.cfg.Metrics.RejectedTransactions.WithLabelValues(e.Kind.String()).Inc()
	}
}
