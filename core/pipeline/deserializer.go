package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"runtime/debug"
	"strconv"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/jnicholls/banking-exercise/core/corerr"
	"github.com/jnicholls/banking-exercise/core/txn"
)

// ParseError reports that a single raw record could not be turned into a
// Transaction. Unlike a business-rule rejection, this is a structural
// failure of the input and aborts the pipeline (spec.md §7).
type ParseError struct {
	Order  uint64
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at order %d: %s", e.Order, e.Reason)
}

// DefaultParallelism is the reference degree of parallelism for the
// deserializer pool: one core is reserved for the I/O/dispatch thread
// (spec.md §4.4).
func DefaultParallelism() int {
	n := runtime.NumCPU()
	if n < 2 {
		n = 2
	}
	return n - 1
}

// Deserializer turns an ordered sequence of raw records into tagged
// (order, Transaction) pairs using a bounded pool of goroutines. The order
// records are *produced* on out is unspecified; the dispatcher (downstream)
// re-sequences them (spec.md §4.4).
type Deserializer struct {
	Source      RecordSource
	Parallelism int
}

// Run reads from the source on the calling goroutine (I/O is inherently
// serial) and fans parsing out across a semaphore-bounded pool built on
// golang.org/x/sync, so CPU-bound decimal/integer parsing doesn't compete
// with the single file handle. It closes out and returns once the source
// is exhausted or a ParseError occurs.
func (d *Deserializer) Run(ctx context.Context, out chan<- txn.OrderedTransaction) error {
	parallelism := d.Parallelism
	if parallelism < 1 {
		parallelism = DefaultParallelism()
	}

	sem := semaphore.NewWeighted(int64(parallelism))
	g, gctx := errgroup.WithContext(ctx)

	defer close(out)

	for {
		order, rec, err := d.Source.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			_ = g.Wait()
			return fmt.Errorf("reading record at order %d: %w", order, err)
		}

		if err := sem.Acquire(gctx, 1); err != nil {
			// The group context was cancelled by an earlier parse failure;
			// stop accepting new work and surface that failure below.
			break
		}

		order, rec := order, rec
		g.Go(func() (err error) {
			defer sem.Release(1)
			defer func() {
				if r := recover(); r != nil {
					err = corerr.NewPanicError("deserializer worker", r, debug.Stack())
				}
			}()

			t, perr := parseRecord(order, rec)
			if perr != nil {
				return &ParseError{Order: order, Reason: perr.Error()}
			}

			select {
			case out <- txn.OrderedTransaction{Order: order, Txn: t}:
			case <-gctx.Done():
			}
			return nil
		})
	}

	return g.Wait()
}

func parseRecord(order uint64, rec RawRecord) (txn.Transaction, error) {
	kind, err := txn.ParseKind(rec.Type)
	if err != nil {
		return txn.Transaction{}, err
	}

	client, err := strconv.ParseUint(rec.Client, 10, 16)
	if err != nil {
		return txn.Transaction{}, fmt.Errorf("invalid client id %q: %w", rec.Client, err)
	}

	id, err := strconv.ParseUint(rec.Tx, 10, 32)
	if err != nil {
		return txn.Transaction{}, fmt.Errorf("invalid tx id %q: %w", rec.Tx, err)
	}

	t := txn.Transaction{
		ID:     txn.TxnID(id),
		Client: txn.ClientID(client),
		Kind:   kind,
	}

	if kind.HasAmount() {
		if rec.Amount == "" {
			return txn.Transaction{}, fmt.Errorf("%s at order %d is missing an amount", kind, order)
		}
		amount, err := decimal.NewFromString(rec.Amount)
		if err != nil {
			return txn.Transaction{}, fmt.Errorf("invalid amount %q: %w", rec.Amount, err)
		}
		if amount.IsNegative() {
			return txn.Transaction{}, fmt.Errorf("amount %q must not be negative", rec.Amount)
		}
		t.Amount = amount
	}

	return t, nil
}
