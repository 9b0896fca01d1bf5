// Package dispatcher implements the re-sequencer described by spec.md §4.3:
// it accepts OrderedTransactions that may arrive out of order, forwards
// them in strictly ascending order, and routes each to the worker that
// owns its client shard.
package dispatcher

import (
	"container/heap"
	"fmt"

	"github.com/jnicholls/banking-exercise/core/account"
	"github.com/jnicholls/banking-exercise/core/txn"
	"github.com/jnicholls/banking-exercise/core/worker"
)

// Router looks up the worker responsible for a client. It exists so the
// dispatcher doesn't need to know how sharding maps to worker instances.
type Router interface {
	WorkerFor(client txn.ClientID) *worker.Worker
}

// ModRouter implements Router with the `client mod len(workers)` scheme
// spec.md §4.3 specifies.
type ModRouter struct {
	Workers []*worker.Worker
}

func (r ModRouter) WorkerFor(client txn.ClientID) *worker.Worker {
	return r.Workers[int(client)%len(r.Workers)]
}

// pending is one entry in the re-ordering heap.
type pending struct {
	order uint64
	txn   txn.Transaction
}

// orderHeap is a container/heap.Interface over pending entries, ordered by
// ascending Order — the same idiom the pack's container/heap-based eviction
// heaps (e.g. blobpool's evictHeap) use for a different key.
type orderHeap []pending

func (h orderHeap) Len() int            { return len(h) }
func (h orderHeap) Less(i, j int) bool  { return h[i].order < h[j].order }
func (h orderHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *orderHeap) Push(x interface{}) { *h = append(*h, x.(pending)) }
func (h *orderHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Dispatcher is the single-goroutine-owned re-sequencer. Its heap is the
// only cross-stage mutable structure in the pipeline and it belongs
// exclusively to the dispatcher's own goroutine (spec.md §5).
type Dispatcher struct {
	router Router

	nextExpected uint64
	heap         orderHeap
}

// New creates a dispatcher that routes forwarded transactions through
// router. It does not start a goroutine of its own: Submit/Stop are called
// directly by the pipeline driver's single dispatch goroutine, matching
// spec.md's description of the dispatcher as "a dispatcher thread".
func New(router Router) *Dispatcher {
	return &Dispatcher{router: router}
}

// Submit accepts an OrderedTransaction that may arrive out of order
// relative to its Order field, forwarding anything that is now part of the
// strictly-ascending prefix.
func (d *Dispatcher) Submit(ot txn.OrderedTransaction) {
	if ot.Order != d.nextExpected {
		heap.Push(&d.heap, pending{order: ot.Order, txn: ot.Txn})
		return
	}
	d.forward(ot.Txn)
	d.nextExpected++

	for len(d.heap) > 0 && d.heap[0].order == d.nextExpected {
		next := heap.Pop(&d.heap).(pending)
		d.forward(next.txn)
		d.nextExpected++
	}
}

func (d *Dispatcher) forward(t txn.Transaction) {
	d.router.WorkerFor(t.Client).Submit(t)
}

// ErrOrderingGap is returned by Stop when the input stream had gaps in its
// Order sequence: the dispatcher observed end-of-input with transactions
// still held in its re-ordering heap, waiting for a predecessor that never
// arrived.
type ErrOrderingGap struct {
	NextExpected uint64
	HeapDepth    int
}

func (e *ErrOrderingGap) Error() string {
	return fmt.Sprintf("ordering gap: expected order %d next, but %d transaction(s) remain queued out of sequence", e.NextExpected, e.HeapDepth)
}

// Stop signals end-of-input, stops every worker behind this dispatcher, and
// collects their account snapshots. A non-empty heap at this point means
// the input's Order values had a gap (spec.md §4.3).
func (d *Dispatcher) Stop(workers []*worker.Worker) ([]*account.Account, error) {
	var gapErr, panicErr error
	if len(d.heap) > 0 {
		gapErr = &ErrOrderingGap{NextExpected: d.nextExpected, HeapDepth: len(d.heap)}
	}

	var accounts []*account.Account
	for _, w := range workers {
		snapshot, werr := w.Stop()
		if werr != nil && panicErr == nil {
			panicErr = werr
		}
		accounts = append(accounts, snapshot...)
	}

	// A worker panic is a more severe, infrastructural failure than an
	// ordering gap in the input; surface it first if both occurred.
	if panicErr != nil {
		return accounts, panicErr
	}
	return accounts, gapErr
}

// HeapDepth reports the current number of out-of-order transactions
// waiting in the re-ordering heap. Exposed for metrics (spec.md §7).
func (d *Dispatcher) HeapDepth() int {
	return len(d.heap)
}
