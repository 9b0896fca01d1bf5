// Package worker implements the shard-owning consumer described by
// spec.md §4.2: a single goroutine that drains transactions for a disjoint
// set of clients and advances each account's state machine in isolation.
package worker

import (
	"runtime/debug"

	"go.uber.org/zap"

	"github.com/jnicholls/banking-exercise/core/account"
	"github.com/jnicholls/banking-exercise/core/corerr"
	"github.com/jnicholls/banking-exercise/core/txn"
)

// RejectHandler observes a business-rule rejection from an account's state
// machine. The pipeline driver wires this to logging and metrics; tests may
// wire it to a recording stub.
type RejectHandler func(err *account.TxnError)

// Worker owns a disjoint shard of accounts and serializes every mutation
// to that shard through a single goroutine, so the account map underneath
// it needs no locking (spec.md §4.2, §5).
type Worker struct {
	log      *zap.Logger
	onReject RejectHandler

	submit   chan txn.Transaction
	done     chan []*account.Account
	panicked chan error

	accounts map[txn.ClientID]*account.Account
}

// New starts a worker goroutine and returns a handle to it. The queue is an
// unbuffered channel, so Submit hands each transaction directly to the
// worker goroutine and applies backpressure to the sender (spec.md §5
// allows a bounded queue).
func New(log *zap.Logger, onReject RejectHandler) *Worker {
	w := &Worker{
		log:      log,
		onReject: onReject,
		submit:   make(chan txn.Transaction),
		done:     make(chan []*account.Account),
		panicked: make(chan error, 1),
		accounts: make(map[txn.ClientID]*account.Account),
	}
	go w.run()
	return w
}

// Submit enqueues a transaction for this shard. It blocks only as long as
// the worker's single goroutine takes to accept the send; spec.md §5
// permits either an unbounded or a bounded queue without affecting
// correctness, since every downstream stage strictly drains.
func (w *Worker) Submit(t txn.Transaction) {
	w.submit <- t
}

// Stop signals end-of-input and blocks until the worker has drained its
// queue, returning the final snapshot of every account it touched. If the
// worker's goroutine panicked while processing, that panic is returned as
// an error instead of crashing the process (spec.md §5).
func (w *Worker) Stop() ([]*account.Account, error) {
	close(w.submit)
	select {
	case out := <-w.done:
		return out, nil
	case err := <-w.panicked:
		return nil, err
	}
}

func (w *Worker) run() {
	defer func() {
		if r := recover(); r != nil {
			w.panicked <- corerr.NewPanicError("worker", r, debug.Stack())
			// The dispatch goroutine (the only sender on w.submit) doesn't
			// know this worker died; drain and discard so its next Submit
			// doesn't block forever waiting for a receiver that's gone.
			// Stop still observes the panic via w.panicked.
			for range w.submit {
			}
		}
	}()

	for t := range w.submit {
		acct, ok := w.accounts[t.Client]
		if !ok {
			acct = account.New(t.Client)
			w.accounts[t.Client] = acct
		}
		if err := acct.Apply(t); err != nil {
			w.log.Debug("transaction rejected", zap.Uint16("client", uint16(t.Client)), zap.Uint32("txn", uint32(t.ID)), zap.Error(err))
			if w.onReject != nil {
				if te, ok := err.(*account.TxnError); ok {
					w.onReject(te)
				}
			}
		}
	}

	out := make([]*account.Account, 0, len(w.accounts))
	for _, acct := range w.accounts {
		out = append(out, acct)
	}
	w.done <- out
}
