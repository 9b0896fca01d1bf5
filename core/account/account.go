// Package account implements the per-client state machine: the pure,
// single-threaded logic that applies one transaction to one account and
// enforces every monetary and dispute invariant in spec.md §3-§4.1.
package account

import (
	"github.com/shopspring/decimal"

	"github.com/jnicholls/banking-exercise/core/txn"
)

// historyEntry records a successfully applied Deposit or Withdrawal, the
// only transaction kinds retained for future dispute lookups.
type historyEntry struct {
	kind   txn.Kind
	amount decimal.Decimal
}

// Account is one client's monetary state plus the bookkeeping needed to
// service disputes. It is owned exclusively by a single worker goroutine
// (core/worker) and therefore needs no internal synchronization.
type Account struct {
	ID        txn.ClientID
	Available decimal.Decimal
	Held      decimal.Decimal
	Locked    bool

	history  map[txn.TxnID]historyEntry
	disputed map[txn.TxnID]decimal.Decimal
}

// New creates an empty, unlocked account for the given client.
func New(id txn.ClientID) *Account {
	return &Account{
		ID:       id,
		history:  make(map[txn.TxnID]historyEntry),
		disputed: make(map[txn.TxnID]decimal.Decimal),
	}
}

// Total is available + held. spec.md §9 corrects the reference source's
// buggy `available - held` definition; this is the fixed one (I1).
func (a *Account) Total() decimal.Decimal {
	return a.Available.Add(a.Held)
}

// Apply advances the account's state machine by one transaction, enforcing
// the precondition order from spec.md §4.1. All side effects are confined
// to the receiver; a non-nil error means no state was mutated.
func (a *Account) Apply(t txn.Transaction) error {
	if t.Client != a.ID {
		return newErr(WrongAccount, a.ID, t.ID, "transaction targets a different account")
	}
	if a.Locked {
		return newErr(AccountLocked, a.ID, t.ID, "account is locked after a chargeback")
	}

	switch t.Kind {
	case txn.Deposit:
		return a.applyDeposit(t)
	case txn.Withdrawal:
		return a.applyWithdrawal(t)
	case txn.Dispute:
		return a.applyDispute(t)
	case txn.Resolve:
		return a.applyResolve(t)
	case txn.Chargeback:
		return a.applyChargeback(t)
	default:
		return newErr(NotFound, a.ID, t.ID, "unrecognized transaction kind")
	}
}

func (a *Account) applyDeposit(t txn.Transaction) error {
	if _, seen := a.history[t.ID]; seen {
		return newErr(AlreadyProcessed, a.ID, t.ID, "duplicate deposit id")
	}
	a.Available = a.Available.Add(t.Amount)
	a.history[t.ID] = historyEntry{kind: txn.Deposit, amount: t.Amount}
	return nil
}

func (a *Account) applyWithdrawal(t txn.Transaction) error {
	if _, seen := a.history[t.ID]; seen {
		return newErr(AlreadyProcessed, a.ID, t.ID, "duplicate withdrawal id")
	}
	if a.Available.LessThan(t.Amount) {
		return newErr(InsufficientFunds, a.ID, t.ID, "withdrawal exceeds available funds")
	}
	a.Available = a.Available.Sub(t.Amount)
	a.history[t.ID] = historyEntry{kind: txn.Withdrawal, amount: t.Amount}
	return nil
}

// applyDispute moves funds from available to held. Per spec.md §4.1/§9,
// this is symmetric for a disputed Deposit and a disputed Withdrawal,
// matching the reference implementation's documented (if debatable)
// interpretation of the exercise's wording.
func (a *Account) applyDispute(t txn.Transaction) error {
	if _, inDispute := a.disputed[t.ID]; inDispute {
		return newErr(AlreadyInDispute, a.ID, t.ID, "transaction already in dispute")
	}
	entry, found := a.history[t.ID]
	if !found {
		return newErr(NotFound, a.ID, t.ID, "disputed transaction not found in history")
	}
	a.Available = a.Available.Sub(entry.amount)
	a.Held = a.Held.Add(entry.amount)
	a.disputed[t.ID] = entry.amount
	return nil
}

func (a *Account) applyResolve(t txn.Transaction) error {
	amount, inDispute := a.disputed[t.ID]
	if !inDispute {
		return newErr(NotInDispute, a.ID, t.ID, "transaction is not under dispute")
	}
	delete(a.disputed, t.ID)
	a.Available = a.Available.Add(amount)
	a.Held = a.Held.Sub(amount)
	return nil
}

// applyChargeback finalizes a dispute: held funds leave the system and the
// account is locked forever (I4). Available is untouched.
func (a *Account) applyChargeback(t txn.Transaction) error {
	amount, inDispute := a.disputed[t.ID]
	if !inDispute {
		return newErr(NotInDispute, a.ID, t.ID, "transaction is not under dispute")
	}
	delete(a.disputed, t.ID)
	a.Held = a.Held.Sub(amount)
	a.Locked = true
	return nil
}
