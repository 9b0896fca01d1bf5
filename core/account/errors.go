package account

import (
	"fmt"

	"github.com/jnicholls/banking-exercise/core/txn"
)

// ErrorKind enumerates the business-rule rejections the state machine can
// produce. These are expected outcomes, not structural failures: the
// pipeline logs and discards them (spec.md §7) rather than aborting.
type ErrorKind uint8

const (
	WrongAccount ErrorKind = iota
	AccountLocked
	InsufficientFunds
	AlreadyProcessed
	NotFound
	AlreadyInDispute
	NotInDispute
)

func (k ErrorKind) String() string {
	switch k {
	case WrongAccount:
		return "wrong_account"
	case AccountLocked:
		return "account_locked"
	case InsufficientFunds:
		return "insufficient_funds"
	case AlreadyProcessed:
		return "already_processed"
	case NotFound:
		return "not_found"
	case AlreadyInDispute:
		return "already_in_dispute"
	case NotInDispute:
		return "not_in_dispute"
	default:
		return "unknown"
	}
}

// TxnError reports why a transaction was rejected by an account's state
// machine. It carries enough context to produce a useful log line without
// the caller needing to re-derive it.
type TxnError struct {
	Kind    ErrorKind
	Client  txn.ClientID
	TxnID   txn.TxnID
	Message string
}

func (e *TxnError) Error() string {
	return fmt.Sprintf("client %d, txn %d: %s: %s", e.Client, e.TxnID, e.Kind, e.Message)
}

func newErr(kind ErrorKind, client txn.ClientID, id txn.TxnID, msg string) *TxnError {
	return &TxnError{Kind: kind, Client: client, TxnID: id, Message: msg}
}
