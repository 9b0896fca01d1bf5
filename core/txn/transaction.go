// Package txn defines the wire-level transaction types shared by every
// pipeline stage: the client/transaction identifiers, the closed set of
// transaction kinds, and the tagged union that carries them.
package txn

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ClientID identifies an account owner. It is a 16-bit value per spec.
type ClientID uint16

// TxnID globally identifies a Deposit or Withdrawal; Dispute, Resolve, and
// Chargeback reference an existing TxnID rather than minting a new one.
type TxnID uint32

// Kind is the closed set of transaction variants.
type Kind uint8

const (
	Deposit Kind = iota
	Withdrawal
	Dispute
	Resolve
	Chargeback
)

func (k Kind) String() string {
	switch k {
	case Deposit:
		return "deposit"
	case Withdrawal:
		return "withdrawal"
	case Dispute:
		return "dispute"
	case Resolve:
		return "resolve"
	case Chargeback:
		return "chargeback"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// ParseKind maps the lowercase CSV `type` column to a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "deposit":
		return Deposit, nil
	case "withdrawal":
		return Withdrawal, nil
	case "dispute":
		return Dispute, nil
	case "resolve":
		return Resolve, nil
	case "chargeback":
		return Chargeback, nil
	default:
		return 0, fmt.Errorf("unrecognized transaction type %q", s)
	}
}

// HasAmount reports whether this kind carries a monetary amount.
func (k Kind) HasAmount() bool {
	return k == Deposit || k == Withdrawal
}

// Transaction is the tagged union described by spec.md §3. Amount is the
// zero value for the three variants that do not carry one.
type Transaction struct {
	ID     TxnID
	Client ClientID
	Kind   Kind
	Amount decimal.Decimal
}

func (t Transaction) String() string {
	if t.Kind.HasAmount() {
		return fmt.Sprintf("txn(id=%d client=%d %s amount=%s)", t.ID, t.Client, t.Kind, t.Amount)
	}
	return fmt.Sprintf("txn(id=%d client=%d %s)", t.ID, t.Client, t.Kind)
}

// OrderedTransaction pairs a Transaction with its 0-based position in the
// input stream, used to reconstruct file order after parallel parsing.
type OrderedTransaction struct {
	Order uint64
	Txn   Transaction
}
